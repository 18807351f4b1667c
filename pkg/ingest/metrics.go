package ingest

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomdb_ingest_processed_total",
		Help: "Message ops committed to the fact store.",
	})
	processFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomdb_ingest_failed_total",
		Help: "Message ops that failed to commit.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loomdb_ingest_queue_depth",
		Help: "Items waiting in the ingest queue.",
	})
)

func formatNS(ns int64) string { return strconv.FormatInt(ns, 10) }
