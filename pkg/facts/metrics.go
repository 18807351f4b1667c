package facts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	txApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomdb_facts_transactions_total",
		Help: "Transactions applied to the fact store.",
	})
	mutationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomdb_facts_mutations_applied_total",
		Help: "Mutations that changed state.",
	})
	mutationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomdb_facts_mutations_deduped_total",
		Help: "Mutations skipped because the fact already held (assert) or was absent (retract).",
	})
	ready = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loomdb_facts_store_ready",
		Help: "1 when the fact store is open.",
	})
	// DiskUsageGauge is sampled by the maintenance loop.
	DiskUsageGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loomdb_facts_disk_usage_bytes",
		Help: "Pebble on-disk space usage.",
	})
	// RelationGauge is sampled by the maintenance loop, per relation.
	RelationGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loomdb_facts_relation_current",
		Help: "Facts currently held, per relation.",
	}, []string{"relation"})
)
