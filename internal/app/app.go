package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"loomdb/pkg/config"
	"loomdb/pkg/facts"
	"loomdb/pkg/ingest"
	"loomdb/pkg/ingest/queue"
	"loomdb/pkg/logger"
	"loomdb/pkg/maintenance"
)

const defaultQueueCapacity = 64 * 1024

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	queue *queue.Queue
	srv   *http.Server
}

// New initializes resources that do not require a running context
// (store, runtime keys, queue, audit sink). Call Run to start the
// pipeline and HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if dir := eff.Config.Logging.AuditDir; dir != "" {
		if err := logger.AttachAuditFileSink(dir); err != nil {
			return nil, fmt.Errorf("attach audit sink: %w", err)
		}
	}

	if err := facts.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open fact store at %s: %w", eff.DBPath, err)
	}

	capacity := eff.Config.Ingest.Queue.Capacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		queue:     queue.New(capacity),
	}
	return a, nil
}

// Queue exposes the ingest queue for wiring and tests.
func (a *App) Queue() *queue.Queue { return a.queue }

// Run starts the ingest processor, the maintenance scheduler and the
// HTTP server, then blocks until ctx is canceled or a fatal server
// error occurs. Shutdown order matters: HTTP stops accepting first,
// then the queue drains, then the store closes.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	procCtx, stopProc := context.WithCancel(context.Background())
	procDone := make(chan struct{})
	go func() {
		defer close(procDone)
		ingest.RunProcessor(procCtx, a.queue)
	}()

	stopMaint, err := maintenance.Start(ctx, a.eff.Config.Maintenance, a.queue)
	if err != nil {
		stopProc()
		return err
	}

	errCh := a.startHTTP()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	stopMaint()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(shutCtx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}

	// Let the processor finish what is already queued.
	a.queue.Close()
	<-procDone
	stopProc()

	if err := facts.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	if runErr == http.ErrServerClosed {
		runErr = nil
	}
	return runErr
}
