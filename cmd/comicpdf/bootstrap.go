package main

import (
	"fmt"
	"log/slog"
	"time"

	"comicpdf/internal/albumlock"
	"comicpdf/internal/config"
	"comicpdf/internal/delivery"
	"comicpdf/internal/history"
	"comicpdf/internal/lifecycle"
	"comicpdf/internal/logging"
	"comicpdf/internal/notifications"
	"comicpdf/internal/pipeline"
	"comicpdf/internal/worker"
)

// fetchCleanupHold keeps one-shot output until the fetch command flushes
// or discards it at exit.
const fetchCleanupHold = 24 * time.Hour

type runtimeOptions struct {
	// noDelay disables send pacing.
	noDelay bool
	// holdCleanup defers cleanup to an explicit Flush or Discard.
	holdCleanup bool
}

// appRuntime is the wired request pipeline shared by fetch and serve.
type appRuntime struct {
	cfg      *config.Config
	history  *history.Store
	cleanup  *lifecycle.Manager
	notifier notifications.Service
	pipeline *pipeline.Pipeline
}

func newRuntime(cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (*appRuntime, error) {
	invoker, err := worker.NewInvoker(worker.Options{
		Commands:   cfg.Worker.Commands,
		Script:     cfg.Worker.Script,
		ConfigPath: cfg.Worker.Config,
		Timeout:    cfg.WorkerTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create worker invoker: %w", err)
	}

	deliveryOpts := delivery.Options{
		UnitInterval:     cfg.UnitInterval(),
		ArtifactInterval: cfg.ArtifactInterval(),
		BotName:          cfg.Delivery.BotName,
	}
	if opts.noDelay {
		deliveryOpts.UnitInterval = 0
		deliveryOpts.ArtifactInterval = 0
	}

	locker := albumlock.New(cfg.LockDir())
	rt := &appRuntime{
		cfg:      cfg,
		cleanup:  lifecycle.NewManager(locker, logger),
		notifier: notifications.NewService(cfg),
	}

	deps := pipeline.Deps{
		Invoker:   invoker,
		Deliverer: delivery.New(deliveryOpts, logger),
		Cleanup:   rt.cleanup,
		Locker:    locker,
		Notifier:  rt.notifier,
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or remove a history.db from an incompatible version"),
			logging.String(logging.FieldImpact, "requests will not be recorded"),
		)
	} else {
		rt.history = store
		deps.History = store
	}

	cleanupDelay := cfg.CleanupDelay()
	if opts.holdCleanup {
		cleanupDelay = fetchCleanupHold
	}
	p, err := pipeline.New(pipeline.Options{
		OutputDir:     cfg.Paths.OutputDir,
		PerRequestDir: cfg.Worker.PerRequestDir,
		CleanupDelay:  cleanupDelay,
	}, deps, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}

// Close releases the history store.
func (r *appRuntime) Close() {
	if r.history != nil {
		_ = r.history.Close()
	}
}
