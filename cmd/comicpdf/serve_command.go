package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"comicpdf/internal/config"
	"comicpdf/internal/lifecycle"
	"comicpdf/internal/logging"
	"comicpdf/internal/onebot"
	"comicpdf/internal/pipeline"
	"comicpdf/internal/preflight"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	listen string
	// staleAge removes leftovers older than this at startup; zero disables.
	staleAge time.Duration
	// onListen is called with the bound address once the server accepts.
	onListen func(addr string)
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string
	var staleAge time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the OneBot webhook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}

			lock := flock.New(cfg.ServeLockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire serve lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another comicpdf serve instance is running (lock %s)", cfg.ServeLockPath())
			}
			defer func() { _ = lock.Unlock() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(runCtx, cfg, logger, serveOptions{listen: listen, staleAge: staleAge})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides onebot.listen)")
	cmd.Flags().DurationVar(&staleAge, "sweep-older-than", 24*time.Hour, "Remove leftover output older than this at startup (0 disables)")
	return cmd
}

// runServer serves the webhook until ctx is cancelled, then drains in-flight
// requests and runs pending cleanups.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts serveOptions) error {
	logger = logging.NewComponentLogger(logger, "serve")

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run comicpdf preflight for the full report"),
			logging.String(logging.FieldImpact, "requests that depend on this check will fail"),
		)
	}

	if opts.staleAge > 0 {
		swept := lifecycle.SweepStale(ctx, cfg.Paths.OutputDir, opts.staleAge, cfg.Worker.PerRequestDir, logger)
		if len(swept.Removed) > 0 || len(swept.Errors) > 0 {
			logger.Info("stale output swept",
				logging.Int("removed", len(swept.Removed)),
				logging.Int("errors", len(swept.Errors)),
				logging.String(logging.FieldEventType, "stale_output_swept"),
			)
		}
	}

	rt, err := newRuntime(cfg, logger, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	client := onebot.NewClient(cfg.OneBot.APIURL, cfg.OneBot.AccessToken, time.Duration(cfg.OneBot.RequestTimeout)*time.Second)
	hookOpts := onebot.WebhookOptions{
		Client: client,
		Target: onebot.TargetOptions{
			BotName:        cfg.Delivery.BotName,
			FileMode:       cfg.OneBot.FileMode,
			GenericForward: cfg.OneBot.GenericForward,
		},
		Handler: func(hctx context.Context, ev onebot.Event, target *onebot.Target) {
			_, _ = rt.pipeline.HandleMessage(hctx, pipeline.Inbound{
				Text:      ev.Text(),
				Source:    ev.Source(),
				Requester: ev.Requester(),
			}, target)
		},
	}
	if rt.history != nil {
		hookOpts.History = rt.history
	}
	hook := onebot.NewWebhook(ctx, hookOpts, logger)

	listen := strings.TrimSpace(opts.listen)
	if listen == "" {
		listen = cfg.OneBot.Listen
	}
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}
	srv := &http.Server{
		Handler:           hook.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	addr := listener.Addr().String()
	logger.Info("webhook listening",
		logging.String("addr", addr),
		logging.String("onebot_api", cfg.OneBot.APIURL),
		logging.String(logging.FieldEventType, "serve_started"),
	)
	if opts.onListen != nil {
		opts.onListen(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("webhook server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(logger, "webhook shutdown incomplete", "serve_shutdown",
			logging.Error(err),
			logging.String(logging.FieldImpact, "open connections were dropped"),
		)
	}
	hook.Wait()
	pending := rt.cleanup.Pending()
	rt.cleanup.Flush(shutdownCtx)
	logger.Info("webhook stopped",
		logging.Int("cleanups_flushed", pending),
		logging.String(logging.FieldEventType, "serve_stopped"),
	)
	return runErr
}
