package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"comicpdf/internal/history"
	"comicpdf/internal/logging"
)

// HandlerFunc processes one message event. It runs on its own goroutine.
type HandlerFunc func(ctx context.Context, ev Event, target *Target)

// HistoryReader lists recent requests for the status endpoint.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// WebhookOptions configures a Webhook.
type WebhookOptions struct {
	Client  *Client
	Target  TargetOptions
	Handler HandlerFunc
	History HistoryReader
	// DedupWindow is how long a (self_id, message_id) pair is remembered.
	DedupWindow time.Duration
}

// Webhook receives OneBot event posts.
type Webhook struct {
	opts   WebhookOptions
	seen   *cache.Cache
	logger *slog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewWebhook builds a webhook whose dispatched handlers inherit ctx.
func NewWebhook(ctx context.Context, opts WebhookOptions, logger *slog.Logger) *Webhook {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Webhook{
		opts:   opts,
		seen:   cache.New(opts.DedupWindow, 2*opts.DedupWindow),
		logger: logging.NewComponentLogger(logger, "onebot"),
		ctx:    ctx,
	}
}

// Router returns the HTTP handler tree.
func (w *Webhook) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/onebot/event", w.handleEvent)
	r.Get("/api/requests", w.handleRequests)
	return r
}

// Wait blocks until every dispatched handler has returned.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

func (w *Webhook) handleEvent(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid event json"})
		return
	}
	rw.WriteHeader(http.StatusNoContent)

	if !ev.IsMessage() || w.opts.Handler == nil {
		return
	}
	if ev.UserID != 0 && ev.UserID == ev.SelfID {
		return
	}
	if ev.MessageID != 0 {
		key := fmt.Sprintf("%d:%d", ev.SelfID, ev.MessageID)
		if err := w.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			w.logger.Debug("duplicate event dropped",
				logging.Int64("message_id", ev.MessageID),
				logging.String(logging.FieldEventType, "event_duplicate"),
			)
			return
		}
	}

	target := NewTarget(w.opts.Client, ev, w.opts.Target)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("message handler panicked",
					logging.Any("panic", rec),
					logging.String(logging.FieldEventType, "handler_panic"),
				)
			}
		}()
		w.opts.Handler(w.ctx, ev, target)
	}()
}

func (w *Webhook) handleRequests(rw http.ResponseWriter, r *http.Request) {
	if w.opts.History == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "history unavailable"})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, 200)
	}
	entries, err := w.opts.History.Recent(r.Context(), limit)
	if err != nil {
		logging.WarnWithContext(w.logger, "history query failed", "history_query_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status endpoint returned an error"),
		)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"requests": entries})
}

func writeJSON(rw http.ResponseWriter, status int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(payload)
}
