package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/patrickmn/go-cache"

	"comicpdf/internal/config"
)

const userAgent = "comicpdf/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRequestFailed(ctx context.Context, albumID, kind string, err error) error
	NotifyDeliveryCompleted(ctx context.Context, summary DeliverySummary) error
	TestNotification(ctx context.Context) error
}

// DeliverySummary describes a finished delivery.
type DeliverySummary struct {
	AlbumID   string
	Title     string
	Sent      int
	Total     int
	SizeBytes int64
	Tier      string
	Elapsed   time.Duration
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
	if window := time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second; window > 0 {
		svc.recent = cache.New(window, 2*window)
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	recent   *cache.Cache
}

func (n *ntfyService) NotifyRequestFailed(ctx context.Context, albumID, kind string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Album ")
	builder.WriteString(strings.TrimSpace(albumID))
	builder.WriteString(" failed")
	if kind = strings.TrimSpace(kind); kind != "" {
		builder.WriteString(" (")
		builder.WriteString(kind)
		builder.WriteString(")")
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "comicpdf - Request Failed",
		message:  builder.String(),
		tags:     []string{"comicpdf", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeliveryCompleted(ctx context.Context, summary DeliverySummary) error {
	title := strings.TrimSpace(summary.Title)
	if title == "" {
		title = "album " + strings.TrimSpace(summary.AlbumID)
	}
	message := fmt.Sprintf("📚 Delivered %s: %d/%d chapters (%s)",
		title, summary.Sent, summary.Total, humanize.IBytes(uint64(max(summary.SizeBytes, 0))))
	if summary.Tier != "" {
		message = fmt.Sprintf("%s\nVia: %s", message, summary.Tier)
	}
	if elapsed := summary.Elapsed.Round(time.Second); elapsed > 0 {
		message = fmt.Sprintf("%s\nTook: %s", message, elapsed)
	}

	tags := []string{"comicpdf", "delivery", "completed"}
	priority := ""
	if summary.Sent < summary.Total {
		tags = []string{"comicpdf", "delivery", "partial"}
		priority = "high"
	}
	data := payload{
		title:    "comicpdf - Delivered",
		message:  message,
		tags:     tags,
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "comicpdf - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"comicpdf", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// duplicate records the message and reports whether it was already sent
// inside the dedup window.
func (n *ntfyService) duplicate(data payload) bool {
	if n.recent == nil {
		return false
	}
	key := data.title + "\x00" + data.message
	return n.recent.Add(key, struct{}{}, cache.DefaultExpiration) != nil
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.duplicate(data) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.forget(data)
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.forget(data)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// forget lets a failed send be retried inside the window.
func (n *ntfyService) forget(data payload) {
	if n.recent != nil {
		n.recent.Delete(data.title + "\x00" + data.message)
	}
}

type noopService struct{}

func (noopService) NotifyRequestFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyDeliveryCompleted(context.Context, DeliverySummary) error   { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
