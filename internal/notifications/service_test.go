package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"comicpdf/internal/config"
	"comicpdf/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRequestFailed(context.Background(), "1", "worker_timeout", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, calls *int32, last *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		atomic.AddInt32(calls, 1)
		last.title = r.Header.Get("Title")
		last.tags = r.Header.Get("Tags")
		last.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		last.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "request failed",
			send: func(s notifications.Service) error {
				return s.NotifyRequestFailed(context.Background(), "350234", "worker_timeout", errors.New("worker timed out after 30m0s"))
			},
			expectTitle:    "comicpdf - Request Failed",
			expectMessage:  "❌ Album 350234 failed (worker_timeout): worker timed out after 30m0s",
			expectTags:     "comicpdf,error,alert",
			expectPriority: "high",
		},
		{
			name: "delivery completed",
			send: func(s notifications.Service) error {
				return s.NotifyDeliveryCompleted(context.Background(), notifications.DeliverySummary{
					AlbumID:   "350234",
					Title:     "Sample",
					Sent:      3,
					Total:     3,
					SizeBytes: 2 * 1024 * 1024,
					Tier:      "group_batch",
				})
			},
			expectTitle:   "comicpdf - Delivered",
			expectMessage: "📚 Delivered Sample: 3/3 chapters (2.0 MiB)\nVia: group_batch",
			expectTags:    "comicpdf,delivery,completed",
		},
		{
			name: "partial delivery",
			send: func(s notifications.Service) error {
				return s.NotifyDeliveryCompleted(context.Background(), notifications.DeliverySummary{
					AlbumID: "42",
					Sent:    1,
					Total:   2,
					Elapsed: 90 * time.Second,
				})
			},
			expectTitle:    "comicpdf - Delivered",
			expectMessage:  "📚 Delivered album 42: 1/2 chapters (0 B)\nTook: 1m30s",
			expectTags:     "comicpdf,delivery,partial",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "comicpdf - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "comicpdf,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			var got captured
			server := newCaptureServer(t, &calls, &got)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesDuplicatesInsideWindow(t *testing.T) {
	var calls int32
	var got captured
	server := newCaptureServer(t, &calls, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600
	svc := notifications.NewService(&cfg)

	ctx := context.Background()
	cause := errors.New("no artifacts")
	for range 3 {
		if err := svc.NotifyRequestFailed(ctx, "7", "no_artifacts", cause); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if err := svc.NotifyRequestFailed(ctx, "8", "no_artifacts", cause); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
}

func TestNtfyServiceWithoutWindowSendsEveryMessage(t *testing.T) {
	var calls int32
	var got captured
	server := newCaptureServer(t, &calls, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 0
	svc := notifications.NewService(&cfg)

	for range 2 {
		if err := svc.TestNotification(context.Background()); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
}

func TestNtfyServiceReportsHTTPErrorsAndAllowsRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "topic closed", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}
