package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicpdf/internal/config"
	"comicpdf/internal/history"
	"comicpdf/internal/testsupport"
)

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, fakeWorker, func(cfg *config.Config) {
		cfg.OneBot.AccessToken = "super-secret"
	})

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[worker]")
	requireContains(t, out, env.cfg.Worker.Script)
	if strings.Contains(out, "super-secret") {
		t.Fatal("config show must not print the access token")
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsErrors(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	path := filepath.Join(base, "bad.toml")
	if err := os.WriteFile(path, []byte("[onebot]\nfile_mode = \"ftp\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err == nil || !strings.Contains(err.Error(), "onebot.file_mode") {
		t.Fatalf("expected file_mode error, got %v", err)
	}
}

func TestEnvFileFillsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, fakeWorker)
	os.Unsetenv("NTFY_TOPIC")
	envPath := filepath.Join(env.baseDir, "test.env")
	if err := os.WriteFile(envPath, []byte("NTFY_TOPIC=https://ntfy.example/comics\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", env.configPath, "--env-file", envPath, "config", "show"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout.String(), "https://ntfy.example/comics")
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t, fakeWorker)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No requests recorded")

	store := testsupport.MustOpenHistory(t, env.cfg)
	entry := testsupport.RecordEntry(t, store, "req-1", "422866")
	if err := store.Update(context.Background(), entry.ID, func(e *history.Entry) {
		e.Status = history.StatusCompleted
		e.Title = "Test Album"
		e.PDFCount = 2
		e.SentCount = 2
		e.TotalSize = 3 << 20
		e.Tier = "group_batch"
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	testsupport.RecordEntry(t, store, "req-2", "350234")

	out, _, err = runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "422866")
	requireContains(t, out, "Test Album")
	requireContains(t, out, "2/2")
	requireContains(t, out, "3.0 MiB")
	requireContains(t, out, "group_batch")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	out, _, err = runCLI(t, []string{"history", "--counts"}, env.configPath)
	if err != nil {
		t.Fatalf("history --counts: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "running")

	out, _, err = runCLI(t, []string{"history", "--prune-older-than", "1ns"}, env.configPath)
	if err != nil {
		t.Fatalf("history --prune-older-than: %v", err)
	}
	requireContains(t, out, "Pruned 1 finished requests")
}

func TestBuildHistoryRows(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := buildHistoryRows([]history.Entry{
		{
			AlbumID:      "404",
			StartChapter: 1,
			EndChapter:   5,
			Status:       history.StatusFailed,
			ErrorKind:    "worker_reported_failure",
			ErrorMessage: "album 404 not found",
			CreatedAt:    now.Add(-2 * time.Hour),
		},
	}, now)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "2 hours ago" || row[2] != "1-5" || row[5] != "-" || row[6] != "-" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[7] != "worker_reported_failure: album 404 not found" {
		t.Fatalf("unexpected detail %q", row[7])
	}
}

func TestPreflightCommand(t *testing.T) {
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"online":true}}`))
	}))
	defer bot.Close()

	env := setupCLITestEnv(t, fakeWorker, func(cfg *config.Config) {
		cfg.OneBot.APIURL = bot.URL
	})
	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "Worker config")
	requireContains(t, out, "img2pdf after_album")
	requireContains(t, out, "OneBot endpoint")

	broken := setupCLITestEnv(t, fakeWorker, func(cfg *config.Config) {
		cfg.Worker.Commands = []string{"definitely-not-a-real-interpreter"}
	})
	out, _, err = runCLI(t, []string{"preflight"}, broken.configPath)
	if err == nil || !strings.Contains(err.Error(), "preflight checks failed") {
		t.Fatalf("expected failure, got %v", err)
	}
	requireContains(t, out, "no")
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t, fakeWorker)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	titles := make(chan string, 4)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	defer ntfy.Close()

	enabled := setupCLITestEnv(t, fakeWorker, func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = ntfy.URL
	})
	out, _, err = runCLI(t, []string{"test-notify"}, enabled.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if len(titles) != 1 || <-titles != "comicpdf - Test" {
		t.Fatal("expected one ntfy test request")
	}
}

func TestLogsCommandFiltersByAlbum(t *testing.T) {
	env := setupCLITestEnv(t, fakeWorker)
	path := filepath.Join(env.cfg.Paths.LogDir, logFileName)
	content := "2026-05-01T10:00:00Z INFO pipeline: request accepted request_id=r1 album_id=422866\n" +
		"2026-05-01T10:00:01Z INFO pipeline: request accepted request_id=r2 album_id=350234\n" +
		"2026-05-01T10:00:02Z INFO pipeline: request completed request_id=r1 album_id=422866\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--album", "422866"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Count(out, "\n") != 2 || strings.Contains(out, "350234") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "request completed")
	if strings.Contains(out, "request_id=r2") {
		t.Fatalf("expected only the last line:\n%s", out)
	}
}
