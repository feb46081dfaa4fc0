package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicpdf/internal/config"
	"comicpdf/internal/onebot"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputDirectory_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	result := CheckOutputDirectory(path)
	if !result.Passed {
		t.Fatalf("expected missing dir under writable parent to pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "created on first request") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckOutputDirectory_ReportsUsage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chapter_1.pdf"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckOutputDirectory(dir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "1 files, 2.0 KiB") {
		t.Fatalf("expected usage in detail, got: %s", result.Detail)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.py")
	if err := os.WriteFile(script, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckFile("script", script); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}
	if r := CheckFile("script", filepath.Join(dir, "missing.py")); r.Passed {
		t.Fatal("expected missing file to fail")
	}
	if r := CheckFile("script", dir); r.Passed {
		t.Fatal("expected directory to fail")
	}
	if r := CheckFile("script", ""); r.Passed || r.Detail != "not configured" {
		t.Fatalf("unexpected result for empty path: %#v", r)
	}
}

func TestCheckWorkerConfig(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		pass   bool
		detail string
	}{
		{
			name: "after_photo",
			yaml: `
dir_rule:
  base_dir: /tmp/jm
plugins:
  after_photo:
    - plugin: img2pdf
      kwargs:
        pdf_dir: /tmp/jm/pdf
        filename_rule: Pid
`,
			pass:   true,
			detail: "img2pdf after_photo -> /tmp/jm/pdf",
		},
		{
			name: "after_album",
			yaml: `
plugins:
  after_album:
    - plugin: zip
      kwargs: {}
    - plugin: img2pdf
      kwargs:
        pdf_dir: /srv/pdf
`,
			pass:   true,
			detail: "img2pdf after_album -> /srv/pdf",
		},
		{
			name:   "missing pdf_dir",
			yaml:   "plugins:\n  after_photo:\n    - plugin: img2pdf\n      kwargs: {}\n",
			detail: "has no pdf_dir",
		},
		{
			name:   "no plugin",
			yaml:   "dir_rule:\n  base_dir: /tmp\n",
			detail: "img2pdf plugin not enabled",
		},
		{
			name:   "invalid yaml",
			yaml:   "plugins: [unterminated\n",
			detail: "invalid yaml",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "option.yml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			result := CheckWorkerConfig(path)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, detail %s", result.Passed, result.Detail)
			}
			if !strings.Contains(result.Detail, tc.detail) {
				t.Fatalf("expected detail containing %q, got %q", tc.detail, result.Detail)
			}
		})
	}
}

func TestCheckWorkerCommandFallback(t *testing.T) {
	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "python"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)

	result := CheckWorkerCommand([]string{"python3", "python"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "using fallback") {
		t.Fatalf("expected fallback note, got: %s", result.Detail)
	}

	t.Setenv("PATH", t.TempDir())
	if result := CheckWorkerCommand([]string{"python3"}); result.Passed {
		t.Fatal("expected failure when no interpreter is found")
	}
}

func TestCheckOneBot_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_status" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"online":true}}`))
	}))
	defer srv.Close()

	result := CheckOneBot(context.Background(), onebot.NewClient(srv.URL, "good", time.Second))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckOneBot_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckOneBot(context.Background(), onebot.NewClient(srv.URL, "bad", time.Second))
	if result.Passed {
		t.Fatal("expected failure for unauthorized endpoint")
	}
	if !strings.Contains(result.Detail, "401") {
		t.Fatalf("expected status in detail, got: %s", result.Detail)
	}
}

func TestCheckNotificationsFromConfig(t *testing.T) {
	cfg := config.Default()
	if r := CheckNotificationsFromConfig(&cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("unexpected result: %#v", r)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/comics"
	if r := CheckNotificationsFromConfig(&cfg); !r.Passed || r.Detail != "https://ntfy.sh/comics" {
		t.Fatalf("unexpected result: %#v", r)
	}
}

func TestRunAllCoversEveryCheck(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.StateDir = base
	cfg.Worker.Script = filepath.Join(base, "missing.py")
	cfg.Worker.Config = filepath.Join(base, "missing.yml")
	cfg.OneBot.APIURL = ""

	results := RunAll(context.Background(), &cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := []string{"Worker interpreter", "Worker script", "Worker config", "Output directory", "State directory", "Notifications"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected checks: %v", names)
	}

	failed := Failed(results)
	for _, r := range failed {
		if r.Name == "Output directory" || r.Name == "State directory" {
			t.Fatalf("unexpected failure: %#v", r)
		}
	}
	if len(failed) < 2 {
		t.Fatalf("expected script and config failures, got %#v", failed)
	}
}
