package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"comicpdf/internal/config"
	"comicpdf/internal/testsupport"
)

// fakeWorker writes two small PDFs and prints a success document.
const fakeWorker = `#!/bin/sh
album="$1"
out="$5"
printf 'chapter-one' > "$out/${album}_1.pdf"
printf 'chapter-two!' > "$out/${album}_2.pdf"
echo "[INFO] converted album $album" >&2
printf '{"success":true,"album_id":"%s","title":"Test Album","author":"Tester","total_chapters":2,"start_chapter":%s,"pdf_count":2,"pdf_files":[{"filename":"%s_1.pdf","size":11},{"filename":"%s_2.pdf","size":12}]}\n' "$album" "$3" "$album" "$album"
`

const failingWorker = `#!/bin/sh
echo "[ERROR] album lookup failed" >&2
echo '{"success":false,"error":"album 404 not found"}'
exit 1
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, worker string, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"JMCOMIC_TEMP_DIR", "NTFY_TOPIC", "ONEBOT_ACCESS_TOKEN"} {
		t.Setenv(key, "")
	}

	cfg := testsupport.NewConfig(t, testsupport.WithShellWorker(worker))
	cfg.OneBot.APIURL = ""
	for _, fn := range mutate {
		fn(cfg)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--env-file="}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func newTestFlock(t *testing.T, path string) func() {
	t.Helper()
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("lock %s: locked=%v err=%v", path, locked, err)
	}
	return func() { _ = lock.Unlock() }
}
