package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"comicpdf/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JMCOMIC_TEMP_DIR", "")
	t.Setenv("ONEBOT_ACCESS_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "comicpdf", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "comicpdf", "output")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if got := cfg.HistoryPath(); got != filepath.Join(tempHome, ".local", "share", "comicpdf", "state", "history.db") {
		t.Fatalf("unexpected history path %q", got)
	}
	if strings.Join(cfg.Worker.Commands, ",") != "python3,python" {
		t.Fatalf("unexpected worker commands %v", cfg.Worker.Commands)
	}
	if !cfg.Worker.PerRequestDir {
		t.Fatal("expected per-request directories by default")
	}
	if cfg.WorkerTimeout() != 30*time.Minute {
		t.Fatalf("unexpected worker timeout %s", cfg.WorkerTimeout())
	}
	if cfg.UnitInterval() != 800*time.Millisecond || cfg.ArtifactInterval() != time.Second {
		t.Fatalf("unexpected pacing %s / %s", cfg.UnitInterval(), cfg.ArtifactInterval())
	}
	if cfg.CleanupDelay() != 30*time.Second {
		t.Fatalf("unexpected cleanup delay %s", cfg.CleanupDelay())
	}
	if cfg.OneBot.FileMode != config.FileModePath {
		t.Fatalf("unexpected file mode %q", cfg.OneBot.FileMode)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"output_dir": "~/shared/jmcomic",
		},
		"worker": map[string]any{
			"commands":        []string{" python3.12 ", ""},
			"timeout_seconds": 60,
			"per_request_dir": false,
		},
		"onebot": map[string]any{
			"api_url":   "http://napcat:3000/",
			"file_mode": "BASE64",
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "shared", "jmcomic") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if len(cfg.Worker.Commands) != 1 || cfg.Worker.Commands[0] != "python3.12" {
		t.Fatalf("unexpected commands %v", cfg.Worker.Commands)
	}
	if cfg.Worker.PerRequestDir {
		t.Fatal("expected shared output dir")
	}
	if cfg.OneBot.APIURL != "http://napcat:3000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.OneBot.APIURL)
	}
	if cfg.OneBot.FileMode != config.FileModeBase64 {
		t.Fatalf("expected base64 mode, got %q", cfg.OneBot.FileMode)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	shared := t.TempDir()
	t.Setenv("JMCOMIC_TEMP_DIR", shared)
	t.Setenv("ONEBOT_ACCESS_TOKEN", " secret ")
	t.Setenv("NTFY_TOPIC", "https://ntfy.sh/comics")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.OutputDir != shared {
		t.Fatalf("expected JMCOMIC_TEMP_DIR override, got %q", cfg.Paths.OutputDir)
	}
	if cfg.OneBot.AccessToken != "secret" {
		t.Fatalf("unexpected access token %q", cfg.OneBot.AccessToken)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/comics" {
		t.Fatalf("unexpected ntfy topic %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no commands", func(c *config.Config) { c.Worker.Commands = nil }, "worker.commands"},
		{"zero timeout", func(c *config.Config) { c.Worker.TimeoutSeconds = 0 }, "worker.timeout_seconds"},
		{"negative interval", func(c *config.Config) { c.Delivery.ArtifactIntervalMS = -1 }, "delivery.artifact_interval_ms"},
		{"file mode", func(c *config.Config) { c.OneBot.FileMode = "url" }, "onebot.file_mode"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"dedup", func(c *config.Config) { c.Notifications.DedupWindowSeconds = -5 }, "notifications.dedup_window_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestZeroIntervalsAreAllowed(t *testing.T) {
	cfg := config.Default()
	cfg.Delivery.UnitIntervalMS = 0
	cfg.Delivery.ArtifactIntervalMS = 0
	cfg.Delivery.CleanupDelaySeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected zero intervals to validate, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Delivery.BotName != "comicpdf" {
		t.Fatalf("unexpected bot name %q", cfg.Delivery.BotName)
	}
}

func TestEncodeIncludesSections(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, section := range []string{"[paths]", "[worker]", "[delivery]", "[onebot]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("expected %s in encoded config:\n%s", section, data)
		}
	}
}
