package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Worker describes how the external conversion process is launched.
type Worker struct {
	Commands       []string `toml:"commands"`
	Script         string   `toml:"script"`
	Config         string   `toml:"config"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	// PerRequestDir gives every request its own subdirectory of paths.output_dir.
	// When false all requests share paths.output_dir directly.
	PerRequestDir bool `toml:"per_request_dir"`
}

// Delivery contains pacing and cleanup timing.
type Delivery struct {
	UnitIntervalMS      int    `toml:"unit_interval_ms"`
	ArtifactIntervalMS  int    `toml:"artifact_interval_ms"`
	CleanupDelaySeconds int    `toml:"cleanup_delay_seconds"`
	BotName             string `toml:"bot_name"`
}

// OneBot contains the messaging endpoint settings.
type OneBot struct {
	APIURL         string `toml:"api_url"`
	AccessToken    string `toml:"access_token"`
	Listen         string `toml:"listen"`
	GenericForward bool   `toml:"generic_forward"`
	FileMode       string `toml:"file_mode"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for comicpdf.
//
// Configuration sections by subsystem:
//   - Paths: output, state, and log directories
//   - Worker: conversion process commands, script, and timeout
//   - Delivery: send pacing and deferred cleanup delay
//   - OneBot: messaging endpoint, webhook listen address, file mode
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Worker        Worker        `toml:"worker"`
	Delivery      Delivery      `toml:"delivery"`
	OneBot        OneBot        `toml:"onebot"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/comicpdf/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("comicpdf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The output
// directory is created and probed per request by the worker invoker.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockDir returns the directory holding per-album lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// ServeLockPath returns the single-instance lock used by the webhook server.
func (c *Config) ServeLockPath() string {
	return filepath.Join(c.Paths.StateDir, "serve.lock")
}

// WorkerTimeout returns the hard limit for one worker run.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// UnitInterval returns the spacing between sequential message sends.
func (c *Config) UnitInterval() time.Duration {
	return time.Duration(c.Delivery.UnitIntervalMS) * time.Millisecond
}

// ArtifactInterval returns the spacing between file sends.
func (c *Config) ArtifactInterval() time.Duration {
	return time.Duration(c.Delivery.ArtifactIntervalMS) * time.Millisecond
}

// CleanupDelay returns how long produced files are kept after conversion.
func (c *Config) CleanupDelay() time.Duration {
	return time.Duration(c.Delivery.CleanupDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
