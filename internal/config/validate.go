package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateOneBot(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorker() error {
	if len(c.Worker.Commands) == 0 {
		return errors.New("worker.commands must list at least one interpreter")
	}
	if strings.TrimSpace(c.Worker.Script) == "" {
		return errors.New("worker.script must be set")
	}
	if strings.TrimSpace(c.Worker.Config) == "" {
		return errors.New("worker.config must be set")
	}
	if c.Worker.TimeoutSeconds <= 0 {
		return errors.New("worker.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	return ensureNonNegativeMap(map[string]int{
		"delivery.unit_interval_ms":      c.Delivery.UnitIntervalMS,
		"delivery.artifact_interval_ms":  c.Delivery.ArtifactIntervalMS,
		"delivery.cleanup_delay_seconds": c.Delivery.CleanupDelaySeconds,
	})
}

func (c *Config) validateOneBot() error {
	switch c.OneBot.FileMode {
	case FileModePath, FileModeBase64:
	default:
		return fmt.Errorf("onebot.file_mode must be %q or %q, got %q", FileModePath, FileModeBase64, c.OneBot.FileMode)
	}
	if c.OneBot.RequestTimeout <= 0 {
		return errors.New("onebot.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
