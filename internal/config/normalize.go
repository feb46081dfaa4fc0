package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	c.normalizeDelivery()
	c.normalizeOneBot()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("JMCOMIC_TEMP_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() error {
	commands := make([]string, 0, len(c.Worker.Commands))
	for _, command := range c.Worker.Commands {
		if trimmed := strings.TrimSpace(command); trimmed != "" {
			commands = append(commands, trimmed)
		}
	}
	c.Worker.Commands = commands

	var err error
	if c.Worker.Script, err = expandPath(strings.TrimSpace(c.Worker.Script)); err != nil {
		return fmt.Errorf("worker.script: %w", err)
	}
	if c.Worker.Config, err = expandPath(strings.TrimSpace(c.Worker.Config)); err != nil {
		return fmt.Errorf("worker.config: %w", err)
	}
	return nil
}

func (c *Config) normalizeDelivery() {
	c.Delivery.BotName = strings.TrimSpace(c.Delivery.BotName)
	if c.Delivery.BotName == "" {
		c.Delivery.BotName = defaultBotName
	}
}

func (c *Config) normalizeOneBot() {
	c.OneBot.APIURL = strings.TrimRight(strings.TrimSpace(c.OneBot.APIURL), "/")
	c.OneBot.Listen = strings.TrimSpace(c.OneBot.Listen)
	if c.OneBot.Listen == "" {
		c.OneBot.Listen = defaultOneBotListen
	}
	c.OneBot.AccessToken = strings.TrimSpace(c.OneBot.AccessToken)
	if c.OneBot.AccessToken == "" {
		if value, ok := os.LookupEnv("ONEBOT_ACCESS_TOKEN"); ok {
			c.OneBot.AccessToken = strings.TrimSpace(value)
		}
	}
	c.OneBot.FileMode = strings.ToLower(strings.TrimSpace(c.OneBot.FileMode))
	if c.OneBot.FileMode == "" {
		c.OneBot.FileMode = defaultOneBotFileMode
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
