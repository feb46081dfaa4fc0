package preflight

import (
	"context"
	"strings"

	"comicpdf/internal/config"
	"comicpdf/internal/onebot"
)

// CheckOneBotFromConfig evaluates OneBot status from config and connectivity.
func CheckOneBotFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "OneBot endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.OneBot.APIURL) == "" {
		return Result{Name: name, Detail: "Missing API URL"}
	}
	client := onebot.NewClient(cfg.OneBot.APIURL, cfg.OneBot.AccessToken, 0)
	return CheckOneBot(ctx, client)
}

// CheckNotificationsFromConfig reports whether ntfy notifications are enabled.
// A missing topic is not a failure.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: topic}
}
