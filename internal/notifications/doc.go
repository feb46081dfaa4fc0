// Package notifications delivers request events to the operator via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Identical messages inside the configured dedup window are dropped so a
// burst of failing requests for the same album produces one alert.
package notifications
