// Package config loads, normalizes, and validates comicpdf configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// JMCOMIC_TEMP_DIR and ONEBOT_ACCESS_TOKEN. The Config type centralizes every
// knob the CLI and webhook server need so the worker, delivery pacing, and
// OneBot credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
