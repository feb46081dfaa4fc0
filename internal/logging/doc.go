// Package logging assembles the slog loggers used across comicpdf.
//
// It owns the console and JSON handlers, the level and output plumbing, and
// the context helpers that tag every line emitted while serving a fetch
// request with its request and album identifiers. NewNop returns a logger
// that discards everything, which tests and optional wiring rely on.
package logging
