// Package services defines shared utilities consumed by the pipeline and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp request and album identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from the
//     worker, delivery, and environment checks classify consistently.
package services
