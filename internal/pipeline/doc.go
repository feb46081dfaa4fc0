// Package pipeline runs one fetch request end to end.
//
// A request moves through validate → acknowledge → lock → invoke →
// validate result → schedule cleanup → deliver → record. Anything rejected
// before the worker is launched is answered immediately with the validation
// message. Anything that fails afterwards produces a single tagged failure
// reply carrying the most specific cause. Cleanup is scheduled as soon as a
// result with artifacts exists, so failed deliveries do not leak disk space.
//
// The pipeline is transport agnostic: replies and deliveries go through a
// Channel, which the OneBot adapter and the CLI console both implement.
package pipeline
