// Package delivery sends a conversion result to a chat destination.
//
// A delivery has two phases. The summary phase sends an info unit, one unit
// per chapter, and a closing unit, either as a single forward-message batch
// or one message at a time. Batch constructors are tried in a fixed order
// (group, peer, default) and any failure falls through to the next; the
// sequential tier is the final fallback and never fails the delivery.
// Peer-only destinations skip batching entirely.
//
// The artifact phase always sends every PDF as its own message, reopening the
// file immediately before each send. Missing files and send errors are
// reported inline and the remaining artifacts are still attempted. A tagged
// completion notice closes every delivery.
package delivery
