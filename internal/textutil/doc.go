// Package textutil provides text helpers for worker-reported metadata and
// filesystem names.
//
// The primary use cases are:
//   - Normalizing titles and authors to NFC and stripping control characters
//     before they are shown in chat messages
//   - Sanitizing filenames and path segments for safe filesystem use
//   - Rendering byte counts as the megabyte figures used in messages
package textutil
