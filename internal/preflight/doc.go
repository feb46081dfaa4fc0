// Package preflight provides readiness checks for the worker toolchain,
// filesystem paths, and the messaging endpoint comicpdf depends on.
//
// These checks run in two contexts:
//   - `comicpdf serve` calls RunAll at startup and logs every failure so a
//     broken worker setup is visible before the first request arrives.
//   - The CLI "comicpdf preflight" command renders the same results as a table.
//
// Checks never modify the filesystem.
package preflight
