// Package logs reads the comicpdf log file for the CLI.
//
// Tail returns the last N lines (optionally only those for one request or
// album) and can follow the file for new output. Offsets let callers resume
// where the previous read stopped; a negative offset means "start from the
// last Limit lines".
package logs
