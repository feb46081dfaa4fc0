// Package worker launches the external PDF conversion process and turns its
// output into a ConversionResult.
//
// The worker writes human-readable log lines to stderr and exactly one JSON
// document as the last non-empty line of stdout. Exit codes are ignored: only
// the parsed document decides success. stderr lines are re-logged at the level
// named by their [INFO]/[WARN]/[ERROR] style marker and never affect control
// flow.
//
// Every failure is returned as *Error with a Kind so callers can report the
// most specific cause and match broad classes with errors.Is against the
// services markers.
package worker
