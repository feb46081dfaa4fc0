// Package lifecycle reclaims disk space used by worker artifacts.
//
// Manager schedules one cancellable cleanup per request. When it fires, the
// cleanup takes the album lock, deletes each reported file that still
// exists, and removes the output directory if nothing else is left in it.
// Cleanup is best-effort: failures are logged and never reach the requester.
//
// SweepStale removes leftovers from earlier runs (for example after a crash
// before the timer fired) and Usage reports what the output directory holds.
package lifecycle
