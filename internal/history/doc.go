// Package history persists one row per fetch request in SQLite.
//
// The ledger backs the `comicpdf history` command and the webhook status
// endpoint. It lives at state_dir/history.db, runs in WAL mode, and retries
// briefly when the database is busy. Recording is advisory: callers log
// failures instead of failing the request.
package history
