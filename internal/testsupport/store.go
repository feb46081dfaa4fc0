package testsupport

import (
	"context"
	"testing"

	"comicpdf/internal/config"
	"comicpdf/internal/history"
)

// MustOpenHistory opens the request ledger for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordEntry inserts a running entry for the album and returns it.
func RecordEntry(t testing.TB, store *history.Store, id, albumID string) *history.Entry {
	t.Helper()

	entry := &history.Entry{
		ID:           id,
		AlbumID:      albumID,
		StartChapter: 1,
		EndChapter:   5,
		Source:       "test",
		Status:       history.StatusRunning,
	}
	if err := store.Record(context.Background(), entry); err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return entry
}
