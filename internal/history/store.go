package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"comicpdf/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Fixed-width so that text ordering matches chronological ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"


// Store manages the request ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

const entryColumns = `id, album_id, start_chapter, end_chapter, source, requester, status, title,
    pdf_count, sent_count, total_size, tier, error_kind, error_message, output_dir, created_at, updated_at`

// Record inserts a new entry. CreatedAt and UpdatedAt are set when zero.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || strings.TrimSpace(entry.ID) == "" {
		return errors.New("history entry requires an id")
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	err := s.execWithRetry(ctx,
		`INSERT INTO requests (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AlbumID,
		entry.StartChapter,
		entry.EndChapter,
		nullableString(entry.Source),
		nullableString(entry.Requester),
		entry.Status,
		nullableString(entry.Title),
		entry.PDFCount,
		entry.SentCount,
		entry.TotalSize,
		nullableString(entry.Tier),
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		nullableString(entry.OutputDir),
		entry.CreatedAt.UTC().Format(timestampLayout),
		entry.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Update loads the entry with id, applies fn, and writes it back.
func (s *Store) Update(ctx context.Context, id string, fn func(*Entry)) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(entry)
	entry.UpdatedAt = time.Now().UTC()
	err = s.execWithRetry(ctx,
		`UPDATE requests
         SET status = ?, title = ?, pdf_count = ?, sent_count = ?, total_size = ?, tier = ?,
             error_kind = ?, error_message = ?, output_dir = ?, updated_at = ?
         WHERE id = ?`,
		entry.Status,
		nullableString(entry.Title),
		entry.PDFCount,
		entry.SentCount,
		entry.TotalSize,
		nullableString(entry.Tier),
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		nullableString(entry.OutputDir),
		entry.UpdatedAt.UTC().Format(timestampLayout),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update history entry: %w", err)
	}
	return nil
}

// Get returns the entry with id or an error wrapping services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM requests WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "history", "get", "request "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM requests ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Counts returns how many entries exist per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// Prune deletes terminal entries older than cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM requests WHERE created_at < ? AND status IN (?, ?, ?)`,
			cutoff.UTC().Format(timestampLayout), StatusRejected, StatusCompleted, StatusFailed)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}
