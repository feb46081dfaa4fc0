package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry                              Entry
		source, requester, title, tier     sql.NullString
		errorKind, errorMessage, outputDir sql.NullString
		status, createdAt, updatedAt       string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.AlbumID,
		&entry.StartChapter,
		&entry.EndChapter,
		&source,
		&requester,
		&status,
		&title,
		&entry.PDFCount,
		&entry.SentCount,
		&entry.TotalSize,
		&tier,
		&errorKind,
		&errorMessage,
		&outputDir,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	entry.Source = source.String
	entry.Requester = requester.String
	entry.Status = Status(status)
	entry.Title = title.String
	entry.Tier = tier.String
	entry.ErrorKind = errorKind.String
	entry.ErrorMessage = errorMessage.String
	entry.OutputDir = outputDir.String

	var err error
	if entry.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
