package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"comicpdf/internal/logging"
)

var requestDirPattern = regexp.MustCompile(`^[0-9A-Za-z]{1,32}-[0-9a-f]{8}$`)

// RequestDirName names the per-request output directory for albumID.
// requestID must be at least eight hex characters long.
func RequestDirName(albumID, requestID string) string {
	return albumID + "-" + requestID[:8]
}

// IsRequestDir reports whether name has the shape RequestDirName produces.
func IsRequestDir(name string) bool {
	return requestDirPattern.MatchString(name)
}

// SweepResult contains the outcome of a stale output sweep.
type SweepResult struct {
	Removed []string
	Errors  []CleanupError
}

// SweepStale removes top-level PDFs in outputDir older than maxAge. With
// requestDirs set it also removes old directories named like RequestDirName.
// Anything else in outputDir belongs to someone else and is left alone.
func SweepStale(ctx context.Context, outputDir string, maxAge time.Duration, requestDirs bool, logger *slog.Logger) SweepResult {
	result := SweepResult{}

	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return result
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: outputDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(outputDir, entry.Name())
		if entry.IsDir() {
			if !requestDirs || !IsRequestDir(entry.Name()) {
				continue
			}
		} else if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale output", "output_sweep_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check output_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale output",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "output_sweep"),
			)
		}
	}
	return result
}

// DirUsage summarizes what the output directory currently holds.
type DirUsage struct {
	Dirs  int
	Files int
	Bytes int64
}

// Usage walks outputDir and totals its contents. A missing directory is empty.
func Usage(outputDir string) (DirUsage, error) {
	var usage DirUsage
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return usage, nil
	}
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		return usage, nil
	}
	err := filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if path == outputDir {
			return nil
		}
		if info.IsDir() {
			usage.Dirs++
			return nil
		}
		usage.Files++
		usage.Bytes += info.Size()
		return nil
	})
	return usage, err
}
