package pipeline

import (
	"context"
	"errors"
	"fmt"

	"comicpdf/internal/request"
	"comicpdf/internal/worker"
)

func ackText(req request.FetchRequest) string {
	return fmt.Sprintf("⏳ Hang tight, fetching album %s (chapters %d-%d)...", req.AlbumID, req.StartChapter, req.EndChapter)
}

func rejectionText(err error) string {
	var reqErr *request.Error
	if !errors.As(err, &reqErr) {
		return "❌ " + err.Error()
	}
	switch reqErr.Kind {
	case request.KindInvalidRange:
		return "❌ End chapter cannot be before the start chapter"
	case request.KindTooManyChapters:
		return fmt.Sprintf("❌ At most %d chapters per request\nPlease narrow the range and retry", reqErr.Limit)
	case request.KindInvalidAlbum:
		return "❌ " + reqErr.Message + "\n\n" + request.UsageText
	default:
		return "❌ " + reqErr.Error()
	}
}

func rejectionKind(err error) string {
	var reqErr *request.Error
	if errors.As(err, &reqErr) {
		return string(reqErr.Kind)
	}
	return "invalid_request"
}

func failureText(cause error) string {
	return "❌ Operation failed\nError: " + causeText(cause)
}

// causeText returns the most specific reason available.
func causeText(cause error) string {
	var workerErr *worker.Error
	if errors.As(cause, &workerErr) {
		return workerErr.Cause()
	}
	if cause == nil {
		return "unknown error"
	}
	return cause.Error()
}

func failureKind(cause error) string {
	if kind, ok := worker.KindOf(cause); ok {
		return string(kind)
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "internal"
}
