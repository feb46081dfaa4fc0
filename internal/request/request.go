package request

import (
	"errors"
	"fmt"
	"strings"

	"comicpdf/internal/services"
)

const (
	// DefaultStart and DefaultEnd apply when a request carries no range.
	DefaultStart = 1
	DefaultEnd   = 5
	// MaxChapters caps how many chapters one request may convert.
	MaxChapters = 6
)

// Kind classifies request-stage failures.
type Kind string

const (
	KindInvalidAlbum    Kind = "invalid_album"
	KindInvalidRange    Kind = "invalid_range"
	KindTooManyChapters Kind = "too_many_chapters"
)

// Error reports a user-correctable request problem.
type Error struct {
	Kind    Kind
	Message string
	Limit   int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is lets callers match request errors against services.ErrValidation.
func (e *Error) Is(target error) bool {
	return target == services.ErrValidation
}

// IsKind reports whether err is a request error of the given kind.
func IsKind(err error, kind Kind) bool {
	var reqErr *Error
	return errors.As(err, &reqErr) && reqErr.Kind == kind
}

// Bounds is an explicit chapter range supplied by the requester.
type Bounds struct {
	Start int
	End   int
}

// FetchRequest is a validated album conversion request.
type FetchRequest struct {
	AlbumID      string
	StartChapter int
	EndChapter   int
}

// ChapterCount returns the inclusive number of requested chapters.
func (r FetchRequest) ChapterCount() int {
	return r.EndChapter - r.StartChapter + 1
}

func (r FetchRequest) String() string {
	return fmt.Sprintf("%s[%d-%d]", r.AlbumID, r.StartChapter, r.EndChapter)
}

// Validate normalizes and bounds-checks a request. A nil bounds selects the
// default range. Rules apply in order: start below 1 is clamped, end before
// start is rejected, and ranges longer than MaxChapters are rejected.
func Validate(albumID string, bounds *Bounds) (FetchRequest, error) {
	albumID = strings.TrimSpace(albumID)
	if !validAlbumID(albumID) {
		return FetchRequest{}, &Error{Kind: KindInvalidAlbum, Message: fmt.Sprintf("invalid album id %q", albumID)}
	}

	start, end := DefaultStart, DefaultEnd
	if bounds != nil {
		start, end = bounds.Start, bounds.End
	}
	if start < 1 {
		start = 1
	}
	if end < start {
		return FetchRequest{}, &Error{Kind: KindInvalidRange, Message: "end before start"}
	}
	if count := end - start + 1; count > MaxChapters {
		return FetchRequest{}, &Error{
			Kind:    KindTooManyChapters,
			Message: fmt.Sprintf("too many chapters: %d requested, at most %d per request", count, MaxChapters),
			Limit:   MaxChapters,
		}
	}
	return FetchRequest{AlbumID: albumID, StartChapter: start, EndChapter: end}, nil
}

// Album ids end up in directory and lock file names, so only plain tokens pass.
func validAlbumID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
