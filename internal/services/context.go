package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	albumIDKey   contextKey = "album_id"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAlbumID annotates context with the album being fetched.
func WithAlbumID(ctx context.Context, albumID string) context.Context {
	if albumID == "" {
		return ctx
	}
	return context.WithValue(ctx, albumIDKey, albumID)
}

// AlbumIDFromContext returns the album id if present.
func AlbumIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(albumIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
