package request_test

import (
	"testing"

	"comicpdf/internal/request"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text      string
		kind      request.CommandKind
		album     string
		hasBounds bool
		start     int
		end       int
	}{
		{text: "#jm 422866", kind: request.CommandFetch, album: "422866"},
		{text: "jm 422866", kind: request.CommandFetch, album: "422866"},
		{text: "#JM 422866 3-5", kind: request.CommandFetch, album: "422866", hasBounds: true, start: 3, end: 5},
		{text: "#_jm 1 1-6", kind: request.CommandFetch, album: "1", hasBounds: true, start: 1, end: 6},
		{text: "  jm 7 0-2  ", kind: request.CommandFetch, album: "7", hasBounds: true, start: 0, end: 2},
		{text: "#jm", kind: request.CommandUsage},
		{text: "#jm abc", kind: request.CommandUsage},
		{text: "jm 422866 3", kind: request.CommandUsage},
		{text: "#help", kind: request.CommandHelp},
		{text: "帮助", kind: request.CommandHelp},
		{text: "#jm help", kind: request.CommandHelp},
		{text: "hello there", kind: request.CommandNone},
		{text: "jmx 1", kind: request.CommandNone},
		{text: "", kind: request.CommandNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd := request.ParseCommand(tt.text)
			if cmd.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", cmd.Kind, tt.kind)
			}
			if cmd.AlbumID != tt.album {
				t.Fatalf("album = %q, want %q", cmd.AlbumID, tt.album)
			}
			if (cmd.Bounds != nil) != tt.hasBounds {
				t.Fatalf("bounds = %+v, want present=%v", cmd.Bounds, tt.hasBounds)
			}
			if tt.hasBounds && (cmd.Bounds.Start != tt.start || cmd.Bounds.End != tt.end) {
				t.Fatalf("bounds = %+v", cmd.Bounds)
			}
		})
	}
}

func TestParseBounds(t *testing.T) {
	b, err := request.ParseBounds("2-4")
	if err != nil || b == nil || b.Start != 2 || b.End != 4 {
		t.Fatalf("ParseBounds = %+v, %v", b, err)
	}
	if b, err := request.ParseBounds(""); err != nil || b != nil {
		t.Fatalf("empty range should be nil, got %+v %v", b, err)
	}
	for _, bad := range []string{"3", "a-2", "2-b"} {
		if _, err := request.ParseBounds(bad); !request.IsKind(err, request.KindInvalidRange) {
			t.Fatalf("%q: expected invalid range, got %v", bad, err)
		}
	}
}
