package albumlock

import (
	"strings"
	"testing"
)

func TestLockFileName(t *testing.T) {
	tests := map[string]string{
		"422866":       "422866-",
		"../../etc":    "etc-",
		"":             "album-",
		"第一话":          "album-",
		"Album 12/ab?": "Album12ab-",
	}
	for albumID, prefix := range tests {
		name := lockFileName(albumID, lockKey(albumID, "/out"))
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".lock") || strings.ContainsAny(name, "/\\") {
			t.Errorf("lockFileName(%q) = %q, want prefix %q", albumID, name, prefix)
		}
	}
	if lockFileName("1", lockKey("1", "/out/a")) == lockFileName("1", lockKey("1", "/out/b")) {
		t.Error("different directories must not share a lock file")
	}
}
