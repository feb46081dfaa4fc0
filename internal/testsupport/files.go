package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const pdfHeader = "%PDF-1.4\n"

// WritePDF writes a placeholder chapter PDF of exactly size bytes, creating
// parent directories. The content starts with a PDF header when it fits.
func WritePDF(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 0 {
		size = 0
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	body := make([]byte, 0, size)
	body = append(body, pdfHeader...)
	if int64(len(body)) > size {
		body = body[:size]
	}
	body = append(body, bytes.Repeat([]byte{'0'}, int(size)-len(body))...)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
