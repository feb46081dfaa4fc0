package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comicpdf/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicpdf.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("offset = %d, want 6", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTailFiltersByField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicpdf.log")
	content := "2026-05-01 INFO request accepted request_id=abc album_id=422866\n" +
		"2026-05-01 INFO request accepted request_id=abcd album_id=350234\n" +
		`{"msg":"worker finished","request_id":"abc","album_id":"422866"}` + "\n" +
		"2026-05-01 INFO webhook listening addr=127.0.0.1:7488\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: -1,
		Limit:  10,
		Match:  logs.FieldMatcher("request_id", "abc"),
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 matching lines, got %#v", result.Lines)
	}

	match := logs.All(logs.FieldMatcher("album_id", "350234"), nil)
	result, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Match: match})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected 1 line for album, got %#v", result.Lines)
	}
	if logs.FieldMatcher("request_id", "") != nil || logs.All(nil, nil) != nil {
		t.Fatal("empty matchers should be nil")
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicpdf.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected initial line, got %#v", result.Lines)
	}

	type tailOutcome struct {
		res logs.TailResult
		err error
	}
	done := make(chan tailOutcome, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		done <- tailOutcome{res, err}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("follow tail error: %v", out.err)
		}
		if len(out.res.Lines) != 1 || out.res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", out.res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailPartialLineIsDeferred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicpdf.log")
	if err := os.WriteFile(path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Lines) != 1 || result.Offset != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
}
