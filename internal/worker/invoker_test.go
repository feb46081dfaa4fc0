package worker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicpdf/internal/request"
	"comicpdf/internal/services"
	"comicpdf/internal/worker"
)

type stubExecutor struct {
	stdout   []string
	stderr   []string
	err      error
	startErr map[string]error
	block    bool
	calls    []string
	args     [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	s.calls = append(s.calls, binary)
	s.args = append(s.args, append([]string(nil), args...))
	if err, ok := s.startErr[binary]; ok {
		return &worker.StartError{Binary: binary, Err: err}
	}
	for _, line := range s.stderr {
		onStderr(line)
	}
	for _, line := range s.stdout {
		onStdout(line)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func newInvoker(t *testing.T, exec worker.Executor, timeout time.Duration) *worker.Invoker {
	t.Helper()
	inv, err := worker.NewInvoker(worker.Options{
		Commands:   []string{"python3", "python"},
		Script:     "/opt/worker/jm.py",
		ConfigPath: "/opt/worker/jm.yml",
		Timeout:    timeout,
	}, nil, worker.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	return inv
}

func fetchRequest() request.FetchRequest {
	return request.FetchRequest{AlbumID: "422866", StartChapter: 1, EndChapter: 5}
}

const successLine = `{"success": true, "album_id": "422866", "title": "Sample", "author": "Someone", "total_chapters": 12, "start_chapter": 1, "pdf_count": 2, "total_size": 3000, "pdf_files": [{"path": "/out/1.pdf", "filename": "1.pdf", "size": 1000}, {"path": "2.pdf", "filename": "", "size": 2000}]}`

func TestInvokeParsesLastLineIgnoringGarbage(t *testing.T) {
	exec := &stubExecutor{
		stdout: []string{"downloading...", "{not json", "progress 50%", successLine, "", "   "},
		stderr: []string{"[INFO] starting", "[WARN] slow mirror", "plain text"},
		err:    errors.New("exit status 1"),
	}
	outDir := t.TempDir()
	result, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), outDir)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Title != "Sample" || result.TotalChapters != 12 || len(result.PDFFiles) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.AlbumID.String() != "422866" {
		t.Fatalf("album id = %q", result.AlbumID)
	}
	second := result.PDFFiles[1]
	if second.Path != filepath.Join(outDir, "2.pdf") || second.Filename != "2.pdf" {
		t.Fatalf("relative artifact not resolved: %+v", second)
	}
	wantArgs := []string{"/opt/worker/jm.py", "422866", "/opt/worker/jm.yml", "1", "5", outDir}
	if strings.Join(exec.args[0], "|") != strings.Join(wantArgs, "|") {
		t.Fatalf("args = %v, want %v", exec.args[0], wantArgs)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected one launch, got %v", exec.calls)
	}
}

func TestInvokeMalformedOutput(t *testing.T) {
	tests := map[string][]string{
		"empty":          nil,
		"garbage":        {"Traceback (most recent call last):", "KeyError: 'x'"},
		"truncated json": {`{"success": true, "pdf_files": [`},
		"wrong type":     {`{"success": "yes"}`},
		"null":           {"downloading", "null"},
		"empty object":   {"downloading", "{}"},
		"progress line":  {"downloading", `{"progress": 50}`},
		"json array":     {"downloading", `[{"success": true}]`},
	}
	for name, stdout := range tests {
		t.Run(name, func(t *testing.T) {
			exec := &stubExecutor{stdout: stdout, stderr: []string{"[ERROR] boom"}, err: errors.New("signal: killed")}
			_, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), t.TempDir())
			var workerErr *worker.Error
			if !errors.As(err, &workerErr) || workerErr.Kind != worker.KindMalformedOutput {
				t.Fatalf("expected malformed output, got %v", err)
			}
			if !strings.Contains(workerErr.Stderr, "[ERROR] boom") {
				t.Fatalf("expected stderr to be preserved, got %q", workerErr.Stderr)
			}
			if !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool marker")
			}
		})
	}
}

func TestInvokeWorkerReportedFailure(t *testing.T) {
	exec := &stubExecutor{stdout: []string{`{"success": false, "error": "album not found", "traceback": "..."}`}}
	_, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), t.TempDir())
	var workerErr *worker.Error
	if !errors.As(err, &workerErr) || workerErr.Kind != worker.KindWorkerReportedFailure {
		t.Fatalf("expected reported failure, got %v", err)
	}
	if workerErr.Cause() != "album not found" {
		t.Fatalf("cause = %q", workerErr.Cause())
	}
}

func TestInvokeFallsBackWhenPrimaryCannotStart(t *testing.T) {
	exec := &stubExecutor{
		startErr: map[string]error{"python3": errors.New("executable file not found")},
		stdout:   []string{successLine},
	}
	if _, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), t.TempDir()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if strings.Join(exec.calls, ",") != "python3,python" {
		t.Fatalf("calls = %v", exec.calls)
	}
}

func TestInvokeWorkerUnavailable(t *testing.T) {
	exec := &stubExecutor{startErr: map[string]error{
		"python3": errors.New("not found"),
		"python":  errors.New("not found"),
	}}
	_, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), t.TempDir())
	if kind, _ := worker.KindOf(err); kind != worker.KindWorkerUnavailable {
		t.Fatalf("expected worker unavailable, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatal("expected configuration marker")
	}
}

func TestInvokeUnwritableOutputDirSkipsLaunch(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{stdout: []string{successLine}}
	_, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), filepath.Join(blocker, "out"))
	if kind, _ := worker.KindOf(err); kind != worker.KindOutputDirUnwritable {
		t.Fatalf("expected unwritable output dir, got %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("worker should not be launched, calls=%v", exec.calls)
	}
}

func TestInvokeCreatesMissingOutputDirAndLeavesNoProbe(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "a", "b")
	exec := &stubExecutor{stdout: []string{successLine}}
	if _, err := newInvoker(t, exec, time.Minute).Invoke(context.Background(), fetchRequest(), outDir); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("output dir should exist: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}
}

func TestInvokeTimeout(t *testing.T) {
	exec := &stubExecutor{block: true, stdout: []string{"partial"}}
	_, err := newInvoker(t, exec, 50*time.Millisecond).Invoke(context.Background(), fetchRequest(), t.TempDir())
	var workerErr *worker.Error
	if !errors.As(err, &workerErr) || workerErr.Kind != worker.KindWorkerTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatal("expected timeout marker")
	}
	if !strings.Contains(workerErr.Stdout, "partial") {
		t.Fatalf("expected stdout preserved, got %q", workerErr.Stdout)
	}
}

func TestInvokeParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &stubExecutor{block: true}
	_, err := newInvoker(t, exec, time.Minute).Invoke(ctx, fetchRequest(), t.TempDir())
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, ok := worker.KindOf(err); ok {
		t.Fatalf("cancellation should not be a worker error kind: %v", err)
	}
}

func TestValidateResult(t *testing.T) {
	err := worker.ValidateResult(&worker.ConversionResult{Success: true})
	if kind, _ := worker.KindOf(err); kind != worker.KindNoArtifacts {
		t.Fatalf("expected no artifacts, got %v", err)
	}
	if kind, _ := worker.KindOf(worker.ValidateResult(nil)); kind != worker.KindNoArtifacts {
		t.Fatal("nil result should have no artifacts")
	}
	ok := &worker.ConversionResult{Success: true, PDFFiles: []worker.ArtifactRef{{Path: "/x.pdf"}}}
	if err := worker.ValidateResult(ok); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNewInvokerRequiresCommandAndScript(t *testing.T) {
	if _, err := worker.NewInvoker(worker.Options{Script: "x"}, nil); err == nil {
		t.Fatal("expected error without commands")
	}
	if _, err := worker.NewInvoker(worker.Options{Commands: []string{"python3"}}, nil); err == nil {
		t.Fatal("expected error without script")
	}
}
