package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"comicpdf/internal/logging"
	"comicpdf/internal/worker"
)

// Locker serializes cleanup with requests using the same album and directory.
type Locker interface {
	Acquire(ctx context.Context, albumID, dir string) (func(), error)
}

// Job describes the files one request produced.
type Job struct {
	Key     string
	AlbumID string
	Dir     string
	Files   []string
}

// JobFor builds a cleanup job from a conversion result.
func JobFor(key, albumID, dir string, result *worker.ConversionResult) Job {
	job := Job{Key: key, AlbumID: albumID, Dir: dir}
	if result != nil {
		for _, ref := range result.PDFFiles {
			if strings.TrimSpace(ref.Path) != "" {
				job.Files = append(job.Files, ref.Path)
			}
		}
	}
	return job
}

// Result contains the outcome of one cleanup.
type Result struct {
	Removed    []string
	Missing    []string
	Errors     []CleanupError
	DirRemoved bool
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

type task struct {
	job   Job
	timer *time.Timer
	done  chan struct{}
}

// Manager owns pending cleanup timers.
type Manager struct {
	locker Locker
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

// NewManager constructs a Manager. locker may be nil.
func NewManager(locker Locker, logger *slog.Logger) *Manager {
	return &Manager{
		locker: locker,
		logger: logging.NewComponentLogger(logger, "lifecycle"),
		tasks:  make(map[string]*task),
	}
}

// Schedule registers job to run once after delay. Scheduling the same key
// again replaces the earlier timer.
func (m *Manager) Schedule(job Job, delay time.Duration) {
	t := &task{job: job, done: make(chan struct{})}
	m.mu.Lock()
	if old, ok := m.tasks[job.Key]; ok {
		old.timer.Stop()
	}
	m.tasks[job.Key] = t
	t.timer = time.AfterFunc(delay, func() { m.fire(t) })
	m.mu.Unlock()

	m.logger.Debug("cleanup scheduled",
		logging.String("key", job.Key),
		logging.String(logging.FieldAlbumID, job.AlbumID),
		logging.Int("files", len(job.Files)),
		logging.Duration("delay", delay),
	)
}

func (m *Manager) fire(t *task) {
	defer close(t.done)
	m.mu.Lock()
	if cur, ok := m.tasks[t.job.Key]; ok && cur == t {
		delete(m.tasks, t.job.Key)
	}
	m.mu.Unlock()
	m.Run(context.Background(), t.job)
}

// Cancel drops a pending cleanup. It reports whether the timer was stopped
// before firing.
func (m *Manager) Cancel(key string) bool {
	m.mu.Lock()
	t, ok := m.tasks[key]
	if ok {
		delete(m.tasks, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	return t.timer.Stop()
}

// Discard cancels every pending cleanup and returns how many were dropped.
func (m *Manager) Discard() int {
	m.mu.Lock()
	tasks := m.drain()
	m.mu.Unlock()
	n := 0
	for _, t := range tasks {
		if t.timer.Stop() {
			n++
		}
	}
	return n
}

// Pending returns the number of scheduled cleanups that have not fired.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Flush runs every pending cleanup now and waits for cleanups that already
// started. Used on shutdown so files are not left behind.
func (m *Manager) Flush(ctx context.Context) {
	m.mu.Lock()
	tasks := m.drain()
	m.mu.Unlock()
	for _, t := range tasks {
		if t.timer.Stop() {
			m.Run(ctx, t.job)
			continue
		}
		select {
		case <-t.done:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) drain() []*task {
	tasks := make([]*task, 0, len(m.tasks))
	for key, t := range m.tasks {
		tasks = append(tasks, t)
		delete(m.tasks, key)
	}
	return tasks
}

// Run performs job immediately.
func (m *Manager) Run(ctx context.Context, job Job) Result {
	logger := m.logger.With(logging.String(logging.FieldAlbumID, job.AlbumID), logging.String("key", job.Key))
	if m.locker != nil && job.Dir != "" {
		release, err := m.locker.Acquire(ctx, job.AlbumID, job.Dir)
		if err != nil {
			logging.WarnWithContext(logger, "cleanup proceeding without album lock", "cleanup_lock_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions"),
				logging.String(logging.FieldImpact, "cleanup may race a concurrent request for the same album"),
			)
		} else {
			defer release()
		}
	}

	var result Result
	for _, path := range job.Files {
		removeFile(path, &result)
	}
	if job.Dir != "" {
		result.DirRemoved = removeDirIfEmpty(job.Dir, &result)
	}

	for _, e := range result.Errors {
		logging.WarnWithContext(logger, "cleanup failed", "cleanup_failed",
			logging.String("path", e.Path),
			logging.Error(e.Error),
			logging.String(logging.FieldErrorHint, "check output_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	logger.Info("cleanup finished",
		logging.Int("removed", len(result.Removed)),
		logging.Int("missing", len(result.Missing)),
		logging.Int("errors", len(result.Errors)),
		logging.Bool("dir_removed", result.DirRemoved),
		logging.String(logging.FieldEventType, "artifact_cleanup"),
	)
	return result
}

func removeFile(path string, result *Result) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.Missing = append(result.Missing, path)
			return
		}
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		return
	}
	if !info.Mode().IsRegular() {
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: errors.New("not a regular file")})
		return
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.Missing = append(result.Missing, path)
			return
		}
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		return
	}
	result.Removed = append(result.Removed, path)
}

// removeDirIfEmpty removes dir only when it has no entries left. A non-empty
// or missing directory is not an error.
func removeDirIfEmpty(dir string, result *Result) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		}
		return false
	}
	if len(entries) > 0 {
		return false
	}
	if err := os.Remove(dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		}
		return false
	}
	return true
}
