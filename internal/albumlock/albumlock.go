// Package albumlock serializes work on the same album and output directory.
//
// A request holds the lock from worker launch until delivery finishes, and the
// deferred cleanup takes the same lock before deleting files, so neither a
// second request nor an early cleanup can touch files that are still being
// written or sent. The lock is an in-process keyed semaphore backed by a
// flock file so separate comicpdf processes sharing a state directory also
// serialize.
package albumlock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const defaultRetryDelay = 250 * time.Millisecond

type entry struct {
	sem  chan struct{}
	refs int
}

// Locker hands out per-(album, directory) locks.
type Locker struct {
	dir        string
	retryDelay time.Duration

	mu   sync.Mutex
	keys map[string]*entry
}

// New returns a Locker that keeps lock files in lockDir. An empty lockDir
// disables the cross-process file lock.
func New(lockDir string) *Locker {
	return &Locker{
		dir:        lockDir,
		retryDelay: defaultRetryDelay,
		keys:       make(map[string]*entry),
	}
}

// Acquire blocks until the lock for albumID and dir is held or ctx ends. The
// returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, albumID, dir string) (func(), error) {
	key := lockKey(albumID, dir)
	e := l.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}

	var fileLock *flock.Flock
	if l.dir != "" {
		fl, err := l.lockFile(ctx, albumID, key)
		if err != nil {
			<-e.sem
			l.unref(key)
			return nil, err
		}
		fileLock = fl
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			<-e.sem
			l.unref(key)
		})
	}, nil
}

func (l *Locker) lockFile(ctx context.Context, albumID, key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(l.dir, lockFileName(albumID, key)))
	ok, err := fl.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire album lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire album lock: %s is held elsewhere", fl.Path())
	}
	return fl, nil
}

func (l *Locker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.keys, key)
	}
}

func lockKey(albumID, dir string) string {
	if dir != "" {
		dir = filepath.Clean(dir)
	}
	return albumID + "\x00" + dir
}

func lockFileName(albumID, key string) string {
	sum := sha256.Sum256([]byte(key))
	return lockToken(albumID) + "-" + hex.EncodeToString(sum[:6]) + ".lock"
}

// lockToken keeps the ASCII letters and digits of albumID for a readable
// lock file name. The hash suffix in lockFileName keeps names unique.
func lockToken(albumID string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		}
		return -1
	}, albumID)
	if len(token) > 32 {
		token = token[:32]
	}
	if token == "" {
		return "album"
	}
	return token
}
