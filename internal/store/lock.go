package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// A lockfile older than this is considered abandoned by a crashed
	// process and may be taken over.
	staleLockAge = 10 * time.Second

	lockRetryBase = 25 * time.Millisecond
	lockRetryMax  = 500 * time.Millisecond
	lockAttempts  = 20
)

// lockManager serializes access per path, both across goroutines in
// this process (mutex map) and across processes (O_EXCL lockfiles with
// stale takeover).
type lockManager struct {
	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

func newLockManager() *lockManager {
	return &lockManager{paths: make(map[string]*sync.Mutex)}
}

func (m *lockManager) pathMutex(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paths[path]
	if !ok {
		pm = &sync.Mutex{}
		m.paths[path] = pm
	}
	return pm
}

// acquire takes the in-process mutex for path, then the on-disk
// lockfile with bounded retry and backoff. The returned func releases
// both. Failure after all attempts is fatal for the single operation.
func (m *lockManager) acquire(lockfile string) (func(), error) {
	pm := m.pathMutex(lockfile)
	pm.Lock()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		pm.Unlock()
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}

	delay := lockRetryBase
	for attempt := 1; attempt <= lockAttempts; attempt++ {
		f, err := os.OpenFile(lockfile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() {
				_ = os.Remove(lockfile)
				pm.Unlock()
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			pm.Unlock()
			return nil, fmt.Errorf("create lockfile: %w", err)
		}
		if info, statErr := os.Stat(lockfile); statErr == nil {
			if time.Since(info.ModTime()) > staleLockAge {
				// Holder likely crashed; remove and retry immediately.
				_ = os.Remove(lockfile)
				continue
			}
		}
		time.Sleep(delay)
		delay *= 2
		if delay > lockRetryMax {
			delay = lockRetryMax
		}
	}
	pm.Unlock()
	return nil, fmt.Errorf("acquire lock %s: timed out after %d attempts", lockfile, lockAttempts)
}
