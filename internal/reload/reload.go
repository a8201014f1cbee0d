// Package reload restarts the server when its binary is rebuilt. It is meant
// for development; the watch is a modification-time poll.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Watcher polls one file and reports when its modification time moves past
// the baseline taken at creation.
type Watcher struct {
	path     string
	baseline time.Time
	interval time.Duration
}

// NewWatcher watches path, resolving symlinks so a rebuilt target is seen
// even when the link itself is unchanged.
func NewWatcher(path string, interval time.Duration) (*Watcher, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &Watcher{
		path:     path,
		baseline: info.ModTime(),
		interval: interval,
	}, nil
}

// ForExecutable watches the running binary.
func ForExecutable(interval time.Duration) (*Watcher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return NewWatcher(exe, interval)
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Baseline returns the modification time changes are measured against.
func (w *Watcher) Baseline() time.Time {
	return w.baseline
}

// Changed reports whether the file is newer than the baseline.
func (w *Watcher) Changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// Mid-rebuild the file may briefly not exist.
		return false
	}
	return info.ModTime().After(w.baseline)
}

// Wait blocks until the file changes or ctx is done. It returns nil on a
// change and ctx.Err() otherwise.
func (w *Watcher) Wait(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.Changed() {
				return nil
			}
		}
	}
}

// Restart replaces the current process with a fresh instance of the watched
// binary, keeping arguments and environment. It does not return on success.
func (w *Watcher) Restart() error {
	return syscall.Exec(w.path, os.Args, os.Environ())
}
