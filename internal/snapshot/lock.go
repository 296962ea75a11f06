package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pablasso/etp/internal/errors"
)

const lockExt = ".lock"

// WatchLock keeps two watchers from writing the snapshot of the same IP.
type WatchLock struct {
	ipID string
	path string
	// err is set when ipID cannot name a lock file.
	err error
}

// NewWatchLock creates the lock for ipID in dir.
// An invalid id makes every method fail.
func NewWatchLock(dir, ipID string) *WatchLock {
	if err := CheckID(ipID); err != nil {
		return &WatchLock{ipID: ipID, err: err}
	}
	return &WatchLock{
		ipID: ipID,
		path: filepath.Join(dir, ipID+lockExt),
	}
}

// Acquire takes the lock. It fails with ErrLocked while another live
// process holds it; locks left by dead processes are removed.
func (l *WatchLock) Acquire() error {
	if l.err != nil {
		return l.err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := l.create()
	if err == nil {
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	pid, held, err := l.holder()
	if err != nil {
		return err
	}
	if held {
		return fmt.Errorf("%s is already being watched (PID %d): %w", l.ipID, pid, errors.ErrLocked)
	}

	// Only one retry after removing the stale lock.
	if err := l.create(); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock acquired by another process during retry: %w", errors.ErrLocked)
		}
		return fmt.Errorf("failed to create lock file on retry: %w", err)
	}
	return nil
}

func (l *WatchLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", writeErr)
	}
	return nil
}

// holder reads the lock file. A lock with an invalid pid or a dead
// process is removed and reported as not held.
func (l *WatchLock) holder() (int, bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read existing lock file: %w", err)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr == nil && processExists(pid) {
		return pid, true, nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return 0, false, fmt.Errorf("failed to remove stale lock file: %w", err)
	}
	return 0, false, nil
}

// IsLocked reports whether a live process holds the lock.
func (l *WatchLock) IsLocked() (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	_, held, err := l.holder()
	return held, err
}

// Release removes the lock file. Releasing twice is not an error.
func (l *WatchLock) Release() error {
	if l.err != nil {
		return l.err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// processExists sends signal 0, which checks for the process without
// signalling it.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
