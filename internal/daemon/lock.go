// Package daemon wires the scheduler, database, store, and RPC dispatcher
// together behind the accept/dispatch loop that binds the daemon's Unix
// socket. The locking scheme here is adapted from
// steveyegge-beads' internal/daemonrunner (DaemonLock, flock-based,
// PID-file-after-lock) down to gluetube's single PID_FILE setting.
package daemon

import (
	"errors"
	"fmt"
	"os"
)

// ErrAlreadyRunning indicates another process already holds the daemon lock.
var ErrAlreadyRunning = errors.New("gluetube daemon already running")

// Lock is a held exclusive lock on the daemon's pid file.
type Lock struct {
	file *os.File
	path string
}

// Close releases the lock without removing the pid file; callers that want
// a clean shutdown should remove it separately.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// AcquireLock opens (creating if absent) pidFile, takes an exclusive
// non-blocking flock on it, and writes this process's pid, per spec.md
// §6's "pid file is written with the daemon's own pid after detach".
func AcquireLock(pidFile string) (*Lock, error) {
	f, err := os.OpenFile(pidFile, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening pid file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if err == ErrAlreadyRunning {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("locking pid file: %w", err)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()

	return &Lock{file: f, path: pidFile}, nil
}
