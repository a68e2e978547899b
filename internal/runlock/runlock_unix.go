// SPDX-License-Identifier: MPL-2.0

//go:build unix

package runlock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// TryLock attempts the lock without blocking. When another process holds it,
// ok is false and err is nil. On success the returned release function must
// be called; it is safe to call more than once.
func (l *Locker) TryLock() (release func(), ok bool, err error) {
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file %s: %w", l.Path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck // lock not taken
		if errors.Is(err, unix.EWOULDBLOCK) {
			slog.Debug("run lock held by another process", "path", l.Path)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock %s: %w", l.Path, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			slog.Debug("flock unlock failed", "error", err)
		}
		if err := f.Close(); err != nil {
			slog.Debug("lock file close failed", "error", err)
		}
	}, true, nil
}
