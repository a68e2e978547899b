// SPDX-License-Identifier: MPL-2.0

// Package runlock keeps two wpiheaders processes from updating the same
// machine's configuration files at once.
//
// The lock is an advisory flock on a well-known file. The kernel releases it
// when the descriptor closes, including on a crash, so an orphaned zero-byte
// lock file is harmless.
package runlock

import (
	"os"
	"path/filepath"
)

// FileName is the lock file shared by all wpiheaders processes of a user.
const FileName = "wpiheaders.lock"

// Locker tries a non-blocking exclusive lock on Path.
type Locker struct {
	Path string
}

// New returns a Locker for path, or for DefaultPath when path is empty.
func New(path string) *Locker {
	if path == "" {
		path = DefaultPath()
	}
	return &Locker{Path: path}
}

// DefaultPath returns the lock file path, preferring $XDG_RUNTIME_DIR
// (per-user tmpfs) over os.TempDir().
func DefaultPath() string {
	return defaultPathWith(os.Getenv)
}

func defaultPathWith(getenv func(string) string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, FileName)
}
