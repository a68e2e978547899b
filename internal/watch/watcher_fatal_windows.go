// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes that leave ReadDirectoryChangesW unusable.
const (
	errTooManyOpenFiles = syscall.Errno(4)
	errInvalidHandle    = syscall.Errno(6)
	errNotEnoughMemory  = syscall.Errno(8)
)

// exhausted reports whether err means the watcher lost its handle or could
// not allocate its notification buffer.
func exhausted(err error) bool {
	return errors.Is(err, errTooManyOpenFiles) ||
		errors.Is(err, errInvalidHandle) ||
		errors.Is(err, errNotEnoughMemory)
}
