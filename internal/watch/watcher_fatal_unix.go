// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// exhausted reports whether err means the kernel refused more watches or
// descriptors (inotify max_user_watches, EMFILE, ENFILE). The watcher cannot
// recover from these.
func exhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
