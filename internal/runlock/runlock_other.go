// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package runlock

import "log/slog"

// TryLock always succeeds where flock is unavailable; only the in-process
// single-flight guard applies.
func (l *Locker) TryLock() (release func(), ok bool, err error) {
	slog.Debug("cross-process run lock unavailable on this platform", "path", l.Path)
	return func() {}, true, nil
}
