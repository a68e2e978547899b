// SPDX-License-Identifier: MPL-2.0

package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

type (
	fakeCompiler struct {
		dirs    []string
		err     error
		calls   atomic.Int32
		started chan struct{} // closed on first call when non-nil
		release chan struct{} // Extract blocks until closed when non-nil
		once    sync.Once
	}

	fakeHeaders struct {
		byRoot map[string][]string
		errs   map[string]error
		mu     sync.Mutex
		active int
		peak   int
		gate   chan struct{}
	}

	fakeFinder struct {
		files  map[string][]string
		errs   map[string]error
		panics map[string]bool
	}

	fakeMerger struct {
		mu     sync.Mutex
		writes map[string][]string
		errs   map[string]error
	}

	recordingNotifier struct {
		mu    sync.Mutex
		infos []string
		errs  []string
	}

	countingIndicator struct {
		shows atomic.Int32
		hides atomic.Int32
	}

	fakeLocker struct {
		held     bool
		released atomic.Int32
	}
)

func (f *fakeCompiler) Extract(context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	return f.dirs, f.err
}

func (f *fakeHeaders) Extract(_ context.Context, root string) ([]string, error) {
	f.mu.Lock()
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if f.gate != nil {
		<-f.gate
	}
	if err := f.errs[root]; err != nil {
		return nil, err
	}
	return f.byRoot[root], nil
}

func (f *fakeFinder) Find(root workspace.Root) ([]string, error) {
	if f.panics[root.Path] {
		panic("finder exploded")
	}
	if err := f.errs[root.Path]; err != nil {
		return nil, err
	}
	return f.files[root.Path], nil
}

func (f *fakeMerger) MergeFile(path string, includes []string) ([]byte, error) {
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writes == nil {
		f.writes = map[string][]string{}
	}
	f.writes[path] = includes
	return []byte("merged"), nil
}

func (f *fakeMerger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, msg)
}

func (n *recordingNotifier) snapshot() (infos, errs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...), append([]string(nil), n.errs...)
}

func (i *countingIndicator) Show(string) { i.shows.Add(1) }
func (i *countingIndicator) Hide()       { i.hides.Add(1) }

func (l *fakeLocker) TryLock() (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func() { l.released.Add(1) }, true, nil
}
