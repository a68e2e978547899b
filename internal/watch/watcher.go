// SPDX-License-Identifier: MPL-2.0

// Package watch re-triggers header updates when a robot project's build
// inputs change.
//
// A Watcher observes one or more workspace roots and calls OnChange after a
// quiet period, with every changed path collected during the window. When
// the handler reports ErrBusy the changes are kept and retried after another
// debounce period, so edits made during a long update are not lost.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is long enough for an IDE "save all" or a vendordep
// install to settle into one update.
const DefaultDebounce = time.Second

// ErrBusy is returned by an OnChange handler that could not start because an
// update is already running. The changed paths are retried.
var ErrBusy = errors.New("watch: handler busy")

var (
	// defaultPatterns are the files that change a project's header set.
	defaultPatterns = []string{
		"**/*.gradle",
		"**/*.gradle.kts",
		"**/vendordeps/*.json",
	}

	// defaultIgnores are never descended into or reported. Gradle output
	// under build/ and .gradle/ churns constantly during getHeaders itself.
	defaultIgnores = []string{
		"**/.git/**",
		"**/.gradle/**",
		"**/build/**",
		"**/node_modules/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories to watch recursively.
		Roots []string
		// Patterns select which files trigger OnChange, relative to the root
		// containing them. Empty means DefaultPatterns.
		Patterns []string
		// Ignore adds to the built-in ignore patterns.
		Ignore []string
		// Debounce is the quiet period before OnChange fires. Zero or
		// negative means DefaultDebounce.
		Debounce time.Duration
		// OnChange receives the absolute paths changed during the window.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher monitors workspace roots. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		patterns []string
		ignores  []string
		debounce time.Duration
		started  atomic.Bool
	}
)

// DefaultPatterns returns a copy of the built-in trigger patterns.
func DefaultPatterns() []string {
	return slices.Clone(defaultPatterns)
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// Validate checks Roots and every glob pattern.
func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("watch: no roots"))
	}
	for _, pat := range c.Patterns {
		if !doublestar.ValidatePattern(pat) || pat == "" {
			errs = append(errs, fmt.Errorf("watch: invalid pattern %q", pat))
		}
	}
	for _, pat := range c.Ignore {
		if !doublestar.ValidatePattern(pat) || pat == "" {
			errs = append(errs, fmt.Errorf("watch: invalid ignore pattern %q", pat))
		}
	}
	return errors.Join(errs...)
}

// New validates cfg, creates the fsnotify watcher and registers every
// non-ignored directory under each root.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve root %q: %w", r, err)
		}
		roots = append(roots, abs)
	}
	// Longest first so nested roots claim their own events.
	slices.SortFunc(roots, func(a, b string) int { return len(b) - len(a) })

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    roots,
		patterns: patterns,
		ignores:  append(DefaultIgnores(), cfg.Ignore...),
		debounce: debounce,
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				slog.Debug("close fsnotify after init failure", "error", closeErr)
			}
			return nil, err
		}
	}
	return w, nil
}

// Run processes filesystem events until ctx is cancelled. It returns nil on
// cancellation and an error when the watcher can no longer work.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange == nil {
			return
		}
		err := w.cfg.OnChange(ctx, changed)
		switch {
		case errors.Is(err, ErrBusy):
			slog.Debug("update busy, retrying changes after debounce", "changed", len(changed))
			mu.Lock()
			for _, p := range changed {
				pending[p] = struct{}{}
			}
			timer.Reset(w.debounce)
			mu.Unlock()
		case err != nil:
			slog.Error("watch handler failed", "error", err)
		}
	}

	// Armed by the first event.
	mu.Lock()
	timer = time.AfterFunc(time.Hour, fire)
	timer.Stop()
	mu.Unlock()

	defer func() {
		mu.Lock()
		timer.Stop()
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			slog.Debug("close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			root, rel, ok := w.locate(evt.Name)
			if !ok || w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(root, evt.Name)
			}
			if !w.matches(rel) {
				continue
			}

			slog.Debug("build input changed", "path", evt.Name, "op", evt.Op.String())
			mu.Lock()
			pending[evt.Name] = struct{}{}
			timer.Reset(w.debounce)
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if exhausted(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			slog.Warn("fsnotify error", "error", err)
		}
	}
}

// addTree registers root and its non-ignored subdirectories. Inaccessible
// directories are skipped.
func (w *Watcher) addTree(root string) error {
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Debug("watch: skipping inaccessible path", "path", path, "error", err)
			return nil //nolint:nilerr // keep walking past unreadable directories
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, path); relErr == nil && rel != "." && w.isIgnoredDir(rel) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk %s: %w", root, walkErr)
	}
	return nil
}

// maybeAddDir extends the watch to a directory created after startup.
func (w *Watcher) maybeAddDir(root, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || w.isIgnoredDir(rel) {
		return
	}
	if err := w.addTree(path); err != nil {
		slog.Warn("watch new directory", "path", path, "error", err)
	}
}

// locate returns the root containing path and path relative to it.
func (w *Watcher) locate(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r, rel, true
	}
	return "", "", false
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, filepath.ToSlash(rel))
}

// isIgnoredDir also tests a child of rel, so patterns such as "**/build/**"
// prune the directory itself.
func (w *Watcher) isIgnoredDir(rel string) bool {
	return w.isIgnored(rel) || w.isIgnored(filepath.Join(rel, "x"))
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}
