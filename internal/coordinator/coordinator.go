// SPDX-License-Identifier: MPL-2.0

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/ccprops"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

const (
	// BusyNotice is shown when a trigger arrives during an active run.
	BusyNotice = "Header update already in progress"
	// BusyLabel is the busy indicator text.
	BusyLabel = "Updating C++ headers"
)

// ErrDisposed is returned by Run after Close.
var ErrDisposed = errors.New("coordinator is disposed")

const (
	// StateIdle accepts a new run.
	StateIdle State = iota
	// StateRunning rejects triggers until the active run finishes.
	StateRunning
	// StateDisposed is terminal.
	StateDisposed
)

type (
	// State is the lifecycle of a Coordinator.
	State int32

	// CompilerSource yields the compiler's built-in include directories.
	CompilerSource interface {
		Extract(ctx context.Context) ([]string, error)
	}

	// HeaderSource yields the library include directories of one root.
	HeaderSource interface {
		Extract(ctx context.Context, root string) ([]string, error)
	}

	// FileFinder lists the configuration files of a root.
	FileFinder interface {
		Find(root workspace.Root) ([]string, error)
	}

	// FileMerger applies an include list to one configuration file and
	// returns the resulting document.
	FileMerger interface {
		MergeFile(path string, includes []string) ([]byte, error)
	}

	// Indicator is a busy indicator visible for the duration of a run.
	Indicator interface {
		Show(label string)
		Hide()
	}

	// Notifier delivers user-facing notices.
	Notifier interface {
		Info(msg string)
		Error(msg string)
	}

	// Locker guards runs across processes. TryLock reports ok=false with a
	// nil error when another process holds the lock.
	Locker interface {
		TryLock() (release func(), ok bool, err error)
	}

	// Options wires a Coordinator. Compiler, Headers, Finder and Merger are
	// required.
	Options struct {
		Roots    []workspace.Root
		Compiler CompilerSource
		Headers  HeaderSource
		Finder   FileFinder
		Merger   FileMerger

		Indicator Indicator
		Notifier  Notifier
		Locker    Locker

		// Parallelism caps concurrently processed roots. Zero or negative
		// means one task per root.
		Parallelism int
		// PerRootCompiler extracts compiler includes inside each root task
		// instead of once per run. A compiler failure then fails only that
		// root.
		PerRootCompiler bool
	}

	// Coordinator runs header updates one at a time.
	Coordinator struct {
		opts  Options
		state atomic.Int32
	}
)

// New validates opts and returns an idle Coordinator.
func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.Compiler == nil:
		return nil, errors.New("coordinator: compiler source is required")
	case opts.Headers == nil:
		return nil, errors.New("coordinator: header source is required")
	case opts.Finder == nil:
		return nil, errors.New("coordinator: file finder is required")
	case opts.Merger == nil:
		return nil, errors.New("coordinator: file merger is required")
	}
	if opts.Indicator == nil {
		opts.Indicator = nopIndicator{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Coordinator{opts: opts}, nil
}

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Run performs one header update over all roots.
//
// When another run is active, in this process or (with a Locker) another
// one, Run shows BusyNotice and returns a Report with Skipped set and a nil
// error. A compiler failure aborts the run and is returned as the error.
// Failures confined to a root are recorded in that root's RootReport.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if c.State() == StateDisposed {
			return Report{}, ErrDisposed
		}
		slog.Info("header update trigger ignored, run in progress")
		c.opts.Notifier.Info(BusyNotice)
		return Report{Skipped: true}, nil
	}
	// Close may move the state to disposed mid-run; that must stick.
	defer c.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))

	if c.opts.Locker != nil {
		release, ok, err := c.opts.Locker.TryLock()
		if err != nil {
			return Report{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			slog.Info("header update trigger ignored, another process is running")
			c.opts.Notifier.Info(BusyNotice)
			return Report{Skipped: true}, nil
		}
		defer release()
	}

	c.opts.Indicator.Show(BusyLabel)
	hide := sync.OnceFunc(c.opts.Indicator.Hide)
	defer hide()

	start := time.Now()
	report := Report{Roots: make([]RootReport, len(c.opts.Roots))}

	var compilerIncludes []string
	if !c.opts.PerRootCompiler {
		var err error
		compilerIncludes, err = c.opts.Compiler.Extract(ctx)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("extract compiler includes: %w", err)
		}
		report.Compiler = compilerIncludes
	}

	var g errgroup.Group
	if c.opts.Parallelism > 0 {
		g.SetLimit(c.opts.Parallelism)
	}
	for i, root := range c.opts.Roots {
		g.Go(func() error {
			report.Roots[i] = c.processRoot(ctx, root, compilerIncludes)
			return nil
		})
	}
	_ = g.Wait() // root tasks record their errors instead of returning them

	report.Duration = time.Since(start)
	// Notices are printed after the indicator is gone.
	hide()
	c.notifyCompletion(report)
	return report, nil
}

// Close disposes of the Coordinator. An active run finishes; later Run
// calls return ErrDisposed.
func (c *Coordinator) Close() error {
	c.state.Store(int32(StateDisposed))
	c.opts.Indicator.Hide()
	return nil
}

func (c *Coordinator) processRoot(ctx context.Context, root workspace.Root, compilerIncludes []string) (rr RootReport) {
	rr.Root = root
	logger := slog.With("root", root.Path)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing root", "panic", r)
			rr.Err = fmt.Errorf("panic while processing %s: %v", root.Name, r)
		}
	}()

	files, err := c.opts.Finder.Find(root)
	if err != nil {
		rr.Err = err
		return rr
	}
	if len(files) == 0 {
		logger.Debug("no configuration files, skipping root")
		rr.NoFiles = true
		return rr
	}

	if c.opts.PerRootCompiler {
		if compilerIncludes, err = c.opts.Compiler.Extract(ctx); err != nil {
			rr.Err = err
			return rr
		}
	}

	projectIncludes, err := c.opts.Headers.Extract(ctx, root.Path)
	if err != nil {
		rr.Err = err
		return rr
	}
	includes := ccprops.MergeIncludes(projectIncludes, compilerIncludes)
	logger.Debug("merged include list", "project", len(projectIncludes), "compiler", len(compilerIncludes), "total", len(includes))

	for _, path := range files {
		content, err := c.opts.Merger.MergeFile(path, includes)
		if err != nil {
			rr.Err = err
			rr.FailedFile = path
			return rr
		}
		rr.Files = append(rr.Files, FileReport{Path: path, Content: content})
		logger.Info("updated configuration", "file", path)
	}
	return rr
}

func (c *Coordinator) notifyCompletion(report Report) {
	for _, rr := range report.Failed() {
		c.opts.Notifier.Error(rr.FailureMessage())
	}
	c.opts.Notifier.Info(report.Summary())
}

type (
	nopIndicator struct{}
	nopNotifier  struct{}
)

func (nopIndicator) Show(string) {}
func (nopIndicator) Hide()       {}
func (nopNotifier) Info(string)  {}
func (nopNotifier) Error(string) {}
