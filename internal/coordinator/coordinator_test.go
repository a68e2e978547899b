// SPDX-License-Identifier: MPL-2.0

package coordinator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

var (
	rootA = workspace.Root{Name: "a", Path: "/ws/a"}
	rootB = workspace.Root{Name: "b", Path: "/ws/b"}
	rootC = workspace.Root{Name: "c", Path: "/ws/c"}
)

func newTestCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	full := Options{
		Compiler: &fakeCompiler{},
		Headers:  &fakeHeaders{},
		Finder:   &fakeFinder{},
		Merger:   &fakeMerger{},
	}
	if _, err := New(full); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for name, mutate := range map[string]func(*Options){
		"compiler": func(o *Options) { o.Compiler = nil },
		"headers":  func(o *Options) { o.Headers = nil },
		"finder":   func(o *Options) { o.Finder = nil },
		"merger":   func(o *Options) { o.Merger = nil },
	} {
		opts := full
		mutate(&opts)
		if _, err := New(opts); err == nil {
			t.Errorf("New() without %s should fail", name)
		}
	}
}

func TestRun_MergesEveryRoot(t *testing.T) {
	t.Parallel()

	compiler := &fakeCompiler{dirs: []string{"/usr/include", "/shared"}}
	merger := &fakeMerger{}
	notifier := &recordingNotifier{}
	indicator := &countingIndicator{}

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA, rootB, rootC},
		Compiler: compiler,
		Headers: &fakeHeaders{byRoot: map[string][]string{
			rootA.Path: {"${workspaceRoot}/hdr", "/shared"},
			rootB.Path: {"${workspaceRoot}/other"},
		}},
		Finder: &fakeFinder{files: map[string][]string{
			rootA.Path: {"/ws/a/.vscode/c_cpp_properties.json", "/ws/a/sub/.vscode/c_cpp_properties.json"},
			rootB.Path: {"/ws/b/.vscode/c_cpp_properties.json"},
		}},
		Merger:    merger,
		Notifier:  notifier,
		Indicator: indicator,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := compiler.calls.Load(); got != 1 {
		t.Errorf("compiler called %d times, want 1", got)
	}
	wantA := []string{"${workspaceRoot}/hdr", "/shared", "/usr/include"}
	if diff := cmp.Diff(wantA, merger.writes["/ws/a/.vscode/c_cpp_properties.json"]); diff != "" {
		t.Errorf("root a includes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantA, merger.writes["/ws/a/sub/.vscode/c_cpp_properties.json"]); diff != "" {
		t.Errorf("root a nested includes mismatch (-want +got):\n%s", diff)
	}
	wantB := []string{"${workspaceRoot}/other", "/usr/include", "/shared"}
	if diff := cmp.Diff(wantB, merger.writes["/ws/b/.vscode/c_cpp_properties.json"]); diff != "" {
		t.Errorf("root b includes mismatch (-want +got):\n%s", diff)
	}

	if report.Updated() != 3 {
		t.Errorf("Updated() = %d, want 3", report.Updated())
	}
	if report.SkippedRoots() != 1 || !report.Roots[2].NoFiles {
		t.Errorf("root c should be skipped, got %+v", report.Roots[2])
	}
	if report.Err() != nil {
		t.Errorf("Report.Err() = %v, want nil", report.Err())
	}

	infos, errs := notifier.snapshot()
	if len(errs) != 0 {
		t.Errorf("unexpected error notices: %v", errs)
	}
	wantSummary := "Updated 3 configuration files in 3 workspace roots, 1 root without c_cpp_properties.json"
	if !slices.Contains(infos, wantSummary) {
		t.Errorf("notices = %v, want %q", infos, wantSummary)
	}
	if indicator.shows.Load() != 1 || indicator.hides.Load() != 1 {
		t.Errorf("indicator show/hide = %d/%d, want 1/1", indicator.shows.Load(), indicator.hides.Load())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
}

func TestRun_SingleFlight(t *testing.T) {
	t.Parallel()

	compiler := &fakeCompiler{
		dirs:    []string{"/usr/include"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	merger := &fakeMerger{}
	notifier := &recordingNotifier{}

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA},
		Compiler: compiler,
		Headers:  &fakeHeaders{},
		Finder:   &fakeFinder{files: map[string][]string{rootA.Path: {"/ws/a/c.json"}}},
		Merger:   merger,
		Notifier: notifier,
	})

	type result struct {
		report Report
		err    error
	}
	first := make(chan result, 1)
	go func() {
		r, err := c.Run(context.Background())
		first <- result{r, err}
	}()

	select {
	case <-compiler.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the compiler")
	}
	if c.State() != StateRunning {
		t.Errorf("State() = %s during run, want running", c.State())
	}

	second, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v, want nil", err)
	}
	if !second.Skipped {
		t.Error("second Run() should be skipped")
	}
	if merger.count() != 0 {
		t.Errorf("second trigger caused %d writes", merger.count())
	}
	infos, _ := notifier.snapshot()
	if !slices.Contains(infos, BusyNotice) {
		t.Errorf("notices = %v, want %q", infos, BusyNotice)
	}

	close(compiler.release)
	res := <-first
	if res.err != nil || res.report.Skipped {
		t.Fatalf("first Run() = %+v, %v", res.report, res.err)
	}
	if merger.count() != 1 {
		t.Errorf("writes = %d, want 1", merger.count())
	}
	if got := compiler.calls.Load(); got != 1 {
		t.Errorf("compiler called %d times, want 1", got)
	}

	if _, err := c.Run(context.Background()); err != nil {
		t.Errorf("Run() after completion error = %v", err)
	}
	if got := compiler.calls.Load(); got != 2 {
		t.Errorf("compiler called %d times after a new run, want 2", got)
	}
}

func TestRun_CompilerFailureAborts(t *testing.T) {
	t.Parallel()

	compilerErr := &issue.ExtractionError{Source: issue.SourceCompiler, Reason: "start marker not found"}
	merger := &fakeMerger{}
	headers := &fakeHeaders{}
	indicator := &countingIndicator{}

	c := newTestCoordinator(t, Options{
		Roots:     []workspace.Root{rootA, rootB},
		Compiler:  &fakeCompiler{err: compilerErr},
		Headers:   headers,
		Finder:    &fakeFinder{files: map[string][]string{rootA.Path: {"/ws/a/c.json"}}},
		Merger:    merger,
		Indicator: indicator,
	})

	_, err := c.Run(context.Background())
	if !errors.Is(err, issue.ErrExtraction) {
		t.Fatalf("Run() error = %v, want ErrExtraction", err)
	}
	if merger.count() != 0 {
		t.Errorf("writes = %d after compiler failure, want 0", merger.count())
	}
	if headers.peak != 0 {
		t.Error("build tool ran after compiler failure")
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
	if indicator.hides.Load() != 1 {
		t.Errorf("indicator hidden %d times, want 1", indicator.hides.Load())
	}
}

func TestRun_RootFailureIsolated(t *testing.T) {
	t.Parallel()

	parseErr := &issue.ParseError{Path: "/ws/c/c.json", Reason: "invalid JSON"}
	buildErr := &issue.ExtractionError{Source: issue.SourceBuildTool, Resource: rootB.Path}
	merger := &fakeMerger{errs: map[string]error{"/ws/c/c.json": parseErr}}
	notifier := &recordingNotifier{}

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA, rootB, rootC},
		Compiler: &fakeCompiler{dirs: []string{"/usr/include"}},
		Headers:  &fakeHeaders{errs: map[string]error{rootB.Path: buildErr}},
		Finder: &fakeFinder{files: map[string][]string{
			rootA.Path: {"/ws/a/c.json"},
			rootB.Path: {"/ws/b/c.json"},
			rootC.Path: {"/ws/c/c.json", "/ws/c/later.json"},
		}},
		Merger:   merger,
		Notifier: notifier,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want per-root errors only", err)
	}

	if _, ok := merger.writes["/ws/a/c.json"]; !ok {
		t.Error("root a was not updated")
	}
	if _, ok := merger.writes["/ws/c/later.json"]; ok {
		t.Error("root c kept going after a parse failure")
	}

	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("Failed() = %d roots, want 2", len(failed))
	}
	if issue.Kind(report.Roots[1].Err) != issue.KindExtraction {
		t.Errorf("root b kind = %s, want extraction", issue.Kind(report.Roots[1].Err))
	}
	if report.Roots[2].FailedFile != "/ws/c/c.json" {
		t.Errorf("root c FailedFile = %q", report.Roots[2].FailedFile)
	}
	if !errors.Is(report.Err(), issue.ErrParse) || !errors.Is(report.Err(), issue.ErrExtraction) {
		t.Errorf("Report.Err() = %v, want both failures", report.Err())
	}

	_, errs := notifier.snapshot()
	if len(errs) != 2 {
		t.Fatalf("error notices = %v, want 2", errs)
	}
	joined := strings.Join(errs, "\n")
	for _, want := range []string{"extraction failure in b", "parse failure in c (/ws/c/c.json)"} {
		if !strings.Contains(joined, want) {
			t.Errorf("error notices %q missing %q", joined, want)
		}
	}
}

func TestRun_PanicInRootIsRecovered(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA, rootB},
		Compiler: &fakeCompiler{},
		Headers:  &fakeHeaders{},
		Finder: &fakeFinder{
			files:  map[string][]string{rootB.Path: {"/ws/b/c.json"}},
			panics: map[string]bool{rootA.Path: true},
		},
		Merger: &fakeMerger{},
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Roots[0].Err == nil || !strings.Contains(report.Roots[0].Err.Error(), "panic") {
		t.Errorf("root a error = %v, want recovered panic", report.Roots[0].Err)
	}
	if report.Updated() != 1 {
		t.Errorf("Updated() = %d, want 1", report.Updated())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
}

func TestRun_PerRootCompiler(t *testing.T) {
	t.Parallel()

	compiler := &fakeCompiler{dirs: []string{"/usr/include"}}
	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA, rootB, rootC},
		Compiler: compiler,
		Headers:  &fakeHeaders{},
		Finder: &fakeFinder{files: map[string][]string{
			rootA.Path: {"/ws/a/c.json"},
			rootB.Path: {"/ws/b/c.json"},
		}},
		Merger:          &fakeMerger{},
		PerRootCompiler: true,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := compiler.calls.Load(); got != 2 {
		t.Errorf("compiler called %d times, want once per root with files (2)", got)
	}
	if report.Compiler != nil {
		t.Errorf("Report.Compiler = %v, want nil in per-root mode", report.Compiler)
	}
}

func TestRun_PerRootCompilerFailureIsolated(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, Options{
		Roots:           []workspace.Root{rootA},
		Compiler:        &fakeCompiler{err: &issue.ProcessError{Command: "g++", ExitCode: 1}},
		Headers:         &fakeHeaders{},
		Finder:          &fakeFinder{files: map[string][]string{rootA.Path: {"/ws/a/c.json"}}},
		Merger:          &fakeMerger{},
		PerRootCompiler: true,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want root-level failure", err)
	}
	if !errors.Is(report.Roots[0].Err, issue.ErrProcess) {
		t.Errorf("root error = %v, want ErrProcess", report.Roots[0].Err)
	}
}

func TestRun_Parallelism(t *testing.T) {
	t.Parallel()

	headers := &fakeHeaders{}
	files := map[string][]string{}
	roots := make([]workspace.Root, 0, 6)
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5", "r6"} {
		r := workspace.Root{Name: name, Path: "/ws/" + name}
		roots = append(roots, r)
		files[r.Path] = []string{r.Path + "/c.json"}
	}

	c := newTestCoordinator(t, Options{
		Roots:       roots,
		Compiler:    &fakeCompiler{},
		Headers:     headers,
		Finder:      &fakeFinder{files: files},
		Merger:      &fakeMerger{},
		Parallelism: 1,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Updated() != 6 {
		t.Errorf("Updated() = %d, want 6", report.Updated())
	}
	if headers.peak != 1 {
		t.Errorf("peak concurrent roots = %d, want 1", headers.peak)
	}
}

func TestRun_RootsRunConcurrently(t *testing.T) {
	t.Parallel()

	// Both root tasks must be inside the build tool at once for either to
	// pass the gate.
	headers := &fakeHeaders{gate: make(chan struct{})}
	go func() {
		deadline := time.After(5 * time.Second)
		for {
			headers.mu.Lock()
			active := headers.active
			headers.mu.Unlock()
			if active == 2 {
				close(headers.gate)
				return
			}
			select {
			case <-deadline:
				close(headers.gate)
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA, rootB},
		Compiler: &fakeCompiler{},
		Headers:  headers,
		Finder: &fakeFinder{files: map[string][]string{
			rootA.Path: {"/ws/a/c.json"},
			rootB.Path: {"/ws/b/c.json"},
		}},
		Merger: &fakeMerger{},
	})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if headers.peak != 2 {
		t.Errorf("peak concurrent roots = %d, want 2", headers.peak)
	}
}

func TestRun_LockHeldElsewhere(t *testing.T) {
	t.Parallel()

	compiler := &fakeCompiler{}
	notifier := &recordingNotifier{}
	locker := &fakeLocker{held: true}

	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA},
		Compiler: compiler,
		Headers:  &fakeHeaders{},
		Finder:   &fakeFinder{},
		Merger:   &fakeMerger{},
		Notifier: notifier,
		Locker:   locker,
	})

	report, err := c.Run(context.Background())
	if err != nil || !report.Skipped {
		t.Fatalf("Run() = %+v, %v; want skipped", report, err)
	}
	if compiler.calls.Load() != 0 {
		t.Error("compiler ran while another process held the lock")
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}

	locker.held = false
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if locker.released.Load() != 1 {
		t.Errorf("lock released %d times, want 1", locker.released.Load())
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	indicator := &countingIndicator{}
	c := newTestCoordinator(t, Options{
		Compiler:  &fakeCompiler{},
		Headers:   &fakeHeaders{},
		Finder:    &fakeFinder{},
		Merger:    &fakeMerger{},
		Indicator: indicator,
	})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.State() != StateDisposed {
		t.Errorf("State() = %s, want disposed", c.State())
	}
	if indicator.hides.Load() != 1 {
		t.Error("Close() should hide the indicator")
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Run() after Close() error = %v, want ErrDisposed", err)
	}
}

func TestClose_DuringRun(t *testing.T) {
	t.Parallel()

	compiler := &fakeCompiler{started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCoordinator(t, Options{
		Roots:    []workspace.Root{rootA},
		Compiler: compiler,
		Headers:  &fakeHeaders{},
		Finder:   &fakeFinder{},
		Merger:   &fakeMerger{},
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()
	<-compiler.started

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	close(compiler.release)
	if err := <-done; err != nil {
		t.Errorf("active Run() error = %v", err)
	}
	if c.State() != StateDisposed {
		t.Errorf("State() = %s after run, want disposed", c.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateIdle:     "idle",
		StateRunning:  "running",
		StateDisposed: "disposed",
		State(9):      "State(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}
