// SPDX-License-Identifier: MPL-2.0

// Package compiler discovers the built-in include search path of the
// cross-compiler by reading its verbose preprocessor trace.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/procrun"
)

const (
	// DefaultCommand asks the roboRIO g++ to preprocess nothing and describe
	// where it searches for headers.
	DefaultCommand = "arm-frc-linux-gnueabi-g++ -xc++ -E -v -fsyntax-only ."
	// DefaultStartMarker opens the angle-bracket include search list.
	DefaultStartMarker = "#include <...> search starts here:"
	// DefaultEndMarker closes it.
	DefaultEndMarker = "End of search list."
	// DefaultTimeout bounds one compiler invocation.
	DefaultTimeout = 30 * time.Second
)

// TraceFormat identifies the layout of a compiler's verbose trace.
type TraceFormat string

// TraceFormatGCC is the GNU toolchain layout: one indented directory per line
// between the start and end markers, written to stderr.
const TraceFormatGCC TraceFormat = "gcc"

type (
	// Markers delimit the include search list in the trace.
	Markers struct {
		Start string
		End   string
	}

	// DiagnosticRunner runs a command whose useful output is on stderr.
	// *procrun.Runner satisfies it.
	DiagnosticRunner interface {
		RunDiagnostic(ctx context.Context, cmd procrun.Command, marker string) (procrun.Result, error)
	}

	// Extractor runs the compiler and parses its search list.
	Extractor struct {
		Runner  DiagnosticRunner
		Command string
		Markers Markers
		Timeout time.Duration
		Format  TraceFormat
	}
)

// DefaultMarkers returns the GCC search list markers.
func DefaultMarkers() Markers {
	return Markers{Start: DefaultStartMarker, End: DefaultEndMarker}
}

// NewExtractor returns an Extractor for the default roboRIO compiler.
func NewExtractor(runner DiagnosticRunner) *Extractor {
	return &Extractor{
		Runner:  runner,
		Command: DefaultCommand,
		Markers: DefaultMarkers(),
		Timeout: DefaultTimeout,
		Format:  TraceFormatGCC,
	}
}

// Extract runs the compiler and returns its include directories in search
// order. Any failure is an *issue.ExtractionError; when the compiler itself
// could not be run it wraps the *issue.ProcessError.
func (e *Extractor) Extract(ctx context.Context) ([]string, error) {
	if e.Format != "" && e.Format != TraceFormatGCC {
		return nil, &issue.ExtractionError{
			Source:   issue.SourceCompiler,
			Resource: e.Command,
			Reason:   fmt.Sprintf("unsupported trace format %q", e.Format),
		}
	}

	markers := e.Markers
	if markers.Start == "" {
		markers = DefaultMarkers()
	}

	res, err := e.Runner.RunDiagnostic(ctx, procrun.Command{Line: e.Command, Timeout: e.Timeout}, markers.Start)
	if err != nil {
		return nil, &issue.ExtractionError{Source: issue.SourceCompiler, Resource: e.Command, Err: err}
	}

	dirs, err := ParseSearchList(res.Stderr, markers)
	if err != nil {
		return nil, err
	}
	slog.Debug("compiler include directories", "count", len(dirs))
	return dirs, nil
}

// ParseSearchList returns the directories listed strictly between the start
// and end markers of trace. Lines are trimmed, blank lines dropped and each
// path cleaned and written with forward slashes. A missing end marker means
// the list runs to the end of the trace.
func ParseSearchList(trace string, markers Markers) ([]string, error) {
	_, rest, found := strings.Cut(trace, markers.Start)
	if !found {
		return nil, &issue.ExtractionError{
			Source: issue.SourceCompiler,
			Reason: fmt.Sprintf("include search list start marker %q not found", markers.Start),
		}
	}
	if markers.End != "" {
		if list, _, ok := strings.Cut(rest, markers.End); ok {
			rest = list
		} else {
			slog.Debug("include search list end marker not found, reading to end of output", "marker", markers.End)
		}
	}

	dirs := []string{}
	for line := range strings.Lines(rest) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dirs = append(dirs, normalize(line))
	}
	return dirs, nil
}

// normalize cleans a compiler-reported directory. GCC prints paths such as
// /usr/lib/gcc/arm-frc-linux-gnueabi/12/../../../../include/c++/12 and, on
// Windows, mixes separators.
func normalize(dir string) string {
	dir = strings.ReplaceAll(dir, `\`, "/")
	return filepath.ToSlash(filepath.Clean(dir))
}
