// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the four failure kinds of a header update run.
var (
	// ErrProcess is wrapped by ProcessError.
	ErrProcess = errors.New("process failed")
	// ErrExtraction is wrapped by ExtractionError.
	ErrExtraction = errors.New("extraction failed")
	// ErrParse is wrapped by ParseError.
	ErrParse = errors.New("parse failed")
	// ErrWrite is wrapped by WriteError.
	ErrWrite = errors.New("write failed")
)

// Extractor sources recorded in ExtractionError.Source.
const (
	SourceCompiler  = "compiler"
	SourceBuildTool = "build tool"
)

// stderrTailLines bounds how much of a failed command's stderr is quoted.
const stderrTailLines = 5

type (
	// ErrorKind names one of the failure kinds for reporting.
	ErrorKind string

	// ProcessError reports an external command that could not be started,
	// exited non-zero, or did not produce the expected diagnostic marker.
	ProcessError struct {
		Command  string
		Dir      string
		ExitCode int
		Stderr   string
		Err      error
	}

	// ExtractionError reports process output that lacked the expected
	// markers, or an extractor whose underlying command failed.
	ExtractionError struct {
		// Source is the extractor that failed ("compiler" or "build tool").
		Source string
		// Resource is the workspace root or command line involved.
		Resource string
		Reason   string
		Err      error
	}

	// ParseError reports a configuration file that is not well-formed JSON
	// or does not have the recognized shape.
	ParseError struct {
		Path   string
		Reason string
		Err    error
	}

	// WriteError reports a filesystem I/O failure on a configuration file.
	WriteError struct {
		Path string
		Err  error
	}
)

const (
	// KindProcess classifies ProcessError.
	KindProcess ErrorKind = "process"
	// KindExtraction classifies ExtractionError.
	KindExtraction ErrorKind = "extraction"
	// KindParse classifies ParseError.
	KindParse ErrorKind = "parse"
	// KindWrite classifies WriteError.
	KindWrite ErrorKind = "write"
	// KindUnknown classifies errors outside the four kinds (e.g., a
	// cancelled context).
	KindUnknown ErrorKind = "unknown"
)

// Kind classifies err by the outermost failure kind in its chain. An
// ExtractionError that wraps a ProcessError is reported as an extraction
// failure.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrProcess):
		return KindProcess
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrWrite):
		return KindWrite
	default:
		return KindUnknown
	}
}

func (e *ProcessError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "command %q", e.Command)
	if e.Dir != "" {
		fmt.Fprintf(&msg, " (in %s)", e.Dir)
	}
	switch {
	case e.Err != nil:
		fmt.Fprintf(&msg, " failed: %v", e.Err)
	case e.ExitCode != 0:
		fmt.Fprintf(&msg, " exited with status %d", e.ExitCode)
	default:
		msg.WriteString(" failed")
	}
	if tail := lastLines(e.Stderr, stderrTailLines); tail != "" {
		msg.WriteString(": ")
		msg.WriteString(tail)
	}
	return msg.String()
}

// Unwrap exposes both ErrProcess and the underlying cause.
func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProcess}
	}
	return []error{ErrProcess, e.Err}
}

func (e *ExtractionError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Source)
	msg.WriteString(" extraction failed")
	if e.Resource != "" {
		msg.WriteString(" for ")
		msg.WriteString(e.Resource)
	}
	if e.Reason != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Reason)
	}
	if e.Err != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Err.Error())
	}
	return msg.String()
}

// Unwrap exposes both ErrExtraction and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

func (e *ParseError) Error() string {
	msg := "parse " + e.Path
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return "write " + e.Path
	}
	return "write " + e.Path + ": " + e.Err.Error()
}

// Unwrap exposes both ErrWrite and the underlying cause.
func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrWrite}
	}
	return []error{ErrWrite, e.Err}
}

// lastLines returns the last n non-empty lines of s joined by " | ".
func lastLines(s string, n int) string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
