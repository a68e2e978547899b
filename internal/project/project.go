// SPDX-License-Identifier: MPL-2.0

// Package project asks a workspace's build tool which library header
// directories the robot project depends on.
//
// The build tool prints one sentinel-tagged line per directory:
//
//	WPIHEADER: /home/lvuser/.gradle/caches/.../wpilibc/headers
//
// Directories are rewritten relative to the workspace root with the
// ${workspaceRoot} placeholder understood by the editor.
package project

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/procrun"
)

const (
	// DefaultSentinel tags header lines in build tool output.
	DefaultSentinel = "WPIHEADER: "
	// DefaultPlaceholder is the editor variable for the workspace folder.
	DefaultPlaceholder = "${workspaceRoot}"
	// DefaultTimeout bounds one build tool invocation. A cold gradle daemon
	// downloading dependencies is slow.
	DefaultTimeout = 10 * time.Minute
)

type (
	// Runner runs a command that must exit successfully.
	// *procrun.Runner satisfies it.
	Runner interface {
		Run(ctx context.Context, cmd procrun.Command) (procrun.Result, error)
	}

	// Extractor runs the build tool inside a workspace root.
	Extractor struct {
		Runner      Runner
		Command     string
		Sentinel    string
		Placeholder string
		Timeout     time.Duration
	}
)

// DefaultCommand returns the gradle wrapper invocation for the host OS.
func DefaultCommand() string {
	return defaultCommandFor(runtime.GOOS)
}

func defaultCommandFor(goos string) string {
	if goos == "windows" {
		return "gradlew.bat getHeaders"
	}
	return "./gradlew getHeaders"
}

// NewExtractor returns an Extractor with the gradle defaults.
func NewExtractor(runner Runner) *Extractor {
	return &Extractor{
		Runner:      runner,
		Command:     DefaultCommand(),
		Sentinel:    DefaultSentinel,
		Placeholder: DefaultPlaceholder,
		Timeout:     DefaultTimeout,
	}
}

// Extract runs the build tool in root and returns the rewritten header
// directories. Output without sentinel lines yields an empty list. A build
// tool failure is an *issue.ExtractionError wrapping the process error.
func (e *Extractor) Extract(ctx context.Context, root string) ([]string, error) {
	res, err := e.Runner.Run(ctx, procrun.Command{Line: e.Command, Dir: root, Timeout: e.Timeout})
	if err != nil {
		return nil, &issue.ExtractionError{Source: issue.SourceBuildTool, Resource: root, Err: err}
	}

	sentinel := e.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	placeholder := e.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	headers := RewriteRelative(ParseHeaderLines(res.Stdout, sentinel), root, placeholder)
	slog.Debug("project header directories", "root", root, "count", len(headers))
	return headers, nil
}

// ParseHeaderLines returns, for every line of stdout containing sentinel, the
// trimmed text following it. Order and duplicates are preserved.
func ParseHeaderLines(stdout, sentinel string) []string {
	headers := []string{}
	for line := range strings.Lines(stdout) {
		_, after, found := strings.Cut(line, sentinel)
		if !found {
			continue
		}
		if h := strings.TrimSpace(after); h != "" {
			headers = append(headers, h)
		}
	}
	return headers
}

// RewriteRelative rewrites each header as placeholder + "/" + its path
// relative to root, using forward slashes, and drops duplicates keeping the
// first occurrence. Headers that already start with placeholder are kept
// as-is, so rewriting twice is harmless. Headers outside root keep their
// leading "../" segments.
func RewriteRelative(headers []string, root, placeholder string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		rewritten := rewriteOne(h, root, placeholder)
		if _, dup := seen[rewritten]; dup {
			continue
		}
		seen[rewritten] = struct{}{}
		out = append(out, rewritten)
	}
	return out
}

func rewriteOne(header, root, placeholder string) string {
	if header == placeholder || strings.HasPrefix(header, placeholder+"/") {
		return header
	}

	abs := header
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		// Different volume on Windows; nothing relative to express.
		return filepath.ToSlash(filepath.Clean(header))
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return placeholder
	}
	return placeholder + "/" + rel
}
