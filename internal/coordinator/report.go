// SPDX-License-Identifier: MPL-2.0

package coordinator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

type (
	// Report describes one Run.
	Report struct {
		// Skipped is set when the trigger was ignored because a run was
		// already active.
		Skipped bool
		// Compiler holds the compiler include directories when extracted
		// once per run.
		Compiler []string
		// Roots has one entry per workspace root, in root order.
		Roots    []RootReport
		Duration time.Duration
	}

	// RootReport describes the outcome for one workspace root.
	RootReport struct {
		Root workspace.Root
		// NoFiles is set when the root holds no configuration file.
		NoFiles bool
		// Files lists the configuration files merged, in discovery order.
		Files []FileReport
		// Err is the failure that stopped this root, if any.
		Err error
		// FailedFile is the configuration file Err refers to, if any.
		FailedFile string
	}

	// FileReport is one merged configuration file.
	FileReport struct {
		Path string
		// Content is the merged document.
		Content []byte
	}
)

// Failed returns the roots that stopped with an error.
func (r Report) Failed() []RootReport {
	var out []RootReport
	for _, rr := range r.Roots {
		if rr.Err != nil {
			out = append(out, rr)
		}
	}
	return out
}

// Updated returns the number of configuration files merged.
func (r Report) Updated() int {
	n := 0
	for _, rr := range r.Roots {
		n += len(rr.Files)
	}
	return n
}

// SkippedRoots returns the number of roots without configuration files.
func (r Report) SkippedRoots() int {
	n := 0
	for _, rr := range r.Roots {
		if rr.NoFiles {
			n++
		}
	}
	return n
}

// Err joins the per-root errors, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, rr := range r.Failed() {
		errs = append(errs, rr.Err)
	}
	return errors.Join(errs...)
}

// Summary is the completion notice text.
func (r Report) Summary() string {
	if r.Skipped {
		return BusyNotice
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Updated %s in %s",
		plural(r.Updated(), "configuration file"), plural(len(r.Roots), "workspace root"))
	if n := r.SkippedRoots(); n > 0 {
		fmt.Fprintf(&b, ", %s without c_cpp_properties.json", plural(n, "root"))
	}
	if n := len(r.Failed()); n > 0 {
		fmt.Fprintf(&b, ", %s", plural(n, "failure"))
	}
	return b.String()
}

// FailureMessage names the failure kind, root and file, or "" when the root
// succeeded.
func (rr RootReport) FailureMessage() string {
	if rr.Err == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s failure in %s", issue.Kind(rr.Err), rr.Root.Name)
	if rr.FailedFile != "" {
		fmt.Fprintf(&b, " (%s)", rr.FailedFile)
	}
	fmt.Fprintf(&b, ": %v", rr.Err)
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
