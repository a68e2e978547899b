// SPDX-License-Identifier: MPL-2.0

package coordinator_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/ccprops"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/compiler"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/coordinator"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/procrun"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/project"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/testutil"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

// scriptedRunner answers the compiler and build tool invocations without
// spawning processes.
type scriptedRunner struct {
	compilerStderr string
	buildStdout    map[string]string
}

func (s *scriptedRunner) RunDiagnostic(_ context.Context, _ procrun.Command, _ string) (procrun.Result, error) {
	return procrun.Result{Stderr: s.compilerStderr, ExitCode: 1}, nil
}

func (s *scriptedRunner) Run(_ context.Context, cmd procrun.Command) (procrun.Result, error) {
	out, ok := s.buildStdout[cmd.Dir]
	if !ok {
		return procrun.Result{ExitCode: 1}, &issue.ProcessError{Command: cmd.Line, Dir: cmd.Dir, ExitCode: 1}
	}
	return procrun.Result{Stdout: out}, nil
}

const robotProperties = `{
    "configurations": [
        {
            "name": "Linux",
            "includePath": [
                "${workspaceFolder}/**"
            ],
            "cppStandard": "c++20"
        },
        {
            "name": "Win32",
            "includePath": [],
            "intelliSenseMode": "msvc-x64"
        }
    ],
    "version": 4
}
`

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	robot := filepath.Join(ws, "robot")
	docs := filepath.Join(ws, "docs")
	broken := filepath.Join(ws, "broken")

	robotProps := filepath.Join(robot, ".vscode", ccprops.FileName)
	brokenProps := filepath.Join(broken, ".vscode", ccprops.FileName)
	testutil.MustWriteFile(t, robotProps, robotProperties)
	testutil.MustWriteFile(t, filepath.Join(docs, "README.md"), "# docs\n")
	testutil.MustWriteFile(t, brokenProps, `{"configurations": [`)

	runner := &scriptedRunner{
		compilerStderr: "#include <...> search starts here:\n /usr/arm/include\n /usr/arm/include/c++\nEnd of search list.\n",
		buildStdout: map[string]string{
			robot: "> Task :getHeaders\n" +
				"WPIHEADER: " + filepath.Join(robot, "build", "wpilibc") + "\n" +
				"WPIHEADER: " + filepath.Join(robot, "src", "main", "include") + "\n" +
				"WPIHEADER: " + filepath.Join(robot, "build", "wpilibc") + "\n" +
				"BUILD SUCCESSFUL\n",
			broken: "WPIHEADER: " + filepath.Join(broken, "include") + "\n",
		},
	}

	roots, err := workspace.Resolve(workspace.Sources{Paths: []string{robot, docs, broken}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	finder, err := workspace.NewFinder("", nil)
	if err != nil {
		t.Fatalf("NewFinder() error = %v", err)
	}

	c, err := coordinator.New(coordinator.Options{
		Roots:    roots,
		Compiler: compiler.NewExtractor(runner),
		Headers:  project.NewExtractor(runner),
		Finder:   finder,
		Merger:   &ccprops.Merger{Options: ccprops.DefaultOptions()},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := `{
    "configurations": [
        {
            "name": "Linux",
            "includePath": [
                "${workspaceRoot}/build/wpilibc",
                "${workspaceRoot}/src/main/include",
                "/usr/arm/include",
                "/usr/arm/include/c++"
            ],
            "cppStandard": "c++20"
        },
        {
            "name": "Win32",
            "includePath": [
                "${workspaceRoot}/build/wpilibc",
                "${workspaceRoot}/src/main/include",
                "/usr/arm/include",
                "/usr/arm/include/c++"
            ],
            "intelliSenseMode": "clang-x64"
        }
    ],
    "version": 4
}
`
	if diff := cmp.Diff(want, testutil.MustReadFile(t, robotProps)); diff != "" {
		t.Errorf("robot properties mismatch (-want +got):\n%s", diff)
	}

	if !report.Roots[1].NoFiles {
		t.Error("docs root should be skipped")
	}
	if issue.Kind(report.Roots[2].Err) != issue.KindParse {
		t.Errorf("broken root error = %v, want parse failure", report.Roots[2].Err)
	}
	if got := testutil.MustReadFile(t, brokenProps); got != `{"configurations": [` {
		t.Error("broken properties file was modified")
	}
	if !strings.Contains(report.Roots[2].FailureMessage(), "parse failure in broken") {
		t.Errorf("FailureMessage() = %q", report.Roots[2].FailureMessage())
	}

	// A second run over unchanged inputs is a no-op on disk.
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if diff := cmp.Diff(want, testutil.MustReadFile(t, robotProps)); diff != "" {
		t.Errorf("second run changed robot properties (-want +got):\n%s", diff)
	}
}
