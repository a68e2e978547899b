// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/procrun"
)

const gccTrace = `Using built-in specs.
COLLECT_GCC=arm-frc-linux-gnueabi-g++
Target: arm-frc-linux-gnueabi
ignoring nonexistent directory "/usr/local/wpilib/roborio/arm-frc-linux-gnueabi/usr/local/include"
#include "..." search starts here:
#include <...> search starts here:
 /usr/local/wpilib/roborio/bin/../lib/gcc/arm-frc-linux-gnueabi/12/../../../../arm-frc-linux-gnueabi/include/c++/12
 /usr/local/wpilib/roborio/arm-frc-linux-gnueabi/usr/include

 /usr/local/wpilib/roborio/bin/../lib/gcc/arm-frc-linux-gnueabi/12/include
End of search list.
cc1plus: fatal error: .: No such file or directory
compilation terminated.
`

type fakeRunner struct {
	res     procrun.Result
	err     error
	gotCmd  procrun.Command
	gotMark string
}

func (f *fakeRunner) RunDiagnostic(_ context.Context, cmd procrun.Command, marker string) (procrun.Result, error) {
	f.gotCmd = cmd
	f.gotMark = marker
	return f.res, f.err
}

func TestParseSearchList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		trace string
		want  []string
	}{
		{
			name:  "gcc trace",
			trace: gccTrace,
			want: []string{
				"/usr/local/wpilib/roborio/arm-frc-linux-gnueabi/include/c++/12",
				"/usr/local/wpilib/roborio/arm-frc-linux-gnueabi/usr/include",
				"/usr/local/wpilib/roborio/lib/gcc/arm-frc-linux-gnueabi/12/include",
			},
		},
		{
			name:  "simple",
			trace: "x\n#include <...> search starts here:\n /a\n /b\nEnd of search list.\ny",
			want:  []string{"/a", "/b"},
		},
		{
			name:  "empty list",
			trace: "#include <...> search starts here:\nEnd of search list.\n",
			want:  []string{},
		},
		{
			name:  "missing end marker reads to end",
			trace: "#include <...> search starts here:\n /a\n /b\n",
			want:  []string{"/a", "/b"},
		},
		{
			name:  "windows separators",
			trace: "#include <...> search starts here:\r\n C:\\Users\\Public\\wpilib\\2024\\roborio\\include\r\nEnd of search list.\r\n",
			want:  []string{"C:/Users/Public/wpilib/2024/roborio/include"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSearchList(tt.trace, DefaultMarkers())
			if err != nil {
				t.Fatalf("ParseSearchList() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSearchList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSearchList_MissingStart(t *testing.T) {
	t.Parallel()

	_, err := ParseSearchList("#include \"...\" search starts here:\n /a\nEnd of search list.\n", DefaultMarkers())
	if !errors.Is(err, issue.ErrExtraction) {
		t.Fatalf("ParseSearchList() error = %v, want ErrExtraction", err)
	}
}

func TestParseSearchList_CustomMarkers(t *testing.T) {
	t.Parallel()

	got, err := ParseSearchList("BEGIN\n/x\nEND\n/y\n", Markers{Start: "BEGIN", End: "END"})
	if err != nil {
		t.Fatalf("ParseSearchList() error = %v", err)
	}
	if diff := cmp.Diff([]string{"/x"}, got); diff != "" {
		t.Errorf("ParseSearchList() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: procrun.Result{Stderr: gccTrace, ExitCode: 1}}
	e := NewExtractor(fr)

	got, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Extract() returned %d dirs, want 3", len(got))
	}
	if fr.gotCmd.Line != DefaultCommand {
		t.Errorf("command = %q, want %q", fr.gotCmd.Line, DefaultCommand)
	}
	if fr.gotCmd.Timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", fr.gotCmd.Timeout, DefaultTimeout)
	}
	if fr.gotMark != DefaultStartMarker {
		t.Errorf("marker = %q, want %q", fr.gotMark, DefaultStartMarker)
	}
}

func TestExtractor_ProcessFailure(t *testing.T) {
	t.Parallel()

	procErr := &issue.ProcessError{Command: DefaultCommand, Err: errors.New("executable file not found in $PATH")}
	e := NewExtractor(&fakeRunner{err: procErr})

	_, err := e.Extract(context.Background())
	if issue.Kind(err) != issue.KindExtraction {
		t.Errorf("Kind() = %q, want %q", issue.Kind(err), issue.KindExtraction)
	}
	if !errors.Is(err, issue.ErrProcess) {
		t.Errorf("error %v should wrap the process failure", err)
	}
	var ee *issue.ExtractionError
	if !errors.As(err, &ee) || ee.Source != issue.SourceCompiler {
		t.Errorf("error %v should be a compiler ExtractionError", err)
	}
}

func TestExtractor_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	e := NewExtractor(&fakeRunner{})
	e.Format = "msvc"
	if _, err := e.Extract(context.Background()); !errors.Is(err, issue.ErrExtraction) {
		t.Errorf("Extract() error = %v, want ErrExtraction", err)
	}
}
