// SPDX-License-Identifier: MPL-2.0

package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
)

// waitDelay bounds how long Wait blocks on output pipes after the process is
// killed. Build tools commonly leave daemons holding the inherited pipes.
const waitDelay = 5 * time.Second

type (
	// Command describes one process invocation.
	Command struct {
		// Line is a shell-style command line. Quotes and $VAR references are
		// honored; command substitution is rejected.
		Line string
		// Dir is the working directory. Empty means the current directory.
		// A relative program path in Line is resolved against Dir.
		Dir string
		// Timeout bounds the process when positive.
		Timeout time.Duration
		// Env holds extra KEY=VALUE pairs added to the inherited environment.
		// They are also visible to $VAR expansion in Line.
		Env []string
	}

	// Result is the captured output of a finished process.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}

	// Runner executes commands. The zero value is ready to use.
	Runner struct {
		// Getenv resolves $VAR references not covered by Command.Env.
		// Defaults to os.Getenv.
		Getenv func(string) string
	}
)

// Run executes cmd and succeeds only when it exits with status 0. The
// returned Result carries whatever output was captured, even on failure.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	res, err := r.exec(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &issue.ProcessError{
			Command:  cmd.Line,
			Dir:      cmd.Dir,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}

// RunDiagnostic executes cmd and succeeds when marker appears anywhere in its
// stderr, whatever the exit status. Compilers asked for verbose diagnostics
// often exit non-zero after printing what was asked for.
func (r *Runner) RunDiagnostic(ctx context.Context, cmd Command, marker string) (Result, error) {
	res, err := r.exec(ctx, cmd)
	if strings.Contains(res.Stderr, marker) {
		if res.ExitCode != 0 || err != nil {
			slog.Debug("diagnostic command failed after printing marker",
				"command", cmd.Line, "exitCode", res.ExitCode, "error", err)
		}
		return res, nil
	}
	if err != nil {
		return res, err
	}
	return res, &issue.ProcessError{
		Command:  cmd.Line,
		Dir:      cmd.Dir,
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
		Err:      fmt.Errorf("marker %q not found in stderr", marker),
	}
}

// exec starts the process and waits for it. A non-zero exit is reported
// through Result.ExitCode with a nil error; the error covers everything that
// prevented a normal exit (bad command line, start failure, timeout).
func (r *Runner) exec(ctx context.Context, cmd Command) (Result, error) {
	args, err := r.split(cmd)
	if err != nil {
		return Result{ExitCode: -1}, &issue.ProcessError{Command: cmd.Line, Dir: cmd.Dir, ExitCode: -1, Err: err}
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	slog.Debug("running command", "command", cmd.Line, "dir", cmd.Dir, "timeout", cmd.Timeout)
	start := time.Now()
	runErr := c.Run()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	slog.Debug("command finished", "command", cmd.Line, "elapsed", time.Since(start), "error", runErr)

	if ctxErr := ctx.Err(); ctxErr != nil && runErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) && cmd.Timeout > 0 {
			ctxErr = fmt.Errorf("timed out after %s: %w", cmd.Timeout, ctxErr)
		}
		return res, &issue.ProcessError{Command: cmd.Line, Dir: cmd.Dir, ExitCode: -1, Stderr: res.Stderr, Err: ctxErr}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, &issue.ProcessError{Command: cmd.Line, Dir: cmd.Dir, ExitCode: -1, Stderr: res.Stderr, Err: runErr}
	}
	return res, nil
}

// split turns the command line into argv.
func (r *Runner) split(cmd Command) ([]string, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(name string) string {
		prefix := name + "="
		for i := len(cmd.Env) - 1; i >= 0; i-- {
			if v, ok := strings.CutPrefix(cmd.Env[i], prefix); ok {
				return v
			}
		}
		return getenv(name)
	}

	args, err := shell.Fields(cmd.Line, lookup)
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command line")
	}
	return args, nil
}
