package pkgmgr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Invocation is a child process to run: either an argument vector or a raw
// shell pipeline. The choice is made once per package manager descriptor,
// never inferred from the command text.
type Invocation struct {
	Argv     []string
	Pipeline string
}

// IsZero reports whether the invocation carries no command.
func (inv Invocation) IsZero() bool {
	return len(inv.Argv) == 0 && inv.Pipeline == ""
}

// String renders the invocation the way a human would type it.
func (inv Invocation) String() string {
	if inv.Pipeline != "" {
		return inv.Pipeline
	}
	return strings.Join(inv.Argv, " ")
}

// Result is the outcome of one child process run. Timeouts and missing
// executables are ordinary results here, not errors; callers decide what a
// failure means.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Err      error
}

// Ok reports whether the process started, finished in time, and exited zero.
func (r Result) Ok() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// CombinedOutput returns trimmed stdout followed by stderr.
func (r Result) CombinedOutput() string {
	out := strings.TrimSpace(string(r.Stdout))
	errOut := strings.TrimSpace(string(r.Stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Runner executes invocations with a per-call timeout.
type Runner interface {
	Run(ctx context.Context, inv Invocation, timeout time.Duration) Result
}

// ExecRunner runs invocations through os/exec, blocking until the child
// exits or the timeout fires.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, inv Invocation, timeout time.Duration) Result {
	if inv.IsZero() {
		return Result{Err: errors.New("empty invocation")}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if inv.Pipeline != "" {
		cmd = exec.CommandContext(runCtx, "sh", "-c", inv.Pipeline)
	} else {
		cmd = exec.CommandContext(runCtx, inv.Argv[0], inv.Argv[1:]...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if runCtx.Err() != nil {
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		result.ExitCode = -1
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// Start failure: executable missing or not runnable.
		result.Err = err
		result.ExitCode = -1
	}
	return result
}

var _ Runner = ExecRunner{}
