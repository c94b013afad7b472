package executor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Result represents the outcome of a monitored command execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Process is a started, monitored command. Wait may be called any number of times.
type Process struct {
	cmd    *exec.Cmd
	name   string
	stdout *collector
	stderr *collector

	waitOnce sync.Once
	result   *Result
	err      error
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits. A non-zero exit returns the result
// together with the *exec.ExitError.
func (p *Process) Wait() (*Result, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		exitCode := 0
		if err != nil {
			exitCode = getExitCode(err)
		}
		p.result = &Result{
			Stdout:    p.stdout.String(),
			Stderr:    p.stderr.String(),
			ExitCode:  exitCode,
			Truncated: p.stdout.Truncated() || p.stderr.Truncated(),
		}
		if err != nil {
			p.err = &CommandError{Cmd: p.name, Cause: err, Stage: "execution"}
		}
	})
	return p.result, p.err
}

// Kill terminates the process.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// OSCommandExecutor implements command execution using os/exec for real system commands.
type OSCommandExecutor struct {
	maxOutputBytes int
}

// NewOSCommandExecutor creates a new OSCommandExecutor keeping at most
// maxOutputBytes of each output stream.
func NewOSCommandExecutor(maxOutputBytes int64) *OSCommandExecutor {
	if maxOutputBytes < 1 {
		panic("maxOutputBytes must be positive")
	}
	return &OSCommandExecutor{maxOutputBytes: int(maxOutputBytes)}
}

// Start launches a monitored command. Cancelling ctx kills it.
func (f *OSCommandExecutor) Start(ctx context.Context, command []string, dir string, env []string) (*Process, error) {
	if len(command) == 0 {
		return nil, os.ErrInvalid
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(env)
	cmd.Stdin = nil

	p := &Process{
		cmd:    cmd,
		name:   command[0],
		stdout: newCollector(f.maxOutputBytes),
		stderr: newCollector(f.maxOutputBytes),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	return p, nil
}

// StartDetached launches a command in its own session with no attached
// streams and returns as soon as the spawn succeeds. The exit status is
// never reported; the child is reaped in the background.
func (f *OSCommandExecutor) StartDetached(ctx context.Context, command []string, dir string, env []string) error {
	if len(command) == 0 {
		return os.ErrInvalid
	}
	if err := ctx.Err(); err != nil {
		return &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	// Not CommandContext: the detached process must outlive ctx.
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(env)
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	go func() { _ = cmd.Wait() }()
	return nil
}

// mergeEnv appends extra variables to the current environment.
// A nil slice keeps the inherited environment unchanged.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}

func getExitCode(err error) int {
	if err == nil {
		return 0
	}
	type exitCoder interface {
		ExitCode() int
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}
