// Package command runs external tools and records what they printed.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Result is a process execution response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Log captures one external command invocation result.
type Log struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// NewLog pairs an invocation with its result.
func NewLog(name string, args []string, result Result) Log {
	return Log{
		Command:  name,
		Args:     args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
}

// String renders the command line for log messages.
func (l Log) String() string {
	if len(l.Args) == 0 {
		return l.Command
	}
	return l.Command + " " + strings.Join(l.Args, " ")
}

// Error attaches the failing invocation to the underlying process error.
type Error struct {
	Log Log
	Err error
}

// Error formats the failure with command name and exit code.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s exited with code %d: %v", e.Log.Command, e.Log.ExitCode, e.Err)
}

// Unwrap exposes the process error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// InputRunner is a Runner that can also feed stdin.
type InputRunner interface {
	Runner
	RunWithInput(ctx context.Context, input string, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return r.run(ctx, nil, name, args...)
}

// RunWithInput executes one command with input written to its stdin.
func (r *ExecRunner) RunWithInput(ctx context.Context, input string, name string, args ...string) (Result, error) {
	return r.run(ctx, strings.NewReader(input), name, args...)
}

func (r *ExecRunner) run(ctx context.Context, stdin io.Reader, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}

	return result, nil
}

// Emit forwards command logs when callback is configured.
func Emit(cb func(Log), log Log) {
	if cb != nil {
		cb(log)
	}
}
