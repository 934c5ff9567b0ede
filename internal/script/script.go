// Package script runs the external helper programs the bot depends on: each
// takes its input on stdin and writes its result to stdout.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrEmptyCommand = errors.New("empty command")
	ErrTimeout      = errors.New("command timed out")
)

// maxStderr bounds the stderr kept on ExitError.
const maxStderr = 4096

// ExitError is returned when a command exits unsuccessfully.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Command is an executable with its leading arguments.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// Parse splits a command line on whitespace. Quoting is not supported.
func Parse(line string, timeout time.Duration) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Path: fields[0], Args: fields[1:], Timeout: timeout}, nil
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Run executes the command with extra appended to its arguments, feeding stdin
// and returning everything it wrote to stdout.
func (c Command) Run(ctx context.Context, stdin []byte, extra ...string) ([]byte, error) {
	if c.Path == "" {
		return nil, ErrEmptyCommand
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Args...), extra...)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return stdout.Bytes(), fmt.Errorf("%s: %w after %s", c.Path, ErrTimeout, c.Timeout)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", c.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{
			Command: c.Path,
			Code:    exitErr.ExitCode(),
			Stderr:  tail(strings.TrimSpace(stderr.String()), maxStderr),
			Err:     err,
		}
	}
	return nil, fmt.Errorf("unable to start %s: %w", c.Path, err)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
