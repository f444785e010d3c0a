package runner

import (
	"context"
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// Command is a subprocess invocation.
type Command struct {
	Args []string
	Env  []string
	Dir  string
}

// Executor runs a command to completion, sending stdout and stderr to out.
// A non-zero exit is reported through exitCode with a nil error; err is for
// commands that could not be run or were stopped by ctx.
type Executor interface {
	Run(ctx context.Context, cmd Command, out io.Writer) (exitCode int, err error)
}

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct{}

// Run implements Executor.
func (ExecExecutor) Run(ctx context.Context, cmd Command, out io.Writer) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, errors.New("empty command")
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = out
	c.Stderr = out

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.Wrapf(err, "run %s", cmd.Args[0])
}
