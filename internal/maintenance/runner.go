package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one external program invocation. Env is appended to the process environment.
type Command struct {
	Name string
	Args []string
	Env  []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner executes the Postgres client tools
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
	// Pipe runs from and to concurrently with from's stdout connected to to's stdin
	Pipe(ctx context.Context, from, to Command) error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) command(ctx context.Context, c Command) (*exec.Cmd, *bytes.Buffer) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	return cmd, &stderr
}

// Run executes the command and folds its stderr into the error
func (r ExecRunner) Run(ctx context.Context, c Command) error {
	cmd, stderr := r.command(ctx, c)
	if err := cmd.Run(); err != nil {
		return commandError(c, err, stderr)
	}
	return nil
}

// Pipe executes from | to. When both sides fail the consumer's error is returned, since an
// early exit there makes the producer die on a broken pipe.
func (r ExecRunner) Pipe(ctx context.Context, from, to Command) error {
	src, srcStderr := r.command(ctx, from)
	dst, dstStderr := r.command(ctx, to)

	out, err := src.StdoutPipe()
	if err != nil {
		return err
	}
	dst.Stdin = out

	err = dst.Start()
	// dst holds its own copy of the read end. Ours must go so that from sees a broken pipe
	// when to exits early.
	out.Close()
	if err != nil {
		return commandError(to, err, dstStderr)
	}
	if err := src.Start(); err != nil {
		_ = dst.Wait()
		return commandError(from, err, srcStderr)
	}

	dstErr := dst.Wait()
	srcErr := src.Wait()
	if dstErr != nil {
		return commandError(to, dstErr, dstStderr)
	}
	if srcErr != nil {
		return commandError(from, srcErr, srcStderr)
	}
	return nil
}

func commandError(c Command, err error, stderr *bytes.Buffer) error {
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", c.Name, err, msg)
	}
	return fmt.Errorf("%s: %w", c.Name, err)
}
