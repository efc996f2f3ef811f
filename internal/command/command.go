// Package command runs external tools with a hard deadline.
package command

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	ErrToolMissing = errors.ErrorCode("command_tool_missing")
	ErrTimeout     = errors.ErrTimeout
	ErrExitStatus  = errors.ErrorCode("command_exit_status")
)

// Runner executes external commands. Every call is bounded by timeout.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

func (Exec) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", errors.New().Wrap(ErrToolMissing, err)
	}

	return p, nil
}

func (Exec) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return stdout.Bytes(), nil
	case ctx.Err() != nil:
		return nil, errFactory.Wrap(ErrTimeout, ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return nil, errFactory.Wrap(ErrToolMissing, err)
	default:
		return stdout.Bytes(), errFactory.WithMessage(ErrExitStatus,
			name+": "+err.Error()+": "+string(bytes.TrimSpace(stderr.Bytes())))
	}
}
