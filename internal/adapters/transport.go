package adapters

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// TransportMode selects how an adapter talks to its platform. The git-forge
// adapters support both a native HTTP transport and an already-authenticated
// external CLI; the choice comes from configuration, never hardwired.
type TransportMode string

const (
	TransportAPI TransportMode = "api"
	TransportCLI TransportMode = "cli"
)

// DefaultTimeout bounds a single submission call, HTTP or subprocess.
const DefaultTimeout = 30 * time.Second

// CommandResult is the outcome of one external CLI invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs an external CLI tool. Tests substitute a stub.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (*CommandResult, error)
}

// ExecRunner runs commands via os/exec with a hard timeout. A non-zero exit
// is reported through CommandResult.ExitCode, not as an error; errors mean
// the process could not run at all (spawn failure, timeout).
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (*CommandResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return res, nil
}
