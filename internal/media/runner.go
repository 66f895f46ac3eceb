package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes external tools. Injectable so tests can substitute
// canned outputs without ffmpeg installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs real processes and returns stdout. On a non-zero
// exit the error wraps *exec.ExitError and carries stderr for context.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s failed: %w: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// exitCode extracts the process exit code from a Run error, -1 when the
// error is not an exit status.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
