package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrToolMissing is returned when the git executable cannot be found.
var ErrToolMissing = errors.New("git executable not found")

// Runner executes a version-control command in a working directory and
// returns its standard output. Implementations must report non-zero exits
// as errors carrying the captured standard-error text.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// gitRunner invokes the real git binary.
type gitRunner struct{}

// Run executes `git args...` with dir as the working directory. The
// process-wide current directory is never changed.
func (gitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrToolMissing, err)
		}

		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}

		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, detail)
	}

	return stdout.String(), nil
}
