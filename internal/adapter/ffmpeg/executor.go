package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
)

// ExecResult holds the outcome of a single ffmpeg invocation
type ExecResult struct {
	Stderr string
	Err    error
}

// Runner executes a command and captures its stderr
type Runner func(ctx context.Context, name string, args ...string) ExecResult

// ExecRunner runs the command as a child process
func ExecRunner(ctx context.Context, name string, args ...string) ExecResult {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return ExecResult{
		Stderr: stderrBuf.String(),
		Err:    err,
	}
}
