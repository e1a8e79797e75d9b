package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrFfmpegNotFound is returned by CheckBinary when ffmpeg cannot be located
var ErrFfmpegNotFound = errors.New("ffmpeg not found")

// CheckBinary verifies the remux utility exists and returns the first line
// of its version banner
func CheckBinary(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = "ffmpeg"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFfmpegNotFound, path)
	}

	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version failed: %w", resolved, err)
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(firstLine), nil
}
