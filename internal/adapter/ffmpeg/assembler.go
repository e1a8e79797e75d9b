package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// stderrTailSize bounds the stderr excerpt kept in an AssemblyError
const stderrTailSize = 2048

// Config contains assembler configuration
type Config struct {
	FfmpegPath           string
	AudioBitstreamFilter string
	Format               string
}

// Assembler remuxes a transport aggregate into the final container without
// re-encoding, then publishes it with an atomic rename
type Assembler struct {
	cfg    Config
	run    Runner
	logger *zap.Logger
}

// Ensure Assembler implements port.Assembler
var _ port.Assembler = (*Assembler)(nil)

// NewAssembler creates a new Assembler that runs ffmpeg as a child process
func NewAssembler(cfg Config, logger *zap.Logger) *Assembler {
	return NewAssemblerWithRunner(cfg, ExecRunner, logger)
}

// NewAssemblerWithRunner creates a new Assembler with a custom command runner
func NewAssemblerWithRunner(cfg Config, run Runner, logger *zap.Logger) *Assembler {
	if cfg.FfmpegPath == "" {
		cfg.FfmpegPath = "ffmpeg"
	}
	if cfg.Format == "" {
		cfg.Format = "mp4"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		cfg:    cfg,
		run:    run,
		logger: logger,
	}
}

// FormatForExt maps a final container extension to its ffmpeg muxer name.
// The staging file ends in .partial so the muxer cannot be guessed.
func FormatForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mkv":
		return "matroska"
	case "ts":
		return "mpegts"
	case "":
		return "mp4"
	default:
		return strings.ToLower(strings.TrimPrefix(ext, "."))
	}
}

// Args returns the ffmpeg arguments remuxing input into output
func (a *Assembler) Args(input, output string) []string {
	args := []string{"-y", "-loglevel", "error", "-i", input, "-c", "copy"}
	if a.cfg.AudioBitstreamFilter != "" {
		args = append(args, "-bsf:a", a.cfg.AudioBitstreamFilter)
	}
	return append(args, "-f", a.cfg.Format, output)
}

// Publish remuxes partialPath into a staging file and renames it to
// finalPath. The aggregate is removed either way. On failure no file
// exists at finalPath and a *domain.AssemblyError is returned.
func (a *Assembler) Publish(ctx context.Context, partialPath, finalPath string) error {
	staging := domain.StagingPath(finalPath)
	os.Remove(staging)

	res := a.run(ctx, a.cfg.FfmpegPath, a.Args(partialPath, staging)...)
	os.Remove(partialPath)

	if res.Err != nil {
		os.Remove(staging)
		return &domain.AssemblyError{
			Output: finalPath,
			Stderr: tail(res.Stderr, stderrTailSize),
			Err:    res.Err,
		}
	}

	info, err := os.Stat(staging)
	if err != nil || info.Size() == 0 {
		os.Remove(staging)
		if err == nil {
			err = errors.New("remux produced an empty file")
		}
		return &domain.AssemblyError{Output: finalPath, Stderr: tail(res.Stderr, stderrTailSize), Err: err}
	}

	if err := os.Rename(staging, finalPath); err != nil {
		os.Remove(staging)
		return &domain.AssemblyError{Output: finalPath, Err: fmt.Errorf("failed to publish: %w", err)}
	}

	a.logger.Debug("Published artifact",
		zap.String("path", finalPath),
		zap.Int64("size", info.Size()))
	return nil
}

// tail returns at most n trailing bytes of s, trimmed
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[len(s)-n:])
}
