package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// Pipeline runs one attempt of a task: token, location, segments, publish
type Pipeline struct {
	tokens    port.TokenProvider
	locator   port.ResourceLocator
	fetcher   port.SegmentFetcher
	assembler port.Assembler
	store     port.ArtifactStore
	logger    *zap.Logger
}

// Ensure Pipeline implements port.TaskRunner
var _ port.TaskRunner = (*Pipeline)(nil)

// New creates a new Pipeline
func New(
	tokens port.TokenProvider,
	locator port.ResourceLocator,
	fetcher port.SegmentFetcher,
	assembler port.Assembler,
	store port.ArtifactStore,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tokens:    tokens,
		locator:   locator,
		fetcher:   fetcher,
		assembler: assembler,
		store:     store,
		logger:    logger,
	}
}

// Attempt performs a single attempt for task. A fresh token is acquired
// every time. Once started the attempt runs to completion even if ctx is
// cancelled; the API call timeout and the fetcher's per-request timeout
// bound it. On failure no partial file
// of the task is left behind.
func (p *Pipeline) Attempt(ctx context.Context, task domain.Task) error {
	ctx = context.WithoutCancel(ctx)
	name := task.Name()
	start := time.Now()

	token, err := p.tokens.AcquireToken(ctx, task.Key())
	if err != nil {
		return err
	}

	location, err := p.locator.Resolve(ctx, task.RawID, token)
	if err != nil {
		return err
	}

	partial := p.store.PartialPath(name)
	written, err := p.fetcher.FetchAll(ctx, location, partial)
	if err != nil {
		p.cleanup(name)
		return err
	}

	final := p.store.FinalPath(name)
	if err := p.assembler.Publish(ctx, partial, final); err != nil {
		p.cleanup(name)
		return err
	}

	p.logger.Info("Published",
		zap.String("name", name),
		zap.String("path", final),
		zap.Int64("bytes_fetched", written),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) cleanup(name string) {
	if err := p.store.RemovePartials(name); err != nil {
		p.logger.Warn("Failed to remove partial files",
			zap.String("name", name),
			zap.Error(err))
	}
}
