package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// maxManifestSize bounds the manifest body read into memory
const maxManifestSize = 8 << 20

// Getter performs a GET and hands back the response. The caller closes the body.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Config contains fetcher configuration
type Config struct {
	SegmentExt       string
	BufferSize       int
	ProgressInterval time.Duration

	// RequestTimeout bounds each manifest or segment request, body included
	RequestTimeout time.Duration
}

// Fetcher streams all segments of a manifest into one partial aggregate
type Fetcher struct {
	getter Getter
	cfg    Config
	logger *zap.Logger
}

// Ensure Fetcher implements port.SegmentFetcher
var _ port.SegmentFetcher = (*Fetcher)(nil)

// NewFetcher creates a new Fetcher
func NewFetcher(getter Getter, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.SegmentExt == "" {
		cfg.SegmentExt = DefaultSegmentExt
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256 * 1024
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		getter: getter,
		cfg:    cfg,
		logger: logger,
	}
}

// FetchAll downloads the manifest at location and appends every segment, in
// manifest order, to partialPath. On any failure the partial file is removed
// and a *domain.TransientError is returned.
func (f *Fetcher) FetchAll(ctx context.Context, location domain.ManifestLocation, partialPath string) (int64, error) {
	manifest, err := f.fetchManifest(ctx, string(location))
	if err != nil {
		return 0, &domain.TransientError{URL: string(location), Err: err}
	}

	out, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, &domain.TransientError{URL: string(location), Err: fmt.Errorf("failed to create partial file: %w", err)}
	}

	progress := &progressReader{
		logger:   f.logger.With(zap.String("partial", partialPath)),
		total:    manifest.Len(),
		interval: f.cfg.ProgressInterval,
		started:  time.Now(),
	}
	progress.lastUpdate = progress.started

	buf := make([]byte, f.cfg.BufferSize)
	var written int64
	for i, segment := range manifest.Segments {
		progress.index = i + 1
		n, err := f.copySegment(ctx, out, segment, buf, progress)
		written += n
		if err != nil {
			out.Close()
			os.Remove(partialPath)
			return 0, &domain.TransientError{URL: segment, Err: err}
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(partialPath)
		return 0, &domain.TransientError{URL: string(location), Err: fmt.Errorf("failed to close partial file: %w", err)}
	}

	f.logger.Debug("Segments fetched",
		zap.String("partial", partialPath),
		zap.Int("segments", manifest.Len()),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(progress.started)))

	return written, nil
}

func (f *Fetcher) fetchManifest(ctx context.Context, location string) (*domain.Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	resp, err := f.getter.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: manifest status %d", domain.ErrUnexpected, resp.StatusCode)
	}

	manifest, err := ParseManifest(io.LimitReader(resp.Body, maxManifestSize), location, f.cfg.SegmentExt)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("manifest not received within %s: %w", f.cfg.RequestTimeout, ctx.Err())
	}
	return manifest, err
}

func (f *Fetcher) copySegment(ctx context.Context, out io.Writer, segment string, buf []byte, progress *progressReader) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	resp, err := f.getter.Get(ctx, segment)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: segment status %d", domain.ErrUnexpected, resp.StatusCode)
	}

	progress.reader = resp.Body
	n, err := io.CopyBuffer(out, progress, buf)
	if err != nil {
		if ctx.Err() != nil {
			return n, fmt.Errorf("segment not received within %s: %w", f.cfg.RequestTimeout, ctx.Err())
		}
		return n, fmt.Errorf("failed to copy segment: %w", err)
	}
	return n, nil
}

// progressReader wraps a segment body to log aggregate progress
type progressReader struct {
	reader     io.Reader
	logger     *zap.Logger
	index      int
	total      int
	bytesRead  int64
	interval   time.Duration
	started    time.Time
	lastUpdate time.Time
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)

	// Periodically log progress
	if time.Since(r.lastUpdate) >= r.interval {
		r.logger.Info("Fetch progress",
			zap.Int("segment", r.index),
			zap.Int("segments", r.total),
			zap.Int64("bytes", r.bytesRead),
			zap.Duration("elapsed", time.Since(r.started)))
		r.lastUpdate = time.Now()
	}

	return n, err
}
