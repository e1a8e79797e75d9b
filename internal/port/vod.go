package port

import (
	"context"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// TokenProvider obtains a short-lived signed token for a task key
type TokenProvider interface {
	// AcquireToken returns a *domain.AuthError on any failure
	AcquireToken(ctx context.Context, authKey string) (domain.Token, error)
}

// ResourceLocator resolves the manifest location of a media item
type ResourceLocator interface {
	// Resolve returns a *domain.ResolutionError on any failure
	Resolve(ctx context.Context, rawID string, token domain.Token) (domain.ManifestLocation, error)
}

// SegmentFetcher streams every segment of a manifest into a partial file
type SegmentFetcher interface {
	// FetchAll writes the ordered segment concatenation to partialPath and
	// returns the number of bytes written. On failure the partial file is
	// removed and a *domain.TransientError is returned.
	FetchAll(ctx context.Context, location domain.ManifestLocation, partialPath string) (int64, error)
}

// Assembler remuxes a partial aggregate into its final container
type Assembler interface {
	// Publish atomically replaces the partial file with finalPath. On
	// failure every partial file is removed and a *domain.AssemblyError is
	// returned.
	Publish(ctx context.Context, partialPath, finalPath string) error
}

// TaskRunner performs one full attempt for a task
type TaskRunner interface {
	Attempt(ctx context.Context, task domain.Task) error
}
