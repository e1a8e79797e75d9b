package port

import (
	"time"
)

// CompletionTracker reports which tasks already have a published-final
// artifact in the destination store
type CompletionTracker interface {
	// ListCompleted returns the names (extension stripped) of all
	// published-final artifacts. Partial files are never listed.
	ListCompleted() (map[string]struct{}, error)
}

// ArtifactStore defines the destination store layout and cleanup operations
type ArtifactStore interface {
	CompletionTracker

	// OutputDir returns the destination directory
	OutputDir() string

	// FinalPath returns <outputDir>/<name>.<finalExt>
	FinalPath(name string) string

	// PartialPath returns the transport aggregate path for name
	PartialPath(name string) string

	// RemovePartials deletes every partial file belonging to name
	RemovePartials(name string) error

	// CleanStalePartials removes partial files older than the given age
	// Returns the number of files deleted
	CleanStalePartials(olderThan time.Duration) (int, error)
}

// DiskUsage represents disk usage statistics of the destination volume
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// DiskReporter reports usage of the volume holding the destination store
type DiskReporter interface {
	GetDiskUsage() (*DiskUsage, error)
}
