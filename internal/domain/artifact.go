package domain

// Artifact file suffixes. A file carrying either suffix is partial-temporary
// and never counts as completed.
const (
	// PartialSuffix marks the transport aggregate being fetched
	PartialSuffix = ".partial"

	// StagingSuffix marks the remux output before it is renamed to final
	StagingSuffix = ".remux.partial"
)

// StagingPath returns the remux staging path for a final artifact path
func StagingPath(finalPath string) string {
	return finalPath + StagingSuffix
}
