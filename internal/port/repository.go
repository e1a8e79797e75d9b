package port

import (
	"github.com/vertextoedge/vod-fetcher/internal/domain/repository"
)

// HistoryRepository is an alias to domain repository interface
type HistoryRepository = repository.HistoryRepository
