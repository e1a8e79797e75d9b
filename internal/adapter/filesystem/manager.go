package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// Manager owns the flat destination directory
type Manager struct {
	outputDir string
	finalExt  string
}

// Ensure Manager implements port.ArtifactStore
var _ port.ArtifactStore = (*Manager)(nil)

// NewManager creates a destination store rooted at outputDir.
// finalExt is the published extension without dot, e.g. "mp4".
func NewManager(outputDir, finalExt string) (*Manager, error) {
	if finalExt == "" {
		return nil, errors.New("final extension is required")
	}

	// Ensure output directory exists
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		finalExt:  strings.TrimPrefix(finalExt, "."),
	}, nil
}

// OutputDir returns the destination directory
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// FinalPath returns the published-final path for name
func (m *Manager) FinalPath(name string) string {
	return filepath.Join(m.outputDir, name+"."+m.finalExt)
}

// PartialPath returns the transport aggregate path for name
func (m *Manager) PartialPath(name string) string {
	return m.FinalPath(name) + domain.PartialSuffix
}

// ListCompleted returns the names of all published-final artifacts.
// A directory that disappeared since construction reads as empty.
func (m *Manager) ListCompleted() (map[string]struct{}, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("failed to list output dir: %w", err)
	}

	suffix := "." + m.finalExt
	completed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		completed[strings.TrimSuffix(name, suffix)] = struct{}{}
	}
	return completed, nil
}

// RemovePartials deletes the aggregate and staging files of name
func (m *Manager) RemovePartials(name string) error {
	var errs []error
	for _, path := range []string{m.PartialPath(name), domain.StagingPath(m.FinalPath(name))} {
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanStalePartials removes partial files older than the specified duration
func (m *Manager) CleanStalePartials(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list output dir: %w", err)
	}

	count := 0
	threshold := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), domain.PartialSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(filepath.Join(m.outputDir, entry.Name())); removeErr == nil {
				count++
			}
		}
	}
	return count, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
