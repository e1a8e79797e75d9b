package hls

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// DefaultSegmentExt is the transport segment extension
const DefaultSegmentExt = ".ts"

// ParseManifest reads a line-oriented segment manifest.
// Blank lines and lines starting with '#' are skipped. Remaining lines whose
// path ends in segmentExt are segments, resolved against the directory of
// manifestURL and kept in document order.
func ParseManifest(r io.Reader, manifestURL, segmentExt string) (*domain.Manifest, error) {
	if segmentExt == "" {
		segmentExt = DefaultSegmentExt
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest URL %q: %v", domain.ErrInvalidInput, manifestURL, err)
	}

	manifest := &domain.Manifest{Base: baseDir(base)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ref, err := url.Parse(line)
		if err != nil {
			continue
		}
		if !strings.HasSuffix(ref.Path, segmentExt) {
			continue
		}
		manifest.Segments = append(manifest.Segments, base.ResolveReference(ref).String())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if manifest.Len() == 0 {
		return nil, domain.ErrEmptyManifest
	}
	return manifest, nil
}

// baseDir returns the manifest URL up to and including its last '/'
func baseDir(u *url.URL) string {
	dir := *u
	dir.RawQuery = ""
	dir.Fragment = ""
	if i := strings.LastIndex(dir.Path, "/"); i >= 0 {
		dir.Path = dir.Path[:i+1]
	} else {
		dir.Path = "/"
	}
	dir.RawPath = ""
	return dir.String()
}
