package domain

import (
	"regexp"
	"strings"
)

// Task represents one media item to fetch. It is created once from the task
// list and never mutated.
type Task struct {
	// RawID identifies the media at the resource location service
	RawID string

	// AuthKey is the internal key used to acquire a token.
	// Falls back to RawID when empty.
	AuthKey string

	// DisplayName is the human-readable name; its sanitized form is the
	// identity used for dedup and output naming
	DisplayName string
}

// NewTask creates a Task, defaulting AuthKey to rawID
func NewTask(rawID, authKey, displayName string) Task {
	if authKey == "" {
		authKey = rawID
	}
	return Task{
		RawID:       rawID,
		AuthKey:     authKey,
		DisplayName: displayName,
	}
}

// Name returns the filesystem-safe identity of the task
func (t Task) Name() string {
	return SanitizeName(t.DisplayName)
}

// Key returns the authorization key, falling back to the raw identifier
func (t Task) Key() string {
	if t.AuthKey != "" {
		return t.AuthKey
	}
	return t.RawID
}

var (
	unsafeNameChars = regexp.MustCompile(`[\\/*?:"<>|\n\r\t]`)
	repeatedSpace   = regexp.MustCompile(`\s+`)
)

// SanitizeName strips characters that are not allowed in file names and
// collapses whitespace.
func SanitizeName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = repeatedSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Token is a short-lived signed authorization token. It must not be reused
// across tasks or rounds.
type Token string

// ManifestLocation is the URL of a segment manifest
type ManifestLocation string

// Manifest is the ordered list of segment URIs of one media item
type Manifest struct {
	// Base is the location relative entries were resolved against
	Base string

	// Segments holds absolute segment URIs in playback order
	Segments []string
}

// Len returns the number of segments
func (m *Manifest) Len() int {
	return len(m.Segments)
}
