// Package tasklist loads the materialized task list produced by the
// discovery tooling.
package tasklist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// Structural input errors. Any of them aborts the run before network work.
var (
	ErrEmptyTaskList = errors.New("task list is empty")
	ErrMalformedTask = errors.New("malformed task")
	ErrDuplicateName = errors.New("duplicate display name")
)

// Format selects the task list encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// entry is one serialized task
type entry struct {
	RawID       identifier `json:"rawId" yaml:"rawId"`
	AuthKey     identifier `json:"authKey,omitempty" yaml:"authKey,omitempty"`
	DisplayName string     `json:"displayName" yaml:"displayName"`
}

// identifier accepts both string and integer IDs; discovery tooling emits
// numeric content IDs. Numbers keep their literal digits.
type identifier string

func (id *identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = identifier(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %s", data)
	}
	*id = identifier(n.String())
	return nil
}

func (id *identifier) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("identifier must be a scalar at line %d", value.Line)
	}
	*id = identifier(value.Value)
	return nil
}

// document is the object form: {"tasks": [...]}
type document struct {
	Tasks []entry `json:"tasks" yaml:"tasks"`
}

// FormatFromPath picks the format by file extension; unknown extensions read as JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and validates the task list at path
func LoadFile(path string) ([]domain.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task list: %w", err)
	}
	defer f.Close()

	return Load(f, FormatFromPath(path))
}

// Load decodes a task list and validates it. Both a bare array and an
// object with a "tasks" array are accepted.
func Load(r io.Reader, format Format) ([]domain.Task, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read task list: %w", err)
	}

	entries, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(entries))
	for _, e := range entries {
		tasks = append(tasks, domain.NewTask(
			strings.TrimSpace(string(e.RawID)),
			strings.TrimSpace(string(e.AuthKey)),
			e.DisplayName,
		))
	}

	if err := Validate(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func decode(data []byte, format Format) ([]entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyTaskList
	}

	var entries []entry
	var doc document

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(trimmed, &entries); err == nil {
			return entries, nil
		}
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml task list: %w", err)
		}
	default:
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &entries); err != nil {
				return nil, fmt.Errorf("failed to parse json task list: %w", err)
			}
			return entries, nil
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json task list: %w", err)
		}
	}
	return doc.Tasks, nil
}

// Validate checks that tasks is non-empty, every task has an identifier and
// a name that survives sanitization, and no two tasks share a sanitized name
func Validate(tasks []domain.Task) error {
	if len(tasks) == 0 {
		return ErrEmptyTaskList
	}

	seen := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.RawID == "" {
			return fmt.Errorf("%w: entry %d has no rawId", ErrMalformedTask, i)
		}
		name := t.Name()
		if name == "" {
			return fmt.Errorf("%w: entry %d (%s) has no usable displayName", ErrMalformedTask, i, t.RawID)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q at entries %d and %d", ErrDuplicateName, name, prev, i)
		}
		seen[name] = i
	}
	return nil
}
