package tasklist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_JSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"rawId":"v1","authKey":"u1","displayName":"1.1 Intro"},{"rawId":"v2","displayName":"1.2 Setup"}]`},
		{"object", `{"tasks":[{"rawId":"v1","authKey":"u1","displayName":"1.1 Intro"},{"rawId":"v2","displayName":"1.2 Setup"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := Load(strings.NewReader(tt.body), FormatJSON)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(tasks) != 2 {
				t.Fatalf("Load() returned %d tasks, want 2", len(tasks))
			}
			if tasks[0].AuthKey != "u1" || tasks[1].AuthKey != "v2" {
				t.Errorf("auth keys = %q, %q", tasks[0].AuthKey, tasks[1].AuthKey)
			}
			if tasks[1].Name() != "1.2 Setup" {
				t.Errorf("Name() = %q", tasks[1].Name())
			}
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	body := strings.Join([]string{
		"- rawId: v1",
		"  displayName: \"1.1 Intro\"",
		"- rawId: v2",
		"  authKey: u2",
		"  displayName: \"1.2 Setup?\"",
		"",
	}, "\n")

	tasks, err := Load(strings.NewReader(body), FormatYAML)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tasks) != 2 || tasks[1].Key() != "u2" || tasks[1].Name() != "1.2 Setup" {
		t.Errorf("Load() = %+v", tasks)
	}

	wrapped := "tasks:\n  - rawId: v1\n    displayName: One\n"
	tasks, err = Load(strings.NewReader(wrapped), FormatYAML)
	if err != nil || len(tasks) != 1 {
		t.Errorf("Load(object) = %+v, %v", tasks, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		format  Format
		wantErr error
	}{
		{"blank", "   \n", FormatJSON, ErrEmptyTaskList},
		{"empty array", "[]", FormatJSON, ErrEmptyTaskList},
		{"empty object", `{"tasks":[]}`, FormatJSON, ErrEmptyTaskList},
		{"missing raw id", `[{"displayName":"a"}]`, FormatJSON, ErrMalformedTask},
		{"unusable name", `[{"rawId":"v1","displayName":"??"}]`, FormatJSON, ErrMalformedTask},
		{"duplicate after sanitize", `[{"rawId":"v1","displayName":"a/b"},{"rawId":"v2","displayName":"ab"}]`, FormatJSON, ErrDuplicateName},
		{"yaml duplicate", "- {rawId: v1, displayName: x}\n- {rawId: v2, displayName: x}\n", FormatYAML, ErrDuplicateName},
		{"bad json", `[{`, FormatJSON, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.body), tt.format)
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_NumericIDs(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		format Format
	}{
		{"json", `[{"rawId":1234567,"authKey":98765432101,"displayName":"1.1 Intro"}]`, FormatJSON},
		{"yaml", "- rawId: 1234567\n  authKey: 98765432101\n  displayName: 1.1 Intro\n", FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := Load(strings.NewReader(tt.body), tt.format)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if tasks[0].RawID != "1234567" || tasks[0].Key() != "98765432101" {
				t.Errorf("task = %+v", tasks[0])
			}
		})
	}

	if _, err := Load(strings.NewReader(`[{"rawId":{"id":1},"displayName":"x"}]`), FormatJSON); err == nil {
		t.Error("Load() accepted an object rawId")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"tasks.json": FormatJSON,
		"tasks.yaml": FormatYAML,
		"tasks.YML":  FormatYAML,
		"tasks":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")
	if err := os.WriteFile(path, []byte("- rawId: v1\n  displayName: One\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tasks, err := LoadFile(path)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("LoadFile() = %v, %v", tasks, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(absent) error = %v", err)
	}
}
