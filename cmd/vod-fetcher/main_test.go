package main

import (
	"bytes"
	"testing"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

func TestPrintReport(t *testing.T) {
	report := &domain.Report{
		Skipped:   []string{"1.1 Intro"},
		Succeeded: []string{"1.2 Setup", "1.3 Wrap"},
	}

	var buf bytes.Buffer
	printReport(&buf, report)

	want := "Skipped (already present): 1\n" +
		"  1.1 Intro\n" +
		"Succeeded: 2\n" +
		"  1.2 Setup\n" +
		"  1.3 Wrap\n" +
		"Failed: 0\n"
	if got := buf.String(); got != want {
		t.Errorf("printReport() =\n%s\nwant:\n%s", got, want)
	}
}
