package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			raw := make([]string, len(got))
			for i, e := range got {
				raw[i] = e.Raw
			}
			if !reflect.DeepEqual(raw, tt.expected) {
				t.Errorf("Read() = %v, want %v", raw, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Read() = %v, want empty", got)
	}
}

func TestParse(t *testing.T) {
	line := `{"time":"2026-03-01T12:30:45.5Z","level":"WARN","msg":"status fetch failed","light":true,"error":"boom"}`
	e := Parse(line)

	want := time.Date(2026, 3, 1, 12, 30, 45, 500000000, time.UTC)
	if !e.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", e.Time, want)
	}
	if e.Level != "WARN" || e.Msg != "status fetch failed" {
		t.Fatalf("Level/Msg = %q/%q", e.Level, e.Msg)
	}
	wantAttrs := []Attr{{Key: "error", Value: "boom"}, {Key: "light", Value: "true"}}
	if !reflect.DeepEqual(e.Attrs, wantAttrs) {
		t.Fatalf("Attrs = %v, want %v", e.Attrs, wantAttrs)
	}
	if !e.Structured() {
		t.Fatal("Structured() = false for JSON line")
	}
	if !strings.HasSuffix(e.String(), "WARN  status fetch failed error=boom light=true") {
		t.Fatalf("String() = %q", e.String())
	}
}

func TestParse_PlainLines(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"panic: something broke",
		`{"time": broken`,
	}
	for _, line := range tests {
		e := Parse(line)
		if e.Structured() {
			t.Errorf("Parse(%q) treated as structured: %+v", line, e)
		}
		if e.String() != line {
			t.Errorf("String() = %q, want raw line %q", e.String(), line)
		}
	}
}
