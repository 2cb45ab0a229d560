package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Entry is one line of the dashsync log.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs []Attr
	Raw   string // the original line; the only field set for non-JSON lines
}

// Attr is a structured key/value pair carried by an entry.
type Attr struct {
	Key   string
	Value string
}

// Read returns at most maxLines entries from the end of the file at path.
// A non-positive maxLines reads the whole file. A missing file yields no
// entries.
func Read(path string, maxLines int) ([]Entry, error) {
	lines, err := readLines(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

func readLines(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Parse decodes a slog JSON line. Lines that are not JSON objects come back
// with only Raw set.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return entry
	}

	parsed := gjson.Parse(trimmed)
	parsed.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, value.String()); err == nil {
				entry.Time = ts
			}
		case "level":
			entry.Level = strings.ToUpper(value.String())
		case "msg":
			entry.Msg = value.String()
		default:
			entry.Attrs = append(entry.Attrs, Attr{Key: key.String(), Value: value.String()})
		}
		return true
	})
	sort.SliceStable(entry.Attrs, func(i, j int) bool { return entry.Attrs[i].Key < entry.Attrs[j].Key })
	return entry
}

// Structured reports whether the entry came from a JSON line.
func (e Entry) Structured() bool {
	return e.Level != "" || e.Msg != "" || !e.Time.IsZero()
}

// String renders the entry as a single plain-text line.
func (e Entry) String() string {
	if !e.Structured() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if e.Level != "" {
		fmt.Fprintf(&b, "%-5s ", e.Level)
	}
	b.WriteString(e.Msg)
	for _, attr := range e.Attrs {
		fmt.Fprintf(&b, " %s=%s", attr.Key, attr.Value)
	}
	return b.String()
}
