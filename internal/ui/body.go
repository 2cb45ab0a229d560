package ui

import (
	"fmt"
	"sort"
	"strings"
)

// Fields rendered in their own sections rather than the summary.
var sectionFields = map[string]struct{}{
	"todos":           {},
	"completed_tasks": {},
	"logs":            {},
}

const maxHistoryRows = 10

// renderBody renders the scrollable dashboard content.
func (m Model) renderBody() string {
	styles := m.theme.Styles()
	if !m.view.HasStatus {
		if m.view.LastError != "" {
			return styles.DangerText.Render("No data yet: " + m.view.LastError)
		}
		return styles.MutedText.Render("Waiting for the first update...")
	}

	var b strings.Builder

	todos := m.view.Status.List("todos")
	b.WriteString(m.sectionTitle("Todos", len(todos)))
	b.WriteString("\n")
	if len(todos) == 0 {
		b.WriteString(styles.FaintText.Render("  nothing to do"))
		b.WriteString("\n")
	}
	for _, item := range todos {
		b.WriteString(m.renderTask(item))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.sectionTitle("Status", -1))
	b.WriteString("\n")
	for _, line := range summarize(m.view.Status) {
		b.WriteString("  ")
		b.WriteString(styles.MutedText.Render(line.key))
		b.WriteString(" ")
		b.WriteString(styles.Text.Render(truncate(line.value, max(m.width-len(line.key)-4, 10))))
		b.WriteString("\n")
	}

	history := m.view.History
	if len(history) == 0 {
		history = m.view.Status.List("completed_tasks")
	}
	if len(history) > 0 {
		b.WriteString("\n")
		b.WriteString(m.sectionTitle("History", len(history)))
		b.WriteString("\n")
		for i, item := range history {
			if i == maxHistoryRows {
				b.WriteString(styles.FaintText.Render(fmt.Sprintf("  ... %d more", len(history)-maxHistoryRows)))
				b.WriteString("\n")
				break
			}
			b.WriteString(m.renderTask(item))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderTask(item map[string]any) string {
	styles := m.theme.Styles()
	title := firstString(item, "title", "name", "text")
	if title == "" {
		title = "(untitled)"
	}
	line := "  • " + styles.Text.Render(truncate(title, max(m.width-20, 10)))
	var meta []string
	if id := fieldString(item["id"]); id != "" {
		meta = append(meta, "#"+id)
	}
	if list := firstString(item, "list_name", "list"); list != "" {
		meta = append(meta, list)
	}
	if due := firstString(item, "due_date", "due"); due != "" {
		meta = append(meta, "due "+due)
	}
	if len(meta) > 0 {
		line += "  " + styles.FaintText.Render(strings.Join(meta, " "))
	}
	return line
}

// renderLogs renders the tail of the dashsync log file.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	height := m.logPaneHeight()

	var lines []string
	switch {
	case m.logPath == "":
		lines = []string{styles.FaintText.Render("logging to stderr; no log file")}
	case m.logErr != nil:
		lines = []string{styles.DangerText.Render("log unavailable: " + m.logErr.Error())}
	default:
		start := max(len(m.logs)-height, 0)
		for _, e := range m.logs[start:] {
			style := styles.Text
			switch e.Level {
			case "ERROR":
				style = styles.DangerText
			case "WARN":
				style = styles.WarningText
			case "DEBUG":
				style = styles.FaintText
			}
			lines = append(lines, style.Render(truncate(e.String(), m.width)))
		}
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	title := styles.MutedText.Render("logs " + truncateMiddle(m.logPath, 50))
	return styles.Pane.Width(m.width).Render(title + "\n" + strings.Join(lines, "\n"))
}

type summaryLine struct {
	key   string
	value string
}

// summarize describes the remaining top-level fields, sorted by key.
func summarize(snap map[string]any) []summaryLine {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		if _, skip := sectionFields[k]; !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]summaryLine, 0, len(keys))
	for _, k := range keys {
		out = append(out, summaryLine{key: k, value: describe(snap[k])})
	}
	return out
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case []any:
		if len(t) == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", len(t))
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(t))
	default:
		return fieldString(t)
	}
}

func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := fieldString(item[k]); s != "" {
			return s
		}
	}
	return ""
}
