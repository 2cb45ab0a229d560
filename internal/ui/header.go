package ui

import (
	"fmt"
	"strings"
	"time"
)

// renderHeader renders the status bar: connection, freshness and errors.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("dashsync", styles.Logo)}

	switch {
	case m.view.PushConnected:
		parts = append(parts, bg.Render("● LIVE", styles.SuccessText))
	case m.view.IsOffline():
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	case m.autoRefresh:
		parts = append(parts, bg.Render("● POLLING", styles.WarningText))
	default:
		parts = append(parts, bg.Render("● PAUSED", styles.MutedText))
	}

	if m.view.Loading {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}

	switch {
	case !m.view.HasStatus && m.view.LastError == "":
		parts = append(parts, bg.Render("Connecting...", styles.WarningText.Bold(true)))
	case m.view.HasStatus:
		parts = append(parts,
			bg.Render("Updated", styles.MutedText)+bg.Space()+
				bg.Render(m.formatUpdated(), styles.Text))
	}

	if m.view.FromCache {
		parts = append(parts, bg.Render("CACHED", styles.InfoText))
	}

	if m.view.LastError != "" {
		label := "ERROR"
		if m.view.ConsecutiveFailures > 1 {
			label = fmt.Sprintf("ERROR x%d", m.view.ConsecutiveFailures)
		}
		parts = append(parts,
			bg.Render(label, styles.DangerText)+bg.Space()+
				bg.Render(truncate(m.view.LastError, max(m.width/3, 20)), styles.WarningText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) formatUpdated() string {
	if m.view.LastUpdated.IsZero() {
		return "never"
	}
	age := m.now().Sub(m.view.LastUpdated)
	switch {
	case age < 5*time.Second:
		return "just now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return m.view.LastUpdated.Local().Format("Jan 2 15:04")
	}
}

// renderCommandBar renders key hints and the last action result.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	autoLabel := "Pause"
	if !m.autoRefresh {
		autoLabel = "Resume"
	}
	logLabel := "Logs"
	if m.showLogs {
		logLabel = "Hide logs"
	}

	type cmd struct{ key, desc string }
	commands := []cmd{
		{"r", "Refresh"},
		{"a", autoLabel},
		{"R", "Restart"},
		{"b", "Backup"},
		{"C", "Clear logs"},
		{"l", logLabel},
		{"q", "Quit"},
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	if m.flash != "" {
		style := styles.SuccessText
		if m.flashErr {
			style = styles.DangerText
		}
		segments = append(segments, bg.Render(truncate(m.flash, 60), style))
	}

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

// sectionTitle renders a full-width section heading.
func (m Model) sectionTitle(title string, count int) string {
	styles := m.theme.Styles()
	label := title
	if count >= 0 {
		label = fmt.Sprintf("%s (%d)", title, count)
	}
	return styles.Section.Width(m.width).Render(label)
}
