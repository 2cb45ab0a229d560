// Package ui provides the Bubble Tea dashboard for dashsync.
package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/dashsync/internal/logtail"
	"github.com/five82/dashsync/internal/prefs"
	"github.com/five82/dashsync/internal/state"
)

const (
	defaultTick   = time.Second
	logTailLines  = 200
	flashDuration = 5 * time.Second
)

// Syncer is the synchronizer surface the UI drives.
type Syncer interface {
	Refresh(light bool) bool
	SetAutoRefresh(on bool) error
	AutoRefresh() bool
}

// Actions are the dashboard actions bound to keys.
type Actions interface {
	Restart(ctx context.Context) (string, error)
	Backup(ctx context.Context) (string, error)
	ClearLogs(ctx context.Context) (string, error)
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Store     *state.Store
	Sync      Syncer
	Actions   Actions
	LogPath   string
	Prefs     prefs.Prefs
	PrefsPath string
	Tick      time.Duration
	Now       func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	store     *state.Store
	sync      Syncer
	actions   Actions
	logPath   string
	prefs     prefs.Prefs
	prefsPath string
	tick      time.Duration
	now       func() time.Time

	changes     <-chan struct{}
	unsubscribe func()

	theme  Theme
	width  int
	height int
	ready  bool

	view        state.View
	autoRefresh bool
	showLogs    bool
	logs        []logtail.Entry
	logErr      error

	flash     string
	flashErr  bool
	flashedAt time.Time

	body    viewport.Model
	spinner spinner.Model
}

// New creates a new Bubble Tea model. It subscribes to the store; the
// subscription is released when the program exits through Run.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		ctx:         ctx,
		store:       opts.Store,
		sync:        opts.Sync,
		actions:     opts.Actions,
		logPath:     opts.LogPath,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		tick:        tick,
		now:         now,
		theme:       GetTheme(opts.Prefs.Theme),
		showLogs:    opts.Prefs.ShowLogs,
		autoRefresh: opts.Prefs.AutoRefreshEnabled(),
		spinner:     sp,
		unsubscribe: func() {},
	}
	if opts.Sync != nil {
		m.autoRefresh = opts.Sync.AutoRefresh()
	}
	if m.store != nil {
		m.view = m.store.View()
		m.changes, m.unsubscribe = m.store.Subscribe()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.tick),
		m.spinner.Tick,
		waitForChange(m.ctx, m.changes),
	}
	if m.showLogs {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.body = viewport.New(m.width, m.bodyHeight())
			m.ready = true
		}
		m.layout()
		return m, nil

	case changedMsg:
		if m.store != nil {
			m.view = m.store.View()
		}
		m.layout()
		return m, waitForChange(m.ctx, m.changes)

	case tickMsg:
		var cmds []tea.Cmd
		if m.flash != "" && m.now().Sub(m.flashedAt) > flashDuration {
			m.flash = ""
		}
		if m.showLogs {
			cmds = append(cmds, readLogsCmd(m.logPath))
		}
		cmds = append(cmds, tickCmd(m.tick))
		return m, tea.Batch(cmds...)

	case logsMsg:
		m.logs, m.logErr = msg.entries, msg.err
		m.layout()
		return m, nil

	case actionDoneMsg:
		m.setFlash(msg.text, msg.err)
		return m, nil

	case autoRefreshMsg:
		if msg.err != nil {
			m.setFlash("", msg.err)
			return m, nil
		}
		m.autoRefresh = msg.on
		m.prefs.AutoRefresh = &msg.on
		m.savePrefs()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.body.View())
	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.unsubscribe()
		return m, tea.Quit

	case "r":
		if m.sync != nil && !m.sync.Refresh(false) {
			m.setFlash("", errors.New("synchronizer not running"))
		}
		return m, nil

	case "a":
		return m, toggleAutoRefreshCmd(m.sync, !m.autoRefresh)

	case "l":
		m.showLogs = !m.showLogs
		m.prefs.ShowLogs = m.showLogs
		m.savePrefs()
		m.layout()
		if m.showLogs {
			return m, readLogsCmd(m.logPath)
		}
		return m, nil

	case "T":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.layout()
		return m, nil

	case "R":
		return m, m.runAction("restart", func(ctx context.Context, a Actions) (string, error) { return a.Restart(ctx) })
	case "b":
		return m, m.runAction("backup", func(ctx context.Context, a Actions) (string, error) { return a.Backup(ctx) })
	case "C":
		return m, m.runAction("clear-logs", func(ctx context.Context, a Actions) (string, error) { return a.ClearLogs(ctx) })
	}

	var cmd tea.Cmd
	m.body, cmd = m.body.Update(msg)
	return m, cmd
}

func (m *Model) setFlash(text string, err error) {
	m.flash, m.flashErr = text, err != nil
	if err != nil {
		m.flash = err.Error()
	}
	m.flashedAt = m.now()
}

func (m *Model) savePrefs() {
	if m.prefsPath != "" {
		_ = prefs.Save(m.prefsPath, m.prefs)
	}
}

// layout resizes the body viewport and re-renders its content.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.body.Width = m.width
	m.body.Height = m.bodyHeight()
	m.body.SetContent(m.renderBody())
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if m.showLogs {
		h -= m.logPaneHeight() + 1
	}
	return max(h, 1)
}

func (m Model) logPaneHeight() int {
	return max(m.height/3, 3)
}

func (m Model) runAction(name string, fn func(context.Context, Actions) (string, error)) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		text, err := fn(ctx, actions)
		if err == nil && text == "" {
			text = name + " completed"
		}
		return actionDoneMsg{name: name, text: text, err: err}
	}
}

// Messages

type tickMsg time.Time

type changedMsg struct{}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

type actionDoneMsg struct {
	name string
	text string
	err  error
}

type autoRefreshMsg struct {
	on  bool
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ctx context.Context, changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.Read(path, logTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

func toggleAutoRefreshCmd(sync Syncer, on bool) tea.Cmd {
	if sync == nil {
		return nil
	}
	return func() tea.Msg {
		return autoRefreshMsg{on: on, err: sync.SetAutoRefresh(on)}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	defer m.unsubscribe()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
