// Package tui is the terminal front end: today's counters, a status line,
// the per-day table and the most recent log attempts.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/tally/internal/activity"
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/config"
	"github.com/nixlim/tally/internal/export"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/tracker"
)

type tickMsg time.Time

// StateMsg carries a tracker state pushed from outside the program, so a
// change shows up before the next tick.
type StateMsg tracker.State

// RolloverMsg is sent by the scheduler when the displayed day changed.
type RolloverMsg struct {
	Today calendar.Day
}

type logDoneMsg struct {
	kind state.Kind
	ev   state.Event
	err  error
}

type exportDoneMsg struct {
	location string
	blob     export.Blob
	err      error
}

type refreshDoneMsg struct {
	err error
}

type TrackerProvider interface {
	State() tracker.State
	Refresh(ctx context.Context) error
	Log(ctx context.Context, kind state.Kind) (state.Event, error)
	Export(ctx context.Context) (export.Blob, error)
}

type ActivityProvider interface {
	Recent(n int) []activity.Entry
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config

	tracker     TrackerProvider
	activity    ActivityProvider
	destination export.Destination

	st tracker.State
	// saving is set from the key press until the write resolves, so a
	// second press cannot slip in before the tracker reports saving.
	saving    bool
	exporting bool

	tableScroll int
	message     string

	isPersistent bool

	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		refreshRate: time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
		st:          tracker.State{Status: tracker.StatusLoading},
	}

	for _, opt := range opts {
		opt(&m)
	}

	if m.tracker != nil {
		m.st = m.tracker.State()
	}
	return m
}

type ModelOption func(*Model)

func WithTracker(t TrackerProvider) ModelOption {
	return func(m *Model) { m.tracker = t }
}

func WithActivityProvider(a ActivityProvider) ModelOption {
	return func(m *Model) { m.activity = a }
}

func WithDestination(d export.Destination) ModelOption {
	return func(m *Model) { m.destination = d }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.tracker != nil {
			m.st = m.tracker.State()
		}
		return m, m.tickCmd()

	case StateMsg:
		m.st = tracker.State(msg)
		return m, nil

	case RolloverMsg:
		m.tableScroll = 0
		m.message = "New day: " + msg.Today.MDY()
		if m.tracker != nil {
			m.st = m.tracker.State()
		}
		return m, nil

	case logDoneMsg:
		m.saving = false
		if msg.err == nil {
			m.message = fmt.Sprintf("Logged %s", msg.kind)
		} else {
			m.message = ""
		}
		if m.tracker != nil {
			m.st = m.tracker.State()
		}
		return m, nil

	case exportDoneMsg:
		m.exporting = false
		switch {
		case msg.err != nil:
			m.message = "Export failed: " + msg.err.Error()
		case msg.blob.Degraded():
			m.message = fmt.Sprintf("Exported %d rows to %s (no timestamps)", msg.blob.Rows, msg.location)
		default:
			m.message = fmt.Sprintf("Exported %d rows to %s", msg.blob.Rows, msg.location)
		}
		return m, nil

	case refreshDoneMsg:
		if m.tracker != nil {
			m.st = m.tracker.State()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) busy() bool {
	return m.saving || m.st.Busy()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.LogT1):
		return m.startLog(state.KindT1)

	case key.Matches(msg, m.keys.LogT2):
		return m.startLog(state.KindT2)

	case key.Matches(msg, m.keys.Export):
		if m.tracker == nil || m.destination == nil || m.exporting || m.st.Identity == "" {
			return m, nil
		}
		m.exporting = true
		m.message = "Exporting..."
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Refresh):
		if m.tracker == nil || m.busy() {
			return m, nil
		}
		m.message = ""
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Up):
		if m.tableScroll > 0 {
			m.tableScroll--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.tableScroll = m.clampScroll(m.tableScroll + 1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.tableScroll = max(0, m.tableScroll-m.dims().tableRows)
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.tableScroll = m.clampScroll(m.tableScroll + m.dims().tableRows)
		return m, nil
	}

	return m, nil
}

// startLog ignores the request while a load or save is running, or when no
// one is signed in.
func (m Model) startLog(kind state.Kind) (tea.Model, tea.Cmd) {
	if m.tracker == nil || m.busy() || m.st.Identity == "" {
		return m, nil
	}
	m.saving = true
	m.message = ""
	t := m.tracker
	return m, func() tea.Msg {
		ev, err := t.Log(context.Background(), kind)
		return logDoneMsg{kind: kind, ev: ev, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	t, dest := m.tracker, m.destination
	return func() tea.Msg {
		ctx := context.Background()
		blob, err := t.Export(ctx)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		loc, err := dest.Write(ctx, blob)
		return exportDoneMsg{location: loc, blob: blob, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	t := m.tracker
	return func() tea.Msg {
		return refreshDoneMsg{err: t.Refresh(context.Background())}
	}
}

func (m Model) dims() panelDimensions {
	return computeDimensions(m.width, m.height)
}

func (m Model) clampScroll(pos int) int {
	limit := max(0, len(m.st.Series)-m.dims().tableRows)
	return min(max(0, pos), limit)
}
