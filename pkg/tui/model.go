// Package tui is the terminal front-end: a bubbletea program that mirrors the
// orchestrator state and maps keys to mode changes and captures.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
)

// Actions is the part of the orchestrator the TUI drives. *app.App
// implements it.
type Actions interface {
	SetMode(ctx context.Context, mode app.Mode) error
	ToggleLive(ctx context.Context) error
	Capture(ctx context.Context) (*classify.Result, error)
	PickFromGallery(ctx context.Context) (*classify.Result, error)
	RequestPermission(ctx context.Context) error
	DismissAlert()
}

// StateMsg carries a new orchestrator state.
type StateMsg app.State

// actionDoneMsg reports the outcome of a key-triggered action.
type actionDoneMsg struct {
	err error
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	actions Actions
	updates <-chan app.State

	state   app.State
	spinner spinner.Model
	help    help.Model
	keys    KeyMap
	notice  string
	width   int
}

// NewModel creates a model reading states from updates.
func NewModel(ctx context.Context, actions Actions, updates <-chan app.State) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primary)

	return Model{
		ctx:     ctx,
		actions: actions,
		updates: updates,
		state:   app.State{Mode: app.ModeHome},
		spinner: s,
		help:    help.New(),
		keys:    DefaultKeyMap(),
	}
}

// State returns the last state the model received.
func (m Model) State() app.State { return m.state }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen waits for the next state.
func (m Model) listen() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return StateMsg(st)
	}
}

func (m Model) act(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = app.State(msg)
		return m, m.listen()

	case actionDoneMsg:
		m.notice = ""
		if msg.err != nil && !errors.Is(msg.err, capture.ErrCancelled) {
			m.notice = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Home):
		return m, m.act(func(ctx context.Context) error {
			return m.actions.SetMode(ctx, app.ModeHome)
		})

	case key.Matches(msg, m.keys.Camera):
		return m, m.act(func(ctx context.Context) error {
			return m.actions.SetMode(ctx, app.ModeCamera)
		})

	case key.Matches(msg, m.keys.Capture):
		if m.state.Mode != app.ModeCamera || m.state.Busy {
			return m, nil
		}
		return m, m.act(func(ctx context.Context) error {
			_, err := m.actions.Capture(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Live):
		return m, m.act(m.actions.ToggleLive)

	case key.Matches(msg, m.keys.Gallery):
		return m, m.act(func(ctx context.Context) error {
			_, err := m.actions.PickFromGallery(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Permission):
		return m, m.act(m.actions.RequestPermission)

	case key.Matches(msg, m.keys.Dismiss):
		m.notice = ""
		return m, m.act(func(context.Context) error {
			m.actions.DismissAlert()
			return nil
		})
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("RecycleEye"))
	b.WriteString("  ")
	b.WriteString(modeStyle.Render(m.modeLine()))
	b.WriteString("\n")

	switch {
	case m.state.Busy:
		b.WriteString(labelBox.Render(m.spinner.View() + " analysing"))
	case m.state.Label != "":
		b.WriteString(m.renderLabel())
	case m.state.Mode == app.ModeHome:
		b.WriteString(dimStyle.Render("\nPoint the camera at an item, or pick a photo."))
	default:
		b.WriteString(dimStyle.Render("\nWaiting for a result."))
	}
	b.WriteString("\n")

	if m.state.SelectedImage != "" {
		b.WriteString(dimStyle.Render("image: " + m.state.SelectedImage))
		b.WriteString("\n")
	}
	if m.state.Alert != "" {
		b.WriteString(alertStyle.Render("! " + m.state.Alert))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(alertStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// modeLine lists every mode with the current one bracketed.
func (m Model) modeLine() string {
	tabs := make([]string, 0, len(app.Modes()))
	for _, mode := range app.Modes() {
		if mode == m.state.Mode {
			tabs = append(tabs, activeModeStyle.Render("["+string(mode)+"]"))
			continue
		}
		tabs = append(tabs, string(mode))
	}
	line := strings.Join(tabs, " ")
	if m.state.Mode == app.ModeLive && m.state.Scan != nil {
		line += fmt.Sprintf("  requests: %d  dropped: %d",
			m.state.Scan.RequestsIssued, m.state.Scan.TicksDropped)
	}
	return line
}

func (m Model) renderLabel() string {
	if m.state.Kind == classify.KindNoPrediction {
		return labelBox.Render(unrecognizedStyle.Render(m.state.Label))
	}
	return labelBox.
		BorderForeground(labelColor(m.state.Label)).
		Foreground(labelColor(m.state.Label)).
		Render(strings.ToUpper(m.state.Label))
}
