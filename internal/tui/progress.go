// internal/tui/progress.go

// Package tui provides the optional live progress view for interactive runs.
// The orchestrator feeds it ProgressMsg events; the view owns the terminal
// until the run finishes or the user cancels.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/krites/internal/evaluation"
)

// ProgressMsg carries one orchestrator progress event into the view.
type ProgressMsg evaluation.ProgressEvent

// DoneMsg tells the view the run finished; Err is nil on success.
type DoneMsg struct {
	Err error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// Model is the bubbletea model for the evaluation progress view.
type Model struct {
	bar      progress.Model
	total    int
	done     int
	skipped  int
	current  string
	finished bool
	err      error
	cancel   func()
}

// NewModel builds the view for a run over total catalogue entries. cancel is
// invoked when the user interrupts; the view stays up until the orchestrator
// confirms its checkpoint flush with a DoneMsg.
func NewModel(total int, cancel func()) Model {
	return Model{
		bar:    progress.New(progress.WithDefaultGradient()),
		total:  total,
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			// Quit arrives via DoneMsg once the checkpoint flush completes.
			return m, nil
		}
	case tea.WindowSizeMsg:
		width := msg.Width - 6
		if width > 70 {
			width = 70
		}
		if width > 0 {
			m.bar.Width = width
		}
	case ProgressMsg:
		m.done = msg.Index
		m.current = msg.Signature
		if msg.Skipped {
			m.skipped++
		}
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	view := titleStyle.Render("krites evaluation") + "\n\n"

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}
	view += m.bar.ViewAs(percent) + "\n"
	view += fmt.Sprintf("%d/%d methods", m.done, m.total)
	if m.skipped > 0 {
		view += skipStyle.Render(fmt.Sprintf(" (%d resumed)", m.skipped))
	}
	view += "\n"

	if m.finished {
		if m.err != nil {
			view += currentStyle.Render(fmt.Sprintf("stopped: %v", m.err)) + "\n"
		} else {
			view += doneStyle.Render("complete") + "\n"
		}
		return view
	}

	if m.current != "" {
		view += currentStyle.Render("evaluating: "+m.current) + "\n"
	}
	view += currentStyle.Render("press q to checkpoint and exit") + "\n"
	return view
}
