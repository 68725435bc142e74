// Package workbench is the terminal editor behind `wfedit edit`: a job
// list over one editing session with keys for the structural edits.
package workbench

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/workflow"
)

// EditMode indicates the current editing state.
type EditMode int

// Edit modes.
const (
	ModeView EditMode = iota
	ModeRenameJob
	ModeRenameWorkflow
	ModeAddStep
	ModeConfirmQuit
)

// Model is the Bubble Tea model for the workflow editor.
type Model struct {
	ctx     context.Context
	session *editor.Session
	version string
	target  string // where an unsaved document goes

	// Snapshot of the session, refreshed after every change.
	view editor.View

	cursor int

	mode      EditMode
	textInput textinput.Model

	status    string
	statusErr bool
	saving    bool
	quitting  bool
}

// NewModel returns an editor over session.
func NewModel(ctx context.Context, session *editor.Session, version string) *Model {
	ti := textinput.New()
	ti.Width = 40
	ti.CharLimit = 256

	m := &Model{
		ctx:       ctx,
		session:   session,
		version:   version,
		mode:      ModeView,
		textInput: ti,
	}
	m.refresh()
	return m
}

// SaveTo sets where a document without a location is saved. By default the
// file is named after the workflow.
func (m *Model) SaveTo(locator string) {
	m.target = locator
}

// savedMsg reports the result of an asynchronous save.
type savedMsg struct {
	locator string
	err     error
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("saved " + msg.locator)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeView:
			return m.handleKeyPress(msg)
		case ModeConfirmQuit:
			return m.handleConfirmQuit(msg)
		default:
			return m.updateTextInput(msg)
		}
	}
	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "q", "esc", "ctrl+c":
		if m.view.Dirty {
			m.mode = ModeConfirmQuit
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.view.Workflow.Jobs)-1 {
			m.cursor++
		}

	case "a":
		// Same dependencies the add-job affordance of the graph offers.
		var id string
		m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			out, newID := editor.AddJob(w, flow.Frontier(w)...)
			id = newID
			return out, nil
		})
		m.selectJob(id)

	case "d", "delete":
		if job, ok := m.selected(); ok {
			m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
				return editor.DeleteJob(w, job.ID)
			})
		}

	case "r":
		if job, ok := m.selected(); ok {
			m.startTextEdit(ModeRenameJob, "job id", job.ID)
		}

	case "n":
		m.startTextEdit(ModeRenameWorkflow, "workflow name", m.view.Workflow.Name)

	case "s":
		if _, ok := m.selected(); ok {
			m.startTextEdit(ModeAddStep, "run", "")
		}

	case "t":
		m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.AddTrigger(w), nil
		})

	case "u", "ctrl+z":
		if m.session.Undo() {
			m.refresh()
		} else {
			m.setStatus("nothing to undo")
		}

	case "w", "ctrl+s":
		return m, m.save()
	}

	return m, nil
}

func (m *Model) handleConfirmQuit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	default:
		m.mode = ModeView
		return m, nil
	}
}

func (m *Model) updateTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopTextEdit()
		return m, nil
	case "enter":
		m.commitTextInput()
		m.stopTextEdit()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) startTextEdit(mode EditMode, placeholder, value string) {
	m.mode = mode
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.textInput.Focus()
}

func (m *Model) stopTextEdit() {
	m.mode = ModeView
	m.textInput.Blur()
}

func (m *Model) commitTextInput() {
	value := strings.TrimSpace(m.textInput.Value())
	job, hasJob := m.selected()

	switch m.mode {
	case ModeRenameJob:
		if !hasJob || value == job.ID {
			return
		}
		m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.RenameJob(w, job.ID, value)
		})
		m.selectJob(value)

	case ModeRenameWorkflow:
		m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.RenameWorkflow(w, value), nil
		})

	case ModeAddStep:
		if !hasJob || value == "" {
			return
		}
		m.apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.AddStep(w, job.ID, workflow.Step{Run: value})
		})
	}
}

func (m *Model) apply(edit func(workflow.Workflow) (workflow.Workflow, error)) {
	if err := m.session.Apply(edit); err != nil {
		m.setError(err)
		return
	}
	m.refresh()
}

func (m *Model) save() tea.Cmd {
	if m.saving {
		return nil
	}
	m.saving = true
	m.setStatus("saving...")

	ctx, session, target := m.ctx, m.session, m.target
	return func() tea.Msg {
		var err error
		if session.Locator() == "" {
			if target == "" {
				target = editor.FileName(session.Document())
			}
			err = session.SaveAs(ctx, target)
		} else {
			err = session.Save(ctx)
		}
		return savedMsg{locator: session.Locator(), err: err}
	}
}

// refresh reloads the view from the session and keeps the cursor in range.
func (m *Model) refresh() {
	m.view = m.session.View()
	if n := len(m.view.Workflow.Jobs); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m *Model) selected() (workflow.Job, bool) {
	jobs := m.view.Workflow.Jobs
	if m.cursor < 0 || m.cursor >= len(jobs) {
		return workflow.Job{}, false
	}
	return jobs[m.cursor], true
}

func (m *Model) selectJob(id string) {
	for i, job := range m.view.Workflow.Jobs {
		if job.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = fmt.Sprint(err)
	m.statusErr = true
}

// Dirty reports whether the document has unsaved changes.
func (m *Model) Dirty() bool {
	return m.view.Dirty
}
