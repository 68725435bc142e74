package workbench

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/storage"
)

const ciDoc = `name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (*Model, *storage.MemStore) {
	t.Helper()
	store := storage.NewMemStore()
	session := editor.NewSession(store)
	if err := session.LoadText("ci.yml", ciDoc); err != nil {
		t.Fatal(err)
	}
	return NewModel(context.Background(), session, "dev"), store
}

func jobIDs(m *Model) string {
	ids := make([]string, len(m.view.Workflow.Jobs))
	for i, j := range m.view.Workflow.Jobs {
		ids[i] = j.ID
	}
	return strings.Join(ids, ",")
}

func TestAddDeleteUndo(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keys("a"))
	if got := jobIDs(m); got != "build,job-1" {
		t.Fatalf("jobs after add = %s", got)
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want the new job selected", m.cursor)
	}
	job, _ := m.selected()
	if len(job.Needs) != 1 || job.Needs[0] != "build" {
		t.Errorf("new job needs = %v, want [build]", job.Needs)
	}

	m.Update(keys("d"))
	if got := jobIDs(m); got != "build" {
		t.Fatalf("jobs after delete = %s", got)
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d after deleting the last job", m.cursor)
	}

	m.Update(keys("u"))
	if got := jobIDs(m); got != "build,job-1" {
		t.Errorf("jobs after undo = %s", got)
	}
}

func TestRenameJob(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keys("r"))
	if m.mode != ModeRenameJob {
		t.Fatalf("mode = %v, want rename", m.mode)
	}
	if m.textInput.Value() != "build" {
		t.Errorf("input prefilled with %q", m.textInput.Value())
	}
	m.textInput.SetValue("compile")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != ModeView {
		t.Errorf("mode = %v after enter", m.mode)
	}
	if got := jobIDs(m); got != "compile" {
		t.Errorf("jobs = %s", got)
	}

	// An invalid id is reported and changes nothing.
	m.Update(keys("r"))
	m.textInput.SetValue("bad id!")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := jobIDs(m); got != "compile" {
		t.Errorf("jobs = %s", got)
	}
	if !m.statusErr {
		t.Error("invalid rename was not reported")
	}
}

func TestAddStepAndCancel(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keys("s"))
	m.Update(keys("go test"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	job, _ := m.selected()
	if len(job.Steps) != 2 || job.Steps[1].Run != "go test" {
		t.Fatalf("steps = %+v", job.Steps)
	}

	m.Update(keys("s"))
	m.Update(keys("discarded"))
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	job, _ = m.selected()
	if len(job.Steps) != 2 {
		t.Errorf("esc added a step: %+v", job.Steps)
	}
}

func TestSaveAndQuit(t *testing.T) {
	m, store := newTestModel(t)

	m.Update(keys("n"))
	m.textInput.SetValue("Build")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Dirty() {
		t.Fatal("rename did not mark the document dirty")
	}

	// Quitting with unsaved changes asks first.
	_, cmd := m.Update(keys("q"))
	if cmd != nil || m.mode != ModeConfirmQuit {
		t.Fatalf("q with changes: mode = %v", m.mode)
	}
	m.Update(keys("n"))
	if m.mode != ModeView {
		t.Fatalf("mode = %v after declining", m.mode)
	}

	_, cmd = m.Update(keys("w"))
	if cmd == nil {
		t.Fatal("save returned no command")
	}
	m.Update(cmd())
	if m.Dirty() || m.statusErr {
		t.Errorf("after save dirty=%v status=%q", m.Dirty(), m.status)
	}
	text, err := store.Load(context.Background(), "ci.yml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "name: Build\n") {
		t.Errorf("saved text = %q", text)
	}

	if _, cmd := m.Update(keys("q")); cmd == nil {
		t.Error("q on a clean document did not quit")
	}
	if m.View() != "" {
		t.Error("view not cleared after quit")
	}
}

func TestViewRendersJobs(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"CI", "ci.yml", "build", "ubuntu latest", "1 step"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}
