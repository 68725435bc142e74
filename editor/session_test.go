package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/workflow"
)

type fakeStore struct {
	mu      sync.Mutex
	files   map[string]string
	saveErr error
}

func newFakeStore(files map[string]string) *fakeStore {
	if files == nil {
		files = map[string]string{}
	}
	return &fakeStore{files: files}
}

func (f *fakeStore) Load(_ context.Context, locator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.files[locator]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

func (f *fakeStore) Save(_ context.Context, locator, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.files[locator] = text
	return nil
}

type fakeRecorder struct {
	texts []string
}

func (r *fakeRecorder) Record(_ context.Context, _, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

const ciYAML = `name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Push(workflow.Workflow{Name: string(rune('a' + i))})
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	var names []string
	for {
		w, ok := h.Undo()
		if !ok {
			break
		}
		names = append(names, w.Name)
	}
	if strings.Join(names, "") != "edc" {
		t.Errorf("undo order = %v, want e d c", names)
	}

	if NewHistory(0).Limit() != DefaultUndoDepth {
		t.Errorf("default limit = %d", NewHistory(0).Limit())
	}
}

func TestSession_LoadEditUndoSave(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(map[string]string{"ci.yml": ciYAML})
	rec := &fakeRecorder{}
	s := NewSession(store, WithRecorder(rec), WithParseCache(NewParseCache(time.Minute)))

	if err := s.Load(ctx, "ci.yml"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v := s.View(); v.CanUndo || v.Dirty || len(v.ParseErrors) != 0 {
		t.Errorf("fresh view = %+v", v)
	}

	var added string
	err := s.Apply(func(w workflow.Workflow) (workflow.Workflow, error) {
		next, id := AddJob(w, "build")
		added = id
		return next, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	v := s.View()
	if !v.CanUndo || !v.Dirty {
		t.Errorf("after edit view = %+v", v)
	}
	if _, ok := v.Graph.Node(added); !ok {
		t.Errorf("graph missing node %q", added)
	}
	if add, _ := v.Graph.Node(flow.AddJobNodeID); len(add.AddJob.Needs) != 1 || add.AddJob.Needs[0] != added {
		t.Errorf("add-job needs = %v, want [%s]", add.AddJob.Needs, added)
	}

	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.Contains(store.files["ci.yml"], added) {
		t.Errorf("saved text missing %s:\n%s", added, store.files["ci.yml"])
	}
	if len(rec.texts) != 1 {
		t.Errorf("recorded %d revisions, want 1", len(rec.texts))
	}

	if !s.Undo() {
		t.Fatal("Undo() = false")
	}
	if s.Document().HasJob(added) {
		t.Error("undo did not remove the added job")
	}
	if s.Undo() {
		t.Error("second Undo() = true, want empty history")
	}
}

func TestSession_SavedScriptReloads(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(map[string]string{"ci.yml": ciYAML})
	s := NewSession(store)
	if err := s.Load(ctx, "ci.yml"); err != nil {
		t.Fatal(err)
	}

	script := "  cat <<EOF\n\tbody \nEOF"
	err := s.Apply(func(w workflow.Workflow) (workflow.Workflow, error) {
		return UpdateStep(w, "build", 0, workflow.Step{Run: script})
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAs(ctx, "out.yml"); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}

	reloaded := NewSession(store)
	if err := reloaded.Load(ctx, "out.yml"); err != nil {
		t.Fatalf("Load() of saved file error = %v\n%s", err, store.files["out.yml"])
	}
	doc := reloaded.Document()
	job, ok := doc.Job("build")
	if !ok || len(job.Steps) != 1 || job.Steps[0].Run != script {
		t.Errorf("reloaded steps = %+v, want run %q", job, script)
	}
	if !strings.HasPrefix(store.files["out.yml"], "name: CI\non: push\n") {
		t.Errorf("saved text:\n%s", store.files["out.yml"])
	}
}

func TestSession_LoadSyntaxErrorKeepsDocument(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(map[string]string{
		"ci.yml":  ciYAML,
		"bad.yml": "jobs: [",
	})
	s := NewSession(store)
	if err := s.Load(ctx, "ci.yml"); err != nil {
		t.Fatal(err)
	}

	err := s.Load(ctx, "bad.yml")
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("Load(bad) error = %v, want *SyntaxError", err)
	}
	if s.Locator() != "ci.yml" || !s.Document().HasJob("build") {
		t.Error("failed load replaced the document")
	}

	if err := s.ReplaceText("name: ["); err == nil {
		t.Error("ReplaceText with bad YAML should fail")
	}
	if !s.Document().HasJob("build") {
		t.Error("failed ReplaceText replaced the document")
	}
}

func TestSession_ShapeErrorsStillLoad(t *testing.T) {
	store := newFakeStore(map[string]string{
		"partial.yml": "on: push\njobs:\n  ok:\n    runs-on: x\n    steps: [{run: a}]\n  broken: 3\n",
	})
	s := NewSession(store)
	if err := s.Load(context.Background(), "partial.yml"); err != nil {
		t.Fatal(err)
	}
	v := s.View()
	if len(v.ParseErrors) != 1 || !strings.Contains(v.ParseErrors[0], `Job "broken"`) {
		t.Errorf("ParseErrors = %v", v.ParseErrors)
	}
	if !v.Workflow.HasJob("ok") {
		t.Error("valid sibling job missing")
	}
}

func TestSession_FailedSaveLeavesDocument(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(map[string]string{"ci.yml": ciYAML})
	s := NewSession(store)
	if err := s.Load(ctx, "ci.yml"); err != nil {
		t.Fatal(err)
	}
	if err := s.Apply(func(w workflow.Workflow) (workflow.Workflow, error) {
		return RenameWorkflow(w, "Renamed"), nil
	}); err != nil {
		t.Fatal(err)
	}

	store.saveErr = errors.New("disk full")
	if err := s.Save(ctx); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Save() error = %v", err)
	}
	if s.Document().Name != "Renamed" || !s.View().Dirty {
		t.Error("failed save changed the document state")
	}
	if store.files["ci.yml"] != ciYAML {
		t.Error("failed save changed the stored text")
	}
}

func TestSession_FailedEditChangesNothing(t *testing.T) {
	s := NewSession(newFakeStore(nil))
	s.New(Sample())
	err := s.Apply(func(w workflow.Workflow) (workflow.Workflow, error) {
		return DeleteJob(w, "ghost")
	})
	if !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("Apply() error = %v", err)
	}
	if s.View().CanUndo {
		t.Error("failed edit pushed an undo snapshot")
	}
	if err := s.Save(context.Background()); !errors.Is(err, ErrNoLocator) {
		t.Errorf("Save() without locator error = %v", err)
	}
}

func TestSession_UndoDepth(t *testing.T) {
	s := NewSession(newFakeStore(nil), WithUndoDepth(2))
	for i := 0; i < 4; i++ {
		if err := s.Apply(func(w workflow.Workflow) (workflow.Workflow, error) {
			next, _ := AddJob(w)
			return next, nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	undos := 0
	for s.Undo() {
		undos++
	}
	if undos != 2 {
		t.Errorf("undid %d times, want 2", undos)
	}
	if got := len(s.Document().Jobs); got != 2 {
		t.Errorf("jobs after undo = %d, want 2", got)
	}
}

func TestParseCache(t *testing.T) {
	pc := NewParseCache(time.Minute)
	first := pc.Parse(ciYAML)
	first.Workflow.Jobs[0].ID = "mutated"

	second := pc.Parse(ciYAML)
	if second.Workflow.Jobs[0].ID != "build" {
		t.Error("cached result shares state with an earlier caller")
	}
	if pc.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pc.Len())
	}
	if Fingerprint("a") == Fingerprint("b") {
		t.Error("Fingerprint() collides on trivial input")
	}
}
