package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/storage"
	"github.com/timoa/github-actions-gui/workflow"
)

const ciDoc = `name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`

func newTestHandler(t *testing.T, files map[string]string) (*Handler, *storage.MemStore) {
	t.Helper()
	store := storage.NewMemStore()
	for name, text := range files {
		if err := store.Save(context.Background(), name, text); err != nil {
			t.Fatal(err)
		}
	}
	return NewHandler(editor.NewSession(store), nil), store
}

func commands(msgs []Message) string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Command
	}
	return strings.Join(out, ",")
}

func editMsg(t *testing.T, op string, args any) Message {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return Message{Command: CmdEdit, Op: op, Args: raw}
}

func lastState(t *testing.T, msgs []Message) *editor.View {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("no replies")
	}
	last := msgs[len(msgs)-1]
	if last.Command != CmdState || last.State == nil {
		t.Fatalf("last reply = %+v, want state", last)
	}
	return last.State
}

func hasJobNode(v *editor.View, id string) bool {
	n, ok := v.Graph.Node(id)
	return ok && n.Kind == flow.NodeJob
}

func jobSteps(t *testing.T, v *editor.View, id string) []workflow.Step {
	t.Helper()
	job, ok := v.Workflow.Job(id)
	if !ok {
		t.Fatalf("no job %q", id)
	}
	return job.Steps
}

func TestHandleReady(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	got := h.Handle(context.Background(), Message{Command: CmdReady})
	if c := commands(got); c != "state" {
		t.Fatalf("ready replies = %s, want state", c)
	}
}

func TestHandleOpenFile(t *testing.T) {
	h, _ := newTestHandler(t, map[string]string{"ci.yml": ciDoc})
	ctx := context.Background()

	got := h.Handle(ctx, Message{Command: CmdOpenFile, Filename: "ci.yml"})
	if c := commands(got); c != "loadFile,state" {
		t.Fatalf("openFile replies = %s", c)
	}
	if got[0].Filename != "ci.yml" || !strings.Contains(got[0].Content, "name: CI") {
		t.Errorf("loadFile = %+v", got[0])
	}
	if !hasJobNode(lastState(t, got), "build") {
		t.Error("state graph has no build job")
	}

	// A later ready re-sends the document.
	got = h.Handle(ctx, Message{Command: CmdReady})
	if c := commands(got); c != "loadFile,state" {
		t.Errorf("ready replies = %s", c)
	}

	for _, msg := range []Message{
		{Command: CmdOpenFile},
		{Command: CmdOpenFile, Filename: "missing.yml"},
	} {
		got := h.Handle(ctx, msg)
		if c := commands(got); c != "error" {
			t.Errorf("openFile(%q) replies = %s, want error", msg.Filename, c)
		}
	}
}

func TestHandleEditAndUndo(t *testing.T) {
	h, _ := newTestHandler(t, map[string]string{"ci.yml": ciDoc})
	ctx := context.Background()
	h.Handle(ctx, Message{Command: CmdOpenFile, Filename: "ci.yml"})

	v := lastState(t, h.Handle(ctx, editMsg(t, "addJob", map[string]any{"needs": []string{"build"}})))
	if !hasJobNode(v, "job-1") {
		t.Fatal("addJob did not create job-1")
	}
	if !v.Dirty || !v.CanUndo {
		t.Errorf("after edit dirty=%v canUndo=%v", v.Dirty, v.CanUndo)
	}

	v = lastState(t, h.Handle(ctx, editMsg(t, "renameJob", map[string]any{"job": "job-1", "newId": "deploy"})))
	if !hasJobNode(v, "deploy") || hasJobNode(v, "job-1") {
		t.Error("renameJob did not rename job-1 to deploy")
	}

	v = lastState(t, h.Handle(ctx, Message{Command: CmdUndo}))
	if !hasJobNode(v, "job-1") || hasJobNode(v, "deploy") {
		t.Error("undo did not restore job-1")
	}

	got := h.Handle(ctx, editMsg(t, "deleteJob", map[string]any{"job": "nope"}))
	if c := commands(got); c != "error" {
		t.Errorf("deleteJob(nope) replies = %s, want error", c)
	}
	got = h.Handle(ctx, editMsg(t, "explode", nil))
	if c := commands(got); c != "error" {
		t.Errorf("unknown edit replies = %s, want error", c)
	}
	got = h.Handle(ctx, Message{Command: CmdEdit, Op: "addJob", Args: json.RawMessage(`{"needs":`)})
	if c := commands(got); c != "error" {
		t.Errorf("bad args replies = %s, want error", c)
	}
}

func TestHandleStepEdits(t *testing.T) {
	h, _ := newTestHandler(t, map[string]string{"ci.yml": ciDoc})
	ctx := context.Background()
	h.Handle(ctx, Message{Command: CmdOpenFile, Filename: "ci.yml"})

	h.Handle(ctx, editMsg(t, "addStep", map[string]any{"job": "build", "step": map[string]any{"name": "Test", "run": "make test"}}))
	v := lastState(t, h.Handle(ctx, editMsg(t, "moveStep", map[string]any{"job": "build", "from": 1, "to": 0})))
	steps := jobSteps(t, v, "build")
	if len(steps) != 2 || steps[0].Run != "make test" {
		t.Fatalf("steps after move = %+v", steps)
	}

	v = lastState(t, h.Handle(ctx, editMsg(t, "deleteStep", map[string]any{"job": "build", "index": 0})))
	if steps := jobSteps(t, v, "build"); len(steps) != 1 || steps[0].Run != "make" {
		t.Errorf("steps after delete = %+v", steps)
	}
}

func TestHandleSetSource(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	ctx := context.Background()

	v := lastState(t, h.Handle(ctx, Message{Command: CmdSetSource, Content: ciDoc}))
	if !hasJobNode(v, "build") {
		t.Error("setSource did not replace the document")
	}

	got := h.Handle(ctx, Message{Command: CmdSetSource, Content: "jobs: [unclosed"})
	if c := commands(got); c != "error" {
		t.Fatalf("setSource(bad) replies = %s, want error", c)
	}
	if len(got[0].Errors) == 0 {
		t.Error("syntax error carries no details")
	}
	// The previous document survives.
	v = lastState(t, h.Handle(ctx, Message{Command: CmdReady}))
	if !hasJobNode(v, "build") {
		t.Error("document lost after a syntax error")
	}
}

func TestHandleSave(t *testing.T) {
	t.Run("new document is named after the workflow", func(t *testing.T) {
		h, store := newTestHandler(t, nil)
		ctx := context.Background()
		h.Handle(ctx, editMsg(t, "new", map[string]any{"sample": true}))

		got := h.Handle(ctx, Message{Command: CmdSaveRequest})
		if c := commands(got); c != "saved,state" {
			t.Fatalf("save replies = %s", c)
		}
		if got[0].Filename != "sample.yml" {
			t.Errorf("saved filename = %q, want sample.yml", got[0].Filename)
		}
		if _, err := store.Load(ctx, "sample.yml"); err != nil {
			t.Error(err)
		}
		if lastState(t, got).Dirty {
			t.Error("document still dirty after save")
		}
	})

	t.Run("content and filename from the UI", func(t *testing.T) {
		h, store := newTestHandler(t, nil)
		ctx := context.Background()

		got := h.Handle(ctx, Message{Command: CmdSaveFile, Content: ciDoc, Filename: "ci.yml"})
		if c := commands(got); c != "saved,state" {
			t.Fatalf("save replies = %s", c)
		}
		text, err := store.Load(ctx, "ci.yml")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(text, "run: make") {
			t.Errorf("saved text = %q", text)
		}
	})

	t.Run("loaded document saves in place", func(t *testing.T) {
		h, store := newTestHandler(t, map[string]string{"ci.yml": ciDoc})
		ctx := context.Background()
		h.Handle(ctx, Message{Command: CmdOpenFile, Filename: "ci.yml"})
		h.Handle(ctx, editMsg(t, "renameWorkflow", map[string]any{"name": "Build"}))

		got := h.Handle(ctx, Message{Command: CmdSaveFile, Filename: "other.yml"})
		if got[0].Filename != "ci.yml" {
			t.Errorf("saved to %q, want ci.yml", got[0].Filename)
		}
		text, _ := store.Load(ctx, "ci.yml")
		if !strings.Contains(text, "name: Build") {
			t.Errorf("saved text = %q", text)
		}
	})
}

func TestHandleUnknownCommand(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	got := h.Handle(context.Background(), Message{Command: "launch"})
	if len(got) != 1 || got[0].Command != CmdError || !strings.Contains(got[0].Error, "launch") {
		t.Errorf("replies = %+v", got)
	}
}
