package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/workflow"
)

// Handler applies UI messages to one session. It is not tied to a
// transport; the server feeds it from a websocket.
type Handler struct {
	session *editor.Session
	log     *zap.Logger
}

// NewHandler returns a handler driving session.
func NewHandler(session *editor.Session, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{session: session, log: log}
}

// Handle processes one message and returns the replies in order. Failures
// are reported as an error message and leave the session as it was.
func (h *Handler) Handle(ctx context.Context, msg Message) []Message {
	h.log.Debug("bridge message", zap.String("command", msg.Command), zap.String("op", msg.Op))

	switch msg.Command {
	case CmdReady:
		if h.session.Locator() != "" {
			return []Message{h.loadFile(), h.state()}
		}
		return []Message{h.state()}

	case CmdOpenFile:
		if msg.Filename == "" {
			return []Message{errorMessage(errors.New("openFile: filename is required"))}
		}
		if err := h.session.Load(ctx, msg.Filename); err != nil {
			return []Message{errorMessage(err)}
		}
		return []Message{h.loadFile(), h.state()}

	case CmdSaveFile, CmdSaveRequest:
		return h.save(ctx, msg)

	case CmdSetSource:
		if err := h.session.ReplaceText(msg.Content); err != nil {
			return []Message{errorMessage(err)}
		}
		return []Message{h.state()}

	case CmdEdit:
		edit, err := decodeEdit(msg.Op, msg.Args)
		if err == nil {
			err = h.apply(edit)
		}
		if err != nil {
			return []Message{errorMessage(err)}
		}
		return []Message{h.state()}

	case CmdUndo, CmdUndoRequest:
		h.session.Undo()
		return []Message{h.state()}
	}
	return []Message{errorMessage(fmt.Errorf("unknown command %q", msg.Command))}
}

func (h *Handler) save(ctx context.Context, msg Message) []Message {
	if msg.Content != "" {
		if err := h.session.ReplaceText(msg.Content); err != nil {
			return []Message{errorMessage(err)}
		}
	}

	var err error
	switch {
	case h.session.Locator() != "":
		err = h.session.Save(ctx)
	case msg.Filename != "":
		err = h.session.SaveAs(ctx, msg.Filename)
	default:
		err = h.session.SaveAs(ctx, editor.FileName(h.session.Document()))
	}
	if err != nil {
		return []Message{errorMessage(err)}
	}
	return []Message{{Command: CmdSaved, Filename: h.session.Locator()}, h.state()}
}

func (h *Handler) loadFile() Message {
	text, err := h.session.Text()
	if err != nil {
		return errorMessage(err)
	}
	return Message{Command: CmdLoadFile, Content: text, Filename: h.session.Locator()}
}

func (h *Handler) state() Message {
	text, err := h.session.Text()
	if err != nil {
		return errorMessage(err)
	}
	view := h.session.View()
	return Message{Command: CmdState, Content: text, Filename: view.Locator, State: &view}
}

// editArgs is the union of the arguments of every edit op.
type editArgs struct {
	Job    string         `json:"job"`
	NewID  string         `json:"newId"`
	Needs  []string       `json:"needs"`
	Index  int            `json:"index"`
	From   int            `json:"from"`
	To     int            `json:"to"`
	Event  string         `json:"event"`
	Config workflow.Value `json:"config"`
	Name   string         `json:"name"`
	Key    string         `json:"key"`
	Field  string         `json:"field"`
	Value  workflow.Value `json:"value"`
	Step   workflow.Value `json:"step"`
	Sample bool           `json:"sample"`
}

type edit struct {
	op   string
	args editArgs
}

func decodeEdit(op string, raw json.RawMessage) (edit, error) {
	e := edit{op: op}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.args); err != nil {
			return e, fmt.Errorf("edit %s: invalid args: %w", op, err)
		}
	}
	return e, nil
}

func (h *Handler) apply(e edit) error {
	a := e.args
	if e.op == "new" {
		if a.Sample {
			h.session.New(editor.Sample())
		} else {
			h.session.New(editor.Empty())
		}
		return nil
	}

	var fn func(workflow.Workflow) (workflow.Workflow, error)
	switch e.op {
	case "addJob":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) {
			out, id := editor.AddJob(w, a.Needs...)
			h.log.Debug("job added", zap.String("job", id))
			return out, nil
		}
	case "deleteJob":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.DeleteJob(w, a.Job) }
	case "renameJob":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.RenameJob(w, a.Job, a.NewID) }
	case "setJobField":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.SetJobField(w, a.Job, a.Field, a.Value)
		}
	case "addTrigger":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.AddTrigger(w), nil }
	case "removeTrigger":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.RemoveTrigger(w, a.Index) }
	case "setTrigger":
		if !a.Config.IsNull() && a.Config.Kind != workflow.KindMap {
			return fmt.Errorf("edit setTrigger: config must be an object")
		}
		fn = func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.SetTriggerConfig(w, a.Index, a.Event, a.Config.Map)
		}
	case "renameWorkflow":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.RenameWorkflow(w, a.Name), nil }
	case "setRunName":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.SetRunName(w, a.Name), nil }
	case "setEnv":
		if a.Key == "" {
			return fmt.Errorf("edit setEnv: key is required")
		}
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.SetEnv(w, a.Key, a.Value), nil }
	case "addStep":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.AddStep(w, a.Job, workflow.StepFromValue(0, a.Step))
		}
	case "updateStep":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) {
			return editor.UpdateStep(w, a.Job, a.Index, workflow.StepFromValue(a.Index, a.Step))
		}
	case "deleteStep":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.DeleteStep(w, a.Job, a.Index) }
	case "moveStep":
		fn = func(w workflow.Workflow) (workflow.Workflow, error) { return editor.MoveStep(w, a.Job, a.From, a.To) }
	default:
		return fmt.Errorf("unknown edit %q", e.op)
	}
	return h.session.Apply(fn)
}
