// Package bridge connects an editing session to a UI over JSON messages.
// The UI sends commands (ready, openFile, saveFile, edit, setSource, undo)
// and receives the document text and the recomputed view after each one.
package bridge

import (
	"encoding/json"
	"errors"

	"github.com/timoa/github-actions-gui/editor"
)

// Commands sent by the UI.
const (
	CmdReady       = "ready"
	CmdOpenFile    = "openFile"
	CmdSaveFile    = "saveFile"
	CmdSaveRequest = "saveRequest"
	CmdEdit        = "edit"
	CmdSetSource   = "setSource"
	CmdUndo        = "undo"
	CmdUndoRequest = "undoRequest"
)

// Commands sent to the UI.
const (
	CmdLoadFile = "loadFile"
	CmdState    = "state"
	CmdSaved    = "saved"
	CmdError    = "error"
)

// Message is the envelope for both directions. Which fields are set depends
// on Command.
type Message struct {
	Command  string          `json:"command"`
	Content  string          `json:"content,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Op       string          `json:"op,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	State    *editor.View    `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
}

func errorMessage(err error) Message {
	m := Message{Command: CmdError, Error: err.Error()}
	var syn *editor.SyntaxError
	if errors.As(err, &syn) {
		m.Errors = syn.Errors
	}
	return m
}
