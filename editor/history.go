package editor

import (
	"github.com/timoa/github-actions-gui/workflow"
)

// DefaultUndoDepth is the number of snapshots kept when no depth is set.
const DefaultUndoDepth = 50

// History is a bounded stack of full document snapshots. When it is full
// the oldest snapshot is discarded.
type History struct {
	limit int
	stack []workflow.Workflow
}

// NewHistory returns a history holding at most limit snapshots. A limit
// below 1 selects DefaultUndoDepth.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = DefaultUndoDepth
	}
	return &History{limit: limit}
}

// Push records a snapshot taken before a mutation.
func (h *History) Push(w workflow.Workflow) {
	h.stack = append(h.stack, w.Clone())
	if over := len(h.stack) - h.limit; over > 0 {
		h.stack = append(h.stack[:0:0], h.stack[over:]...)
	}
}

// Undo pops the most recent snapshot.
func (h *History) Undo() (workflow.Workflow, bool) {
	if len(h.stack) == 0 {
		return workflow.Workflow{}, false
	}
	last := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return last, true
}

// Len returns the number of snapshots available to undo.
func (h *History) Len() int { return len(h.stack) }

// Limit returns the maximum depth.
func (h *History) Limit() int { return h.limit }

// Clear drops every snapshot, e.g. after loading another document.
func (h *History) Clear() { h.stack = nil }
