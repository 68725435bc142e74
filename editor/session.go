package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/workflow"
)

// Store loads and saves document text. The session does not know what a
// locator points at.
type Store interface {
	Load(ctx context.Context, locator string) (string, error)
	Save(ctx context.Context, locator, text string) error
}

// Recorder keeps saved revisions of a document.
type Recorder interface {
	Record(ctx context.Context, locator, text string) error
}

// ErrNoLocator is returned by Save when the document was never loaded from
// or saved to a location.
var ErrNoLocator = errors.New("document has no location")

// SyntaxError is returned when text cannot be parsed as YAML. The session
// keeps its previous document.
type SyntaxError struct {
	Errors []string
}

func (e *SyntaxError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// View is everything a renderer needs for one snapshot.
type View struct {
	Workflow    workflow.Workflow   `json:"-"`
	Graph       flow.Graph          `json:"graph"`
	Lint        workflow.LintErrors `json:"lint"`
	ParseErrors []string            `json:"parseErrors"`
	Locator     string              `json:"locator,omitempty"`
	CanUndo     bool                `json:"canUndo"`
	Dirty       bool                `json:"dirty"`
}

// Session holds the current snapshot of one open document.
type Session struct {
	mu sync.Mutex

	store    Store
	recorder Recorder
	cache    *ParseCache
	log      *zap.Logger

	locator     string
	doc         workflow.Workflow
	parseErrors []string
	history     *History
	dirty       bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithRecorder records a revision after every successful save.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithParseCache shares a parse cache between sessions.
func WithParseCache(pc *ParseCache) Option {
	return func(s *Session) { s.cache = pc }
}

// WithUndoDepth bounds the undo history.
func WithUndoDepth(depth int) Option {
	return func(s *Session) { s.history = NewHistory(depth) }
}

// NewSession returns a session holding an empty document.
func NewSession(store Store, opts ...Option) *Session {
	s := &Session{
		store:   store,
		log:     zap.NewNop(),
		doc:     Empty(),
		history: NewHistory(DefaultUndoDepth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) parse(text string) workflow.Result {
	return s.cache.Parse(text)
}

// Load reads a document through the store and makes it current. A syntax
// error leaves the session unchanged; shape errors still load the partial
// document and are reported through View.
func (s *Session) Load(ctx context.Context, locator string) error {
	text, err := s.store.Load(ctx, locator)
	if err != nil {
		return fmt.Errorf("loading %s: %w", locator, err)
	}
	return s.LoadText(locator, text)
}

// LoadText makes text the current document without going through the
// store, for content the host already read.
func (s *Session) LoadText(locator, text string) error {
	res := s.parse(text)
	if res.SyntaxError {
		s.log.Warn("rejected document with syntax error",
			zap.String("locator", locator),
			zap.Strings("errors", res.Errors))
		return &SyntaxError{Errors: res.Errors}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.locator = locator
	s.doc = res.Workflow
	s.parseErrors = res.Errors
	s.history.Clear()
	s.dirty = false

	s.log.Debug("document loaded",
		zap.String("locator", locator),
		zap.Int("jobs", len(res.Workflow.Jobs)),
		zap.Int("parseErrors", len(res.Errors)))
	return nil
}

// New replaces the current document with w, e.g. Sample() or Empty().
// The undo history is cleared and the document has no location.
func (s *Session) New(w workflow.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locator = ""
	s.doc = w.Clone()
	s.parseErrors = nil
	s.history.Clear()
	s.dirty = true
}

// ReplaceText applies an edit made in the source view. Like Load it is all
// or nothing on syntax errors, but it keeps the location and can be undone.
func (s *Session) ReplaceText(text string) error {
	res := s.parse(text)
	if res.SyntaxError {
		return &SyntaxError{Errors: res.Errors}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Push(s.doc)
	s.doc = res.Workflow
	s.parseErrors = res.Errors
	s.dirty = true
	return nil
}

// Apply runs a structural edit against the current snapshot. On success the
// previous snapshot is pushed on the undo stack. A failed edit changes
// nothing.
func (s *Session) Apply(edit func(workflow.Workflow) (workflow.Workflow, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := edit(s.doc)
	if err != nil {
		return err
	}
	s.history.Push(s.doc)
	s.doc = next
	s.dirty = true
	return nil
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.doc = prev
	s.dirty = true
	return true
}

// Save writes the current document back to where it was loaded from.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	locator := s.locator
	s.mu.Unlock()
	if locator == "" {
		return ErrNoLocator
	}
	return s.SaveAs(ctx, locator)
}

// SaveAs serializes the current document and writes it to locator. When
// the store fails the document and its location are left as they were.
func (s *Session) SaveAs(ctx context.Context, locator string) error {
	s.mu.Lock()
	doc := s.doc.Clone()
	s.mu.Unlock()

	text, err := workflow.Serialize(doc)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, locator, text); err != nil {
		s.log.Error("save failed", zap.String("locator", locator), zap.Error(err))
		return fmt.Errorf("saving %s: %w", locator, err)
	}

	s.mu.Lock()
	s.locator = locator
	if s.doc.Equal(doc) {
		s.dirty = false
	}
	s.mu.Unlock()

	if s.recorder != nil {
		// A lost revision does not fail the save.
		if err := s.recorder.Record(ctx, locator, text); err != nil {
			s.log.Warn("recording revision failed", zap.String("locator", locator), zap.Error(err))
		}
	}
	s.log.Info("document saved", zap.String("locator", locator), zap.Int("bytes", len(text)))
	return nil
}

// Document returns a copy of the current snapshot.
func (s *Session) Document() workflow.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Text serializes the current snapshot.
func (s *Session) Text() (string, error) {
	return workflow.Serialize(s.Document())
}

// Locator returns where the document was loaded from or last saved to.
func (s *Session) Locator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locator
}

// View recomputes the graph and lint results for the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	doc := s.doc.Clone()
	v := View{
		ParseErrors: append([]string{}, s.parseErrors...),
		Locator:     s.locator,
		CanUndo:     s.history.Len() > 0,
		Dirty:       s.dirty,
	}
	s.mu.Unlock()

	v.Workflow = doc
	v.Graph = flow.Project(doc)
	v.Lint = workflow.Lint(doc)
	if v.Lint == nil {
		v.Lint = workflow.LintErrors{}
	}
	return v
}
