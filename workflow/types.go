package workflow

// Workflow is the in-memory form of a workflow document.
type Workflow struct {
	Name    string
	RunName string
	// On keeps the trigger spec exactly as written (string, list or mapping).
	// Use ParseTriggers for the normalized form.
	On   Value
	Env  Map
	Jobs []Job
	// Extra holds top-level keys the model does not name (permissions,
	// concurrency, defaults, ...) in document order.
	Extra Map
}

// Job represents a job in a workflow
type Job struct {
	ID   string
	Name string
	// RunsOn is null when the document does not set runs-on.
	RunsOn Value
	// Needs always holds the dependency ids as a list. NeedsList records
	// whether the document wrote them as a sequence, so a single scalar
	// dependency serializes back as a scalar.
	Needs     []string
	NeedsList bool
	Strategy  *Strategy
	Steps     []Step
	Extra     Map
}

// Step represents a step in a job
type Step struct {
	ID    string
	Name  string
	Uses  string
	Run   string
	With  Map
	Extra Map
}

// Strategy represents a job's strategy block. Fields the document leaves
// out stay null.
type Strategy struct {
	Matrix      Value
	FailFast    Value
	MaxParallel Value
	Extra       Map
}

// DisplayName returns the job name, falling back to its id.
func (j Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// ReusableWorkflow reports whether the job calls another workflow through
// a job-level uses key.
func (j Job) ReusableWorkflow() bool {
	v, ok := j.Extra.Get("uses")
	if !ok {
		return false
	}
	s, _ := v.AsString()
	return s != ""
}

// Job returns the job with the given id.
func (w *Workflow) Job(id string) (*Job, bool) {
	for i := range w.Jobs {
		if w.Jobs[i].ID == id {
			return &w.Jobs[i], true
		}
	}
	return nil, false
}

// HasJob reports whether a job with the given id exists.
func (w Workflow) HasJob(id string) bool {
	for _, j := range w.Jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}

// JobIDs returns job ids in document order.
func (w Workflow) JobIDs() []string {
	ids := make([]string, len(w.Jobs))
	for i, j := range w.Jobs {
		ids[i] = j.ID
	}
	return ids
}

// IsEmpty reports whether the document has neither jobs nor triggers.
func (w Workflow) IsEmpty() bool {
	return len(w.Jobs) == 0 && len(ParseTriggers(w.On)) == 0
}

// Clone returns a deep copy that shares no mutable state with w.
func (w Workflow) Clone() Workflow {
	out := Workflow{
		Name:    w.Name,
		RunName: w.RunName,
		On:      w.On.Clone(),
		Env:     w.Env.Clone(),
		Extra:   w.Extra.Clone(),
	}
	if w.Jobs != nil {
		out.Jobs = make([]Job, len(w.Jobs))
		for i, j := range w.Jobs {
			out.Jobs[i] = j.Clone()
		}
	}
	return out
}

func (j Job) Clone() Job {
	out := j
	out.RunsOn = j.RunsOn.Clone()
	if j.Needs != nil {
		out.Needs = append([]string(nil), j.Needs...)
	}
	if j.Strategy != nil {
		s := j.Strategy.Clone()
		out.Strategy = &s
	}
	if j.Steps != nil {
		out.Steps = make([]Step, len(j.Steps))
		for i, s := range j.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	out.Extra = j.Extra.Clone()
	return out
}

func (s Step) Clone() Step {
	out := s
	out.With = s.With.Clone()
	out.Extra = s.Extra.Clone()
	return out
}

func (s Strategy) Clone() Strategy {
	return Strategy{
		Matrix:      s.Matrix.Clone(),
		FailFast:    s.FailFast.Clone(),
		MaxParallel: s.MaxParallel.Clone(),
		Extra:       s.Extra.Clone(),
	}
}

// Equal reports whether two documents are the same after normalization.
// Needs arity is part of the comparison.
func (w Workflow) Equal(o Workflow) bool {
	if w.Name != o.Name || w.RunName != o.RunName {
		return false
	}
	if !w.On.Equal(o.On) || !w.Env.Equal(o.Env) || !w.Extra.Equal(o.Extra) {
		return false
	}
	if len(w.Jobs) != len(o.Jobs) {
		return false
	}
	for i := range w.Jobs {
		if !w.Jobs[i].Equal(o.Jobs[i]) {
			return false
		}
	}
	return true
}

func (j Job) Equal(o Job) bool {
	if j.ID != o.ID || j.Name != o.Name || !j.RunsOn.Equal(o.RunsOn) {
		return false
	}
	if len(j.Needs) != len(o.Needs) || j.NeedsList != o.NeedsList {
		return false
	}
	for i := range j.Needs {
		if j.Needs[i] != o.Needs[i] {
			return false
		}
	}
	if (j.Strategy == nil) != (o.Strategy == nil) {
		return false
	}
	if j.Strategy != nil && !j.Strategy.Equal(*o.Strategy) {
		return false
	}
	if len(j.Steps) != len(o.Steps) {
		return false
	}
	for i := range j.Steps {
		if !j.Steps[i].Equal(o.Steps[i]) {
			return false
		}
	}
	return j.Extra.Equal(o.Extra)
}

func (s Step) Equal(o Step) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Uses == o.Uses && s.Run == o.Run &&
		s.With.Equal(o.With) && s.Extra.Equal(o.Extra)
}

func (s Strategy) Equal(o Strategy) bool {
	return s.Matrix.Equal(o.Matrix) && s.FailFast.Equal(o.FailFast) &&
		s.MaxParallel.Equal(o.MaxParallel) && s.Extra.Equal(o.Extra)
}
