package workflow

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
)

const (
	// MaxDocumentBytes is the largest workflow document accepted from disk
	// or over the bridge (1MB).
	MaxDocumentBytes = 1 * 1024 * 1024

	maxControlChars = 10
)

// Result is the outcome of Parse. Workflow is always usable, even when
// Errors is non-empty.
type Result struct {
	Workflow Workflow
	Errors   []string
	// SyntaxError is set when the text is not valid YAML at all. Workflow
	// is empty in that case and callers should not replace their document.
	SyntaxError bool
}

// OK reports whether parsing produced no diagnostics.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// CheckContent rejects input that cannot be a text workflow: oversized
// files, binary content, or text with many control characters.
func CheckContent(data []byte) error {
	if len(data) > MaxDocumentBytes {
		return fmt.Errorf("workflow exceeds maximum size of %d bytes", MaxDocumentBytes)
	}

	// Null bytes indicate binary content disguised as YAML
	if bytes.Contains(data, []byte{0x00}) {
		return fmt.Errorf("workflow contains null bytes (binary content not allowed)")
	}

	controlCount := 0
	for _, b := range data {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			controlCount++
		}
	}
	if controlCount > maxControlChars {
		return fmt.Errorf("workflow contains excessive control characters (%d found)", controlCount)
	}

	return nil
}

// Parse reads workflow YAML. It never fails: structural problems become
// entries in Result.Errors and the offending parts are dropped or replaced
// with placeholders so the rest of the document stays editable.
func Parse(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Errors:      []string{fmt.Sprintf("YAML parse error: %v", r)},
				SyntaxError: true,
			}
		}
	}()

	var raw any
	err := yaml.UnmarshalWithOptions([]byte(text), &raw,
		yaml.UseOrderedMap(),
		yaml.AllowDuplicateMapKey(),
	)
	if err != nil {
		return Result{
			Errors:      []string{"YAML parse error: " + yaml.FormatError(err, false, false)},
			SyntaxError: true,
		}
	}

	p := &parser{errs: []string{}}
	wf := p.root(raw)
	return Result{Workflow: wf, Errors: p.errs}
}

type parser struct {
	errs []string
}

func (p *parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, fmt.Sprintf(format, args...))
}

func (p *parser) root(raw any) Workflow {
	var wf Workflow

	if raw == nil {
		p.errorf("Invalid workflow: missing required %q section", "jobs")
		return wf
	}
	root, ok := raw.(yaml.MapSlice)
	if !ok {
		p.errorf("Invalid workflow: root must be an object")
		return wf
	}

	seen := make(map[string]bool, len(root))
	var jobsRaw any
	hasJobs := false
	for _, item := range root {
		key := keyString(item.Key)
		if seen[key] {
			p.errorf("Invalid workflow: duplicate key %q, keeping the first", key)
			continue
		}
		seen[key] = true

		switch key {
		case "name":
			wf.Name = p.scalarField(&wf.Extra, key, item.Value, "Invalid workflow")
		case "run-name":
			wf.RunName = p.scalarField(&wf.Extra, key, item.Value, "Invalid workflow")
		case "on":
			wf.On = FromAny(item.Value)
		case "env":
			v := FromAny(item.Value)
			switch v.Kind {
			case KindMap:
				wf.Env = v.Map
			case KindNull:
			default:
				// env may be an expression string; keep it verbatim.
				wf.Extra.Set(key, v)
			}
		case "jobs":
			jobsRaw = item.Value
			hasJobs = true
		default:
			wf.Extra.Set(key, FromAny(item.Value))
		}
	}

	if !hasJobs || jobsRaw == nil {
		p.errorf("Invalid workflow: missing required %q section", "jobs")
		return wf
	}
	jobs, ok := jobsRaw.(yaml.MapSlice)
	if !ok {
		p.errorf("Invalid workflow: jobs must be an object")
		return wf
	}

	wf.Jobs = make([]Job, 0, len(jobs))
	ids := make(map[string]bool, len(jobs))
	for _, item := range jobs {
		id := keyString(item.Key)
		if ids[id] {
			p.errorf("Job %q: duplicate job id, keeping the first definition", id)
			continue
		}
		ids[id] = true

		job, ok := p.job(id, item.Value)
		if !ok {
			continue
		}
		wf.Jobs = append(wf.Jobs, job)
	}

	return wf
}

// scalarField returns a scalar field as a string. Non-scalar values cannot
// be represented by the typed field and are preserved in extra instead.
func (p *parser) scalarField(extra *Map, key string, raw any, context string) string {
	v := FromAny(raw)
	if v.Kind == KindNull {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	p.errorf("%s: %s must be a string", context, key)
	extra.Set(key, v)
	return ""
}

func (p *parser) job(id string, raw any) (Job, bool) {
	m, ok := raw.(yaml.MapSlice)
	if !ok {
		if raw == nil {
			p.errorf("Job %q: job definition is empty", id)
		} else {
			p.errorf("Job %q: job must be an object, got %s", id, FromAny(raw).Kind)
		}
		return Job{}, false
	}

	ctx := "Job " + strconv.Quote(id)
	job := Job{ID: id}
	for _, item := range m {
		key := keyString(item.Key)
		switch key {
		case "name":
			job.Name = p.scalarField(&job.Extra, key, item.Value, ctx)
		case "runs-on":
			job.RunsOn = FromAny(item.Value)
		case "needs":
			p.needs(&job, FromAny(item.Value))
		case "strategy":
			v := FromAny(item.Value)
			switch v.Kind {
			case KindMap:
				s := StrategyFromMap(v.Map)
				job.Strategy = &s
			case KindNull:
			default:
				job.Extra.Set(key, v)
			}
		case "steps":
			v := FromAny(item.Value)
			switch v.Kind {
			case KindList:
				job.Steps = make([]Step, len(v.List))
				for i, raw := range v.List {
					job.Steps[i] = StepFromValue(i, raw)
				}
			case KindNull:
			default:
				p.errorf("%s: steps must be a list", ctx)
			}
		default:
			job.Extra.Set(key, FromAny(item.Value))
		}
	}
	return job, true
}

func (p *parser) needs(job *Job, v Value) {
	switch v.Kind {
	case KindNull:
	case KindList:
		job.NeedsList = true
		job.Needs = make([]string, 0, len(v.List))
		for _, item := range v.List {
			s, ok := item.AsString()
			if !ok {
				p.errorf("Job %q: needs entries must be job ids", job.ID)
				continue
			}
			job.Needs = append(job.Needs, s)
		}
	default:
		if s, ok := v.AsString(); ok {
			job.Needs = []string{s}
			return
		}
		p.errorf("Job %q: needs must be a job id or a list of job ids", job.ID)
	}
}

// StrategyFromMap splits a strategy mapping into its known fields.
func StrategyFromMap(m Map) Strategy {
	var s Strategy
	for _, e := range m {
		switch e.Key {
		case "matrix":
			s.Matrix = e.Value
		case "fail-fast":
			s.FailFast = e.Value
		case "max-parallel":
			s.MaxParallel = e.Value
		default:
			s.Extra.Set(e.Key, e.Value)
		}
	}
	return s
}

// StepFromValue normalizes the i-th (0-based) steps entry. Entries that are
// not mappings become a named placeholder with an empty script.
func StepFromValue(i int, v Value) Step {
	if v.Kind != KindMap {
		return Step{Name: fmt.Sprintf("Step %d", i+1)}
	}

	var s Step
	for _, e := range v.Map {
		switch e.Key {
		case "id", "name", "uses", "run":
			if e.Value.Kind == KindNull {
				continue
			}
			str, ok := e.Value.AsString()
			if !ok {
				s.Extra.Set(e.Key, e.Value)
				continue
			}
			switch e.Key {
			case "id":
				s.ID = str
			case "name":
				s.Name = str
			case "uses":
				s.Uses = str
			case "run":
				s.Run = str
			}
		case "with":
			switch e.Value.Kind {
			case KindMap:
				s.With = e.Value.Map
			case KindNull:
			default:
				s.Extra.Set(e.Key, e.Value)
			}
		default:
			s.Extra.Set(e.Key, e.Value)
		}
	}
	return s
}
