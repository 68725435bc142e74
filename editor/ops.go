// Package editor implements structural edits on workflow snapshots, the
// undo history and the editing session that ties them to storage.
//
// Every edit takes a snapshot and returns a new one. The input is never
// modified, so a snapshot handed to a renderer or pushed on the undo stack
// stays valid.
package editor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/timoa/github-actions-gui/workflow"
)

const (
	// DefaultRunner is the runs-on value given to new jobs.
	DefaultRunner = "ubuntu-latest"
	// DefaultScript is the run script of the first step of a new job.
	DefaultScript = `echo "Hello, World!"`
	// UntitledName names a workflow created from nothing.
	UntitledName = "Untitled Workflow"
	// DefaultBranch is the branch filter of the push trigger added to a
	// workflow that has no triggers.
	DefaultBranch = "main"
)

var (
	ErrUnknownJob      = errors.New("unknown job")
	ErrJobExists       = errors.New("job already exists")
	ErrInvalidJobID    = errors.New("invalid job id")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// NextJobID returns the first free id of the form job-N.
func NextJobID(w workflow.Workflow) string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("job-%d", n)
		if !w.HasJob(id) {
			return id
		}
	}
}

// defaultOn is the trigger a workflow gets when a job is added to a
// document without triggers.
func defaultOn() workflow.Value {
	return workflow.MapValue(workflow.Map{{
		Key: "push",
		Value: workflow.MapValue(workflow.Map{
			{Key: "branches", Value: workflow.Strings(DefaultBranch)},
		}),
	}})
}

// setNeeds stores deps on job, collapsing one dependency to the scalar form
// and several to the list form.
func setNeeds(job *workflow.Job, deps []string) {
	if len(deps) == 0 {
		job.Needs = nil
		job.NeedsList = false
		return
	}
	job.Needs = append([]string(nil), deps...)
	job.NeedsList = len(deps) > 1
}

// AddJob appends a new job that depends on needs and returns the new
// snapshot and the generated job id. A document without triggers also
// gets a push trigger on the default branch, and a blank document gets a
// placeholder name.
func AddJob(w workflow.Workflow, needs ...string) (workflow.Workflow, string) {
	out := w.Clone()
	if w.IsEmpty() && out.Name == "" {
		out.Name = UntitledName
	}
	if len(workflow.ParseTriggers(out.On)) == 0 {
		out.On = defaultOn()
	}

	id := NextJobID(out)
	job := workflow.Job{
		ID:     id,
		RunsOn: workflow.String(DefaultRunner),
		Steps:  []workflow.Step{{Run: DefaultScript}},
	}
	setNeeds(&job, needs)
	out.Jobs = append(out.Jobs, job)
	return out, id
}

// AddTrigger appends a bare push trigger. A blank document gets the
// default push-on-main trigger and a placeholder name instead.
func AddTrigger(w workflow.Workflow) workflow.Workflow {
	out := w.Clone()
	if w.IsEmpty() {
		if out.Name == "" {
			out.Name = UntitledName
		}
		out.On = defaultOn()
		return out
	}
	triggers := workflow.ParseTriggers(out.On)
	triggers = append(triggers, workflow.ParsedTrigger{Event: "push", Config: workflow.Map{}})
	out.On = workflow.TriggersToOn(triggers)
	return out
}

// RemoveTrigger drops the i-th normalized trigger.
func RemoveTrigger(w workflow.Workflow, i int) (workflow.Workflow, error) {
	triggers := workflow.ParseTriggers(w.On)
	if i < 0 || i >= len(triggers) {
		return w, fmt.Errorf("trigger %d: %w", i, ErrIndexOutOfRange)
	}
	out := w.Clone()
	triggers = append(triggers[:i:i], triggers[i+1:]...)
	out.On = workflow.TriggersToOn(triggers)
	return out, nil
}

// SetTriggerConfig replaces the event and filters of the i-th normalized
// trigger.
func SetTriggerConfig(w workflow.Workflow, i int, event string, config workflow.Map) (workflow.Workflow, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return w, errors.New("trigger event cannot be empty")
	}
	triggers := workflow.ParseTriggers(w.On)
	if i < 0 || i >= len(triggers) {
		return w, fmt.Errorf("trigger %d: %w", i, ErrIndexOutOfRange)
	}
	if config == nil {
		config = workflow.Map{}
	}
	out := w.Clone()
	triggers[i] = workflow.ParsedTrigger{Event: event, Config: config.Clone()}
	out.On = workflow.TriggersToOn(triggers)
	return out, nil
}

// DeleteJob removes a job and strips it from every other job's needs.
func DeleteJob(w workflow.Workflow, id string) (workflow.Workflow, error) {
	if !w.HasJob(id) {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	out := w.Clone()
	jobs := out.Jobs[:0]
	for _, job := range out.Jobs {
		if job.ID == id {
			continue
		}
		if containsString(job.Needs, id) {
			setNeeds(&job, removeString(job.Needs, id))
		}
		jobs = append(jobs, job)
	}
	out.Jobs = jobs
	return out, nil
}

// RenameJob changes a job id and rewrites every needs reference to it.
func RenameJob(w workflow.Workflow, oldID, newID string) (workflow.Workflow, error) {
	if !w.HasJob(oldID) {
		return w, fmt.Errorf("%q: %w", oldID, ErrUnknownJob)
	}
	if oldID == newID {
		return w, nil
	}
	if !workflow.ValidJobID(newID) {
		return w, fmt.Errorf("%q: %w", newID, ErrInvalidJobID)
	}
	if w.HasJob(newID) {
		return w, fmt.Errorf("%q: %w", newID, ErrJobExists)
	}

	out := w.Clone()
	for i := range out.Jobs {
		job := &out.Jobs[i]
		if job.ID == oldID {
			job.ID = newID
		}
		for j, dep := range job.Needs {
			if dep == oldID {
				job.Needs[j] = newID
			}
		}
	}
	return out, nil
}

// RenameWorkflow sets the workflow display name. An empty name removes it.
func RenameWorkflow(w workflow.Workflow, name string) workflow.Workflow {
	out := w.Clone()
	out.Name = strings.TrimSpace(name)
	return out
}

// SetRunName sets the run-name template.
func SetRunName(w workflow.Workflow, runName string) workflow.Workflow {
	out := w.Clone()
	out.RunName = runName
	return out
}

// SetEnv sets a workflow-level environment variable. A null value removes it.
func SetEnv(w workflow.Workflow, key string, v workflow.Value) workflow.Workflow {
	out := w.Clone()
	if v.IsNull() {
		out.Env.Delete(key)
		if len(out.Env) == 0 {
			out.Env = nil
		}
		return out
	}
	out.Env.Set(key, v)
	return out
}

// SetJobField sets one field of a job from a generic value. Known fields
// are validated and converted; any other key is stored verbatim. A null
// value removes the field.
func SetJobField(w workflow.Workflow, id, field string, v workflow.Value) (workflow.Workflow, error) {
	if !w.HasJob(id) {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	out := w.Clone()
	job, _ := out.Job(id)

	switch field {
	case "id":
		s, ok := v.AsString()
		if !ok {
			return w, fmt.Errorf("job %q: id must be a string", id)
		}
		return RenameJob(w, id, s)
	case "name":
		if v.IsNull() {
			job.Name = ""
			break
		}
		s, ok := v.AsString()
		if !ok {
			return w, fmt.Errorf("job %q: name must be a string", id)
		}
		job.Name = s
	case "runs-on":
		job.RunsOn = v.Clone()
	case "needs":
		switch v.Kind {
		case workflow.KindNull:
			setNeeds(job, nil)
		case workflow.KindList:
			deps := v.StringList()
			if len(deps) != len(v.List) {
				return w, fmt.Errorf("job %q: needs entries must be job ids", id)
			}
			setNeeds(job, deps)
		default:
			s, ok := v.AsString()
			if !ok {
				return w, fmt.Errorf("job %q: needs must be a job id or a list of job ids", id)
			}
			setNeeds(job, []string{s})
		}
	case "strategy":
		switch v.Kind {
		case workflow.KindNull:
			job.Strategy = nil
		case workflow.KindMap:
			s := workflow.StrategyFromMap(v.Map.Clone())
			job.Strategy = &s
		default:
			return w, fmt.Errorf("job %q: strategy must be an object", id)
		}
	case "steps":
		switch v.Kind {
		case workflow.KindNull:
			job.Steps = nil
		case workflow.KindList:
			job.Steps = make([]workflow.Step, len(v.List))
			for i, item := range v.List {
				job.Steps[i] = workflow.StepFromValue(i, item.Clone())
			}
		default:
			return w, fmt.Errorf("job %q: steps must be a list", id)
		}
	default:
		if v.IsNull() {
			job.Extra.Delete(field)
		} else {
			job.Extra.Set(field, v.Clone())
		}
	}
	return out, nil
}

// AddStep appends a step to a job.
func AddStep(w workflow.Workflow, id string, step workflow.Step) (workflow.Workflow, error) {
	if !w.HasJob(id) {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	out := w.Clone()
	job, _ := out.Job(id)
	job.Steps = append(job.Steps, step.Clone())
	return out, nil
}

// UpdateStep replaces the i-th step of a job.
func UpdateStep(w workflow.Workflow, id string, i int, step workflow.Step) (workflow.Workflow, error) {
	job, ok := w.Job(id)
	if !ok {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	if i < 0 || i >= len(job.Steps) {
		return w, fmt.Errorf("job %q step %d: %w", id, i, ErrIndexOutOfRange)
	}
	out := w.Clone()
	job, _ = out.Job(id)
	job.Steps[i] = step.Clone()
	return out, nil
}

// DeleteStep removes the i-th step of a job.
func DeleteStep(w workflow.Workflow, id string, i int) (workflow.Workflow, error) {
	job, ok := w.Job(id)
	if !ok {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	if i < 0 || i >= len(job.Steps) {
		return w, fmt.Errorf("job %q step %d: %w", id, i, ErrIndexOutOfRange)
	}
	out := w.Clone()
	job, _ = out.Job(id)
	job.Steps = append(job.Steps[:i:i], job.Steps[i+1:]...)
	return out, nil
}

// MoveStep moves the step at index from to index to.
func MoveStep(w workflow.Workflow, id string, from, to int) (workflow.Workflow, error) {
	job, ok := w.Job(id)
	if !ok {
		return w, fmt.Errorf("%q: %w", id, ErrUnknownJob)
	}
	n := len(job.Steps)
	if from < 0 || from >= n || to < 0 || to >= n {
		return w, fmt.Errorf("job %q move %d->%d: %w", id, from, to, ErrIndexOutOfRange)
	}
	out := w.Clone()
	job, _ = out.Job(id)
	step := job.Steps[from]
	steps := append(job.Steps[:from:from], job.Steps[from+1:]...)
	steps = append(steps[:to], append([]workflow.Step{step}, steps[to:]...)...)
	job.Steps = steps
	return out, nil
}

var fileNameSpace = regexp.MustCompile(`\s+`)

// FileName derives a file name from the workflow name, e.g. "My CI" gives
// "my-ci.yml".
func FileName(w workflow.Workflow) string {
	name := strings.ToLower(fileNameSpace.ReplaceAllString(strings.TrimSpace(w.Name), "-"))
	name = strings.Trim(strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '-'
		}
		return r
	}, name), ".")
	if name == "" {
		name = "workflow"
	}
	return name + ".yml"
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	var out []string
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
