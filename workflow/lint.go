package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Severity indicates how critical a lint finding is.
type Severity string

const (
	// SeverityError marks a document that will not run as written.
	SeverityError Severity = "error"
	// SeverityWarning marks something suspicious that may still run.
	SeverityWarning Severity = "warning"
)

// LintError is one finding, anchored to a dotted path into the document
// such as "jobs.build.needs" or "jobs.build.steps[2]".
type LintError struct {
	Path       string   `json:"path"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (e *LintError) Error() string {
	prefix := ""
	if e.Severity == SeverityWarning {
		prefix = "[warning] "
	}
	msg := fmt.Sprintf("%s%s: %s", prefix, e.Path, e.Message)
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}

// LintErrors is a collection of lint findings.
type LintErrors []*LintError

// Error implements the error interface.
func (e LintErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d problems found:\n", len(e))
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// HasErrors returns true if any finding has SeverityError.
func (e LintErrors) HasErrors() bool {
	for _, err := range e {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the findings with SeverityError.
func (e LintErrors) Errors() LintErrors {
	var errors LintErrors
	for _, err := range e {
		if err.Severity == SeverityError {
			errors = append(errors, err)
		}
	}
	return errors
}

// Warnings returns only the findings with SeverityWarning.
func (e LintErrors) Warnings() LintErrors {
	var warnings LintErrors
	for _, err := range e {
		if err.Severity == SeverityWarning {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// ForPath returns the findings anchored at path or below it.
func (e LintErrors) ForPath(path string) LintErrors {
	var out LintErrors
	for _, err := range e {
		if err.Path == path || strings.HasPrefix(err.Path, path+".") || strings.HasPrefix(err.Path, path+"[") {
			out = append(out, err)
		}
	}
	return out
}

// validJobIDPattern matches valid GitHub Actions job IDs.
var validJobIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// shaPattern matches a full-length commit SHA.
var shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ValidJobID reports whether id can be used as a job id.
func ValidJobID(id string) bool {
	return validJobIDPattern.MatchString(id)
}

type linter struct {
	out LintErrors
}

func (l *linter) add(sev Severity, path, format string, args ...any) *LintError {
	e := &LintError{Path: path, Message: fmt.Sprintf(format, args...), Severity: sev}
	l.out = append(l.out, e)
	return e
}

// Lint checks a workflow for problems that parse cleanly but will not run
// as intended. A document with neither jobs nor triggers is a blank canvas
// and produces no findings.
func Lint(w Workflow) LintErrors {
	if w.IsEmpty() {
		return nil
	}

	l := &linter{}
	triggers := ParseTriggers(w.On)

	if len(triggers) == 0 {
		l.add(SeverityError, "on", "workflow has no triggers").Suggestion = "Add at least one event such as push or workflow_dispatch"
	}
	if len(w.Jobs) == 0 {
		l.add(SeverityError, "jobs", "workflow has no jobs")
	}

	l.triggers(triggers)
	for _, job := range w.Jobs {
		l.job(w, job)
	}
	l.cycles(w)

	return l.out
}

func (l *linter) triggers(triggers []ParsedTrigger) {
	crons := make(map[string]bool)
	for _, t := range triggers {
		if t.Event == EventSchedule {
			v, ok := t.Config.Get("cron")
			cron, isStr := v.AsString()
			switch {
			case !ok || !isStr || strings.TrimSpace(cron) == "":
				l.add(SeverityError, "on.schedule", "schedule entry has no cron expression")
				continue
			case len(strings.Fields(cron)) != 5:
				l.add(SeverityError, "on.schedule", "cron %q must have 5 fields, found %d", cron, len(strings.Fields(cron)))
			}
			norm := strings.Join(strings.Fields(cron), " ")
			if crons[norm] {
				l.add(SeverityWarning, "on.schedule", "duplicate schedule cron %q", cron)
			}
			crons[norm] = true
			continue
		}

		if t.Config.Has("types") && !TriggerSupportsTypes(t.Event) {
			l.add(SeverityWarning, "on."+t.Event+".types", "event %q does not support activity types", t.Event).Suggestion = "Remove the types filter"
		}
	}
}

func (l *linter) job(w Workflow, job Job) {
	path := "jobs." + job.ID

	if !ValidJobID(job.ID) {
		l.add(SeverityError, path, "invalid job id %q", job.ID).Suggestion = "Job ids must start with a letter or underscore and contain only letters, digits, '-' and '_'"
	}

	for _, dep := range job.Needs {
		if !w.HasJob(dep) {
			l.add(SeverityError, path+".needs", "job %q depends on unknown job %q", job.ID, dep)
		}
	}

	reusable := job.ReusableWorkflow()
	if reusable {
		ref, _ := job.Extra.Get("uses")
		s, _ := ref.AsString()
		l.uses(path+".uses", s)
	} else {
		if len(job.Steps) == 0 {
			l.add(SeverityWarning, path+".steps", "job %q has no steps", job.ID)
		}
		if blankRunner(job.RunsOn) {
			l.add(SeverityWarning, path+".runs-on", "job %q has no runner", job.ID).Suggestion = "Set runs-on, for example ubuntu-latest"
		}
	}

	if job.Strategy != nil {
		l.strategy(path+".strategy", *job.Strategy)
	}

	ids := make(map[string]bool)
	for i, step := range job.Steps {
		stepPath := fmt.Sprintf("%s.steps[%d]", path, i)
		hasUses := step.Uses != "" || step.Extra.Has("uses")
		hasRun := strings.TrimSpace(step.Run) != "" || step.Extra.Has("run")
		switch {
		case hasUses && hasRun:
			l.add(SeverityError, stepPath, "step cannot set both uses and run")
		case !hasUses && !hasRun:
			l.add(SeverityError, stepPath, "step must set either uses or run")
		case step.Uses != "":
			l.uses(stepPath+".uses", step.Uses)
		}

		if step.ID != "" {
			if ids[step.ID] {
				l.add(SeverityError, stepPath+".id", "duplicate step id %q", step.ID)
			}
			ids[step.ID] = true
		}
	}
}

func blankRunner(v Value) bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.Str) == ""
	case KindList:
		return len(v.List) == 0
	case KindMap:
		return len(v.Map) == 0
	}
	return false
}

// uses checks that an action reference is pinned to a tag or a commit.
func (l *linter) uses(path, ref string) {
	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "docker://") || strings.Contains(ref, "${{") {
		return
	}

	at := strings.LastIndex(ref, "@")
	if at < 0 {
		l.add(SeverityError, path, "%q is missing a version", ref).Suggestion = "Use owner/repo@ref"
		return
	}
	version := ref[at+1:]
	if version == "" {
		l.add(SeverityError, path, "%q has an empty version", ref)
		return
	}
	if shaPattern.MatchString(version) {
		return
	}
	if _, err := semver.NewVersion(version); err == nil {
		return
	}
	l.add(SeverityWarning, path, "%q is pinned to branch %q", ref, version).Suggestion = "Pin to a release tag or a full commit SHA"
}

func (l *linter) strategy(path string, s Strategy) {
	if s.Matrix.Kind == KindMap {
		for _, e := range s.Matrix.Map {
			if e.Key == "include" || e.Key == "exclude" {
				continue
			}
			if e.Value.Kind == KindList && len(e.Value.List) == 0 {
				l.add(SeverityWarning, path+".matrix."+e.Key, "matrix axis %q is empty", e.Key)
			}
		}
	}

	switch s.MaxParallel.Kind {
	case KindInt:
		if s.MaxParallel.Int < 1 {
			l.add(SeverityError, path+".max-parallel", "max-parallel must be at least 1, got %d", s.MaxParallel.Int)
		}
	case KindString:
		if n, err := strconv.Atoi(s.MaxParallel.Str); err == nil && n < 1 {
			l.add(SeverityError, path+".max-parallel", "max-parallel must be at least 1, got %d", n)
		}
	}
}

// cycles reports the first dependency cycle found by a depth-first walk
// over needs edges. Unknown dependencies are reported elsewhere and ignored.
func (l *linter) cycles(w Workflow) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(w.Jobs))
	needs := make(map[string][]string, len(w.Jobs))
	for _, j := range w.Jobs {
		needs[j.ID] = j.Needs
	}

	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range needs[id] {
			if _, ok := needs[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, j := range w.Jobs {
		if color[j.ID] != white {
			continue
		}
		if visit(j.ID) {
			l.add(SeverityError, "jobs."+cycle[0]+".needs", "dependency cycle: %s", strings.Join(cycle, " -> "))
			return
		}
	}
}
