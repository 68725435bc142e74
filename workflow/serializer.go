package workflow

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
)

// Serialize renders a workflow as YAML in canonical key order:
//
//	workflow: name, run-name, on, env, <other keys>, jobs
//	job:      name, needs, runs-on, <other keys>, strategy, steps
//	step:     id, name, uses, run, with, <other keys>
//
// Parsing the output yields a Workflow equal to w. Multi-line strings are
// written as literal blocks unless their whitespace would not survive one,
// in which case they are double-quoted.
func Serialize(w Workflow) (string, error) {
	out, err := yaml.MarshalWithOptions(quoteFragile(Document(w)),
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return "", fmt.Errorf("encoding workflow: %w", err)
	}
	return string(unquoteOnKey(out)), nil
}

// The encoder quotes YAML 1.1 booleans, "on" among them, even as keys.
// Workflow files spell the trigger key bare and YAML 1.2 reads it as a
// string. Top-level keys are the only lines starting at column zero.
var quotedOnKey = []byte(`"on":`)

func unquoteOnKey(out []byte) []byte {
	if bytes.HasPrefix(out, quotedOnKey) {
		return append([]byte("on:"), out[len(quotedOnKey):]...)
	}
	return bytes.Replace(out, []byte("\n\"on\":"), []byte("\non:"), 1)
}

// doubleQuoted is a string the encoder must emit in double-quoted form.
type doubleQuoted string

func (s doubleQuoted) MarshalYAML() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

// quoteFragile wraps every string in the tree whose plain or literal form
// would lose whitespace or control characters.
func quoteFragile(node any) any {
	switch n := node.(type) {
	case string:
		if fragile(n) {
			return doubleQuoted(n)
		}
		return n
	case yaml.MapSlice:
		out := make(yaml.MapSlice, len(n))
		for i, item := range n {
			out[i] = yaml.MapItem{Key: item.Key, Value: quoteFragile(item.Value)}
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = quoteFragile(item)
		}
		return out
	}
	return node
}

func fragile(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '\t' || r == '\r' || (r != '\n' && unicode.IsControl(r)) {
			return true
		}
	}
	lines := strings.Split(s, "\n")
	for _, line := range lines {
		if strings.TrimRightFunc(line, unicode.IsSpace) != line {
			return true
		}
	}
	// A literal block takes its indentation from the first line and cannot
	// start with a blank line or end with more than one line break.
	if lines[0] == "" || strings.TrimLeftFunc(lines[0], unicode.IsSpace) != lines[0] {
		return true
	}
	return strings.HasSuffix(s, "\n\n")
}

// Validate serializes w and parses it back, returning the parse errors the
// result would produce on the next load.
func Validate(w Workflow) []string {
	text, err := Serialize(w)
	if err != nil {
		return []string{err.Error()}
	}
	return Parse(text).Errors
}

// Document returns the canonical YAML tree for w. It is also the shape used
// for JSON output and path queries.
func Document(w Workflow) yaml.MapSlice {
	doc := yaml.MapSlice{}
	if w.Name != "" {
		doc = append(doc, yaml.MapItem{Key: "name", Value: w.Name})
	}
	if w.RunName != "" {
		doc = append(doc, yaml.MapItem{Key: "run-name", Value: w.RunName})
	}
	if !w.On.IsNull() {
		doc = append(doc, yaml.MapItem{Key: "on", Value: w.On.YAML()})
	}
	if w.Env != nil {
		doc = append(doc, yaml.MapItem{Key: "env", Value: w.Env.YAML()})
	}
	doc = append(doc, w.Extra.YAML()...)

	jobs := make(yaml.MapSlice, 0, len(w.Jobs))
	for _, j := range w.Jobs {
		jobs = append(jobs, yaml.MapItem{Key: j.ID, Value: jobDocument(j)})
	}
	doc = append(doc, yaml.MapItem{Key: "jobs", Value: jobs})
	return doc
}

// DocumentValue is Document as a Value.
func DocumentValue(w Workflow) Value {
	return FromAny(Document(w))
}

func jobDocument(j Job) yaml.MapSlice {
	doc := yaml.MapSlice{}
	if j.Name != "" {
		doc = append(doc, yaml.MapItem{Key: "name", Value: j.Name})
	}
	if len(j.Needs) == 1 && !j.NeedsList {
		doc = append(doc, yaml.MapItem{Key: "needs", Value: j.Needs[0]})
	} else if len(j.Needs) > 0 || j.NeedsList {
		needs := make([]any, len(j.Needs))
		for i, n := range j.Needs {
			needs[i] = n
		}
		doc = append(doc, yaml.MapItem{Key: "needs", Value: needs})
	}
	if !j.RunsOn.IsNull() {
		doc = append(doc, yaml.MapItem{Key: "runs-on", Value: j.RunsOn.YAML()})
	}
	doc = append(doc, j.Extra.YAML()...)
	if j.Strategy != nil {
		doc = append(doc, yaml.MapItem{Key: "strategy", Value: strategyDocument(*j.Strategy)})
	}
	if j.Steps != nil {
		steps := make([]any, len(j.Steps))
		for i, s := range j.Steps {
			steps[i] = stepDocument(s)
		}
		doc = append(doc, yaml.MapItem{Key: "steps", Value: steps})
	}
	return doc
}

func strategyDocument(s Strategy) yaml.MapSlice {
	doc := yaml.MapSlice{}
	if !s.Matrix.IsNull() {
		doc = append(doc, yaml.MapItem{Key: "matrix", Value: s.Matrix.YAML()})
	}
	if !s.FailFast.IsNull() {
		doc = append(doc, yaml.MapItem{Key: "fail-fast", Value: s.FailFast.YAML()})
	}
	if !s.MaxParallel.IsNull() {
		doc = append(doc, yaml.MapItem{Key: "max-parallel", Value: s.MaxParallel.YAML()})
	}
	return append(doc, s.Extra.YAML()...)
}

func stepDocument(s Step) yaml.MapSlice {
	doc := yaml.MapSlice{}
	if s.ID != "" {
		doc = append(doc, yaml.MapItem{Key: "id", Value: s.ID})
	}
	if s.Name != "" {
		doc = append(doc, yaml.MapItem{Key: "name", Value: s.Name})
	}
	if s.Uses != "" {
		doc = append(doc, yaml.MapItem{Key: "uses", Value: s.Uses})
	}
	// A step without uses always carries run, even when empty, so
	// placeholder steps keep their shape.
	if s.Run != "" || (s.Uses == "" && !s.Extra.Has("run")) {
		doc = append(doc, yaml.MapItem{Key: "run", Value: s.Run})
	}
	if s.With != nil {
		doc = append(doc, yaml.MapItem{Key: "with", Value: s.With.YAML()})
	}
	return append(doc, s.Extra.YAML()...)
}
