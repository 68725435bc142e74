package query

import (
	"testing"

	"github.com/timoa/github-actions-gui/workflow"
)

const doc = `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: make
`

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":            "$",
		"$":           "$",
		"$.name":      "$.name",
		".name":       "$.name",
		"jobs.build":  "$.jobs.build",
		"[0]":         "$[0]",
		"  $.name   ": "$.name",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEval(t *testing.T) {
	res := workflow.Parse(doc)
	if !res.OK() {
		t.Fatal(res.Errors)
	}
	w := res.Workflow

	got, err := Eval(w, "name")
	if err != nil || got != "CI" {
		t.Errorf("Eval(name) = %v, %v", got, err)
	}

	got, err = Eval(w, "$.jobs.build.steps[1].run")
	if err != nil || got != "make" {
		t.Errorf("Eval(steps[1].run) = %v, %v", got, err)
	}

	whole, err := Eval(w, "$")
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := whole.(map[string]any); !ok || m["name"] != "CI" {
		t.Errorf("Eval($) = %#v", whole)
	}

	if _, err := Eval(w, "$.jobs.missing.steps"); err == nil {
		t.Error("Eval() found a missing job")
	}
}
