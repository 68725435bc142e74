package workflow

import (
	"strings"
	"testing"
)

const fullWorkflow = `
name: CI
run-name: CI for ${{ github.ref }}
on:
  push:
    branches: [main]
  pull_request:
    types: [opened, synchronize]
  schedule:
    - cron: "0 0 * * *"
env:
  GO_VERSION: "1.22"
  DEBUG: false
permissions:
  contents: read
jobs:
  lint:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: make lint
  test:
    name: Test
    needs: lint
    runs-on: [self-hosted, linux]
    timeout-minutes: 15
    strategy:
      matrix:
        os: [ubuntu-latest, macos-latest]
        python: ["3.10", "3.11"]
      fail-fast: false
      max-parallel: 2
    steps:
      - id: setup
        name: Setup
        uses: actions/setup-python@v5
        with:
          python-version: ${{ matrix.python }}
          cache: pip
      - name: Test
        run: |
          pip install -r requirements.txt
          pytest -q
        env:
          CI: "true"
  release:
    needs: [lint, test]
    uses: ./.github/workflows/release.yml
    secrets: inherit
`

func TestSerialize_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"full": fullWorkflow,
		"minimal": `
name: Minimal
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hello
`,
		"placeholder steps": `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - "just a string"
      - {}
`,
		"single list need": `
on: workflow_dispatch
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: a}]
  b:
    needs: [a]
    runs-on: ubuntu-latest
    steps: [{run: b}]
`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			first := Parse(input)
			text, err := Serialize(first.Workflow)
			if err != nil {
				t.Fatalf("Serialize() error = %v", err)
			}
			second := Parse(text)
			if !second.OK() {
				t.Fatalf("re-parse errors = %q\n%s", second.Errors, text)
			}
			if !first.Workflow.Equal(second.Workflow) {
				t.Errorf("round trip changed the document:\n%s", text)
			}

			again, err := Serialize(second.Workflow)
			if err != nil {
				t.Fatalf("Serialize() error = %v", err)
			}
			if again != text {
				t.Errorf("serialization is not stable:\nfirst:\n%s\nsecond:\n%s", text, again)
			}
		})
	}
}

func TestSerialize_CanonicalOrder(t *testing.T) {
	input := `
jobs:
  build:
    steps:
      - with: {a: 1}
        run: echo
        name: Run
    runs-on: ubuntu-latest
    needs: setup
    name: Build
  setup:
    steps: [{run: ok}]
env: {A: b}
on: push
name: Order
`
	text, err := Serialize(Parse(input).Workflow)
	if err != nil {
		t.Fatal(err)
	}

	assertOrder := func(t *testing.T, keys ...string) {
		t.Helper()
		last := -1
		for _, k := range keys {
			idx := strings.Index(text, k)
			if idx < 0 {
				t.Fatalf("%q not found in:\n%s", k, text)
			}
			if idx < last {
				t.Errorf("%q is out of order in:\n%s", k, text)
			}
			last = idx
		}
	}

	assertOrder(t, "name: Order", "\non: push\n", "env:", "jobs:")
	if strings.Contains(text, `"on"`) {
		t.Errorf("trigger key is quoted:\n%s", text)
	}
	assertOrder(t, "name: Build", "needs: setup", "runs-on: ubuntu-latest", "steps:")
	assertOrder(t, "name: Run", "run: echo", "with:")
}

func TestSerialize_Whitespace(t *testing.T) {
	tests := []struct {
		name    string
		run     string
		literal bool
	}{
		{name: "plain script", run: "make build\nmake test\n", literal: true},
		{name: "no final newline", run: "echo a\necho b", literal: true},
		{name: "indented heredoc", run: "  cat <<EOF\nbody\nEOF"},
		{name: "leading space", run: " echo hi"},
		{name: "tab", run: "printf 'a\tb'"},
		{name: "tab in block", run: "tab\there\nx"},
		{name: "trailing space on last line", run: "tab\there\nx "},
		{name: "trailing space inside block", run: "a  \nb"},
		{name: "whitespace-only line", run: "a\n   \nb"},
		{name: "crlf", run: "echo a\r\necho b\r\n"},
		{name: "leading blank line", run: "\necho a"},
		{name: "kept trailing newlines", run: "echo a\n\n"},
		{name: "control character", run: "printf '\x07'"},
		{name: "only spaces", run: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Workflow{
				On: String("push"),
				Env: Map{{Key: "SCRIPT", Value: String(tt.run)}},
				Jobs: []Job{{
					ID:     "build",
					RunsOn: String("ubuntu-latest"),
					Steps: []Step{{
						Run:  tt.run,
						With: Map{{Key: "script", Value: String(tt.run)}},
					}},
				}},
			}
			text, err := Serialize(w)
			if err != nil {
				t.Fatalf("Serialize() error = %v", err)
			}
			res := Parse(text)
			if !res.OK() {
				t.Fatalf("re-parse errors = %q\n%s", res.Errors, text)
			}
			job, ok := res.Workflow.Job("build")
			if !ok || len(job.Steps) != 1 {
				t.Fatalf("build job lost:\n%s", text)
			}
			if got := job.Steps[0].Run; got != tt.run {
				t.Errorf("run = %q, want %q\n%s", got, tt.run, text)
			}
			if got, _ := job.Steps[0].With.Get("script"); !got.Equal(String(tt.run)) {
				t.Errorf("with.script = %v, want %q", got, tt.run)
			}
			if got, _ := res.Workflow.Env.Get("SCRIPT"); !got.Equal(String(tt.run)) {
				t.Errorf("env.SCRIPT = %v, want %q", got, tt.run)
			}
			if tt.literal && !strings.Contains(text, "run: |") {
				t.Errorf("multi-line script not written as a literal block:\n%s", text)
			}
		})
	}
}

func TestSerialize_NeedsArity(t *testing.T) {
	w := Workflow{
		On: String("push"),
		Jobs: []Job{
			{ID: "a", RunsOn: String("ubuntu-latest")},
			{ID: "b", RunsOn: String("ubuntu-latest"), Needs: []string{"a"}},
			{ID: "c", RunsOn: String("ubuntu-latest"), Needs: []string{"a", "b"}, NeedsList: true},
		},
	}
	text, err := Serialize(w)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "needs: a\n") {
		t.Errorf("single dependency should serialize as a scalar:\n%s", text)
	}

	back := Parse(text).Workflow
	c, _ := back.Job("c")
	if !c.NeedsList || len(c.Needs) != 2 {
		t.Errorf("c.Needs = %v (list=%v), want [a b] as list", c.Needs, c.NeedsList)
	}
}

func TestSerialize_StrategyFields(t *testing.T) {
	w := Parse("on: push\njobs:\n  build:\n    runs-on: ubuntu-latest\n    steps:\n      - run: echo hello\n").Workflow
	w.Jobs[0].Strategy = &Strategy{
		Matrix:      MapValue(Map{{Key: "node", Value: Strings("18", "20")}}),
		FailFast:    Bool(true),
		MaxParallel: Int(3),
	}

	text, err := Serialize(w)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"matrix", "fail-fast", "max-parallel"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	back := Parse(text).Workflow
	job, _ := back.Job("build")
	if !job.Strategy.Matrix.Equal(MapValue(Map{{Key: "node", Value: Strings("18", "20")}})) {
		t.Errorf("Matrix = %v", job.Strategy.Matrix)
	}
	if !job.Strategy.FailFast.Equal(Bool(true)) {
		t.Errorf("FailFast = %v", job.Strategy.FailFast)
	}
	if !job.Strategy.MaxParallel.Equal(Int(3)) {
		t.Errorf("MaxParallel = %v", job.Strategy.MaxParallel)
	}
}

func TestValidate(t *testing.T) {
	w := Workflow{
		Name: "Valid",
		On:   String("push"),
		Jobs: []Job{{
			ID:     "build",
			RunsOn: String("ubuntu-latest"),
			Steps:  []Step{{Run: "echo hi"}},
		}},
	}
	if errs := Validate(w); len(errs) != 0 {
		t.Errorf("Validate() = %q, want none", errs)
	}
	if errs := Validate(Workflow{Name: "no jobs"}); len(errs) != 0 {
		t.Errorf("Validate() = %q, an empty jobs mapping is still a jobs section", errs)
	}
}
