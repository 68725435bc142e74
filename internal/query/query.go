// Package query evaluates JSONPath expressions against a workflow in its
// serialized shape, so paths match what the YAML file says.
package query

import (
	"fmt"
	"strings"

	"github.com/oliveagle/jsonpath"

	"github.com/timoa/github-actions-gui/workflow"
)

// Normalize accepts "$.jobs", ".jobs" and "jobs" alike.
func Normalize(expr string) string {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "" || expr == "$":
		return "$"
	case strings.HasPrefix(expr, "$"):
		return expr
	case strings.HasPrefix(expr, "."), strings.HasPrefix(expr, "["):
		return "$" + expr
	default:
		return "$." + expr
	}
}

// Compile checks expr without evaluating it.
func Compile(expr string) (*jsonpath.Compiled, error) {
	c, err := jsonpath.Compile(Normalize(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	return c, nil
}

// Eval looks expr up in w. The whole document is returned for "$".
func Eval(w workflow.Workflow, expr string) (any, error) {
	doc := workflow.DocumentValue(w).Interface()
	path := Normalize(expr)
	if path == "$" {
		return doc, nil
	}
	c, err := Compile(path)
	if err != nil {
		return nil, err
	}
	v, err := c.Lookup(doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return v, nil
}
