package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/internal/output"
	"github.com/timoa/github-actions-gui/workflow"
)

var graphOutput string

var graphCmd = &cobra.Command{
	Use:   "graph FILE",
	Short: "Show the job graph of a workflow",
	Long: `Draws the jobs of a workflow stage by stage, each job after the jobs it
needs, with its runner, step count and matrix size.

-o json prints the graph as nodes and edges, ready for a graph renderer.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "text", "output format: text, json")
}

type graphDocument struct {
	Graph       flow.Graph `json:"graph"`
	Order       []string   `json:"order"`
	Stages      [][]string `json:"stages"`
	ParseErrors []string   `json:"parseErrors"`
}

// loadDocument reads and parses one file. Syntax errors fail; structural
// parse errors are returned in the result.
func loadDocument(ctx context.Context, path string) (workflow.Result, error) {
	abs, err := absPath(path)
	if err != nil {
		return workflow.Result{}, err
	}
	text, err := fileStore().Load(ctx, abs)
	if err != nil {
		return workflow.Result{}, err
	}
	res := workflow.Parse(text)
	if res.SyntaxError {
		return res, &editor.SyntaxError{Errors: res.Errors}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res, nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	if graphOutput != "text" && graphOutput != "json" {
		return fmt.Errorf("invalid output format %q: must be 'text' or 'json'", graphOutput)
	}
	res, err := loadDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if graphOutput == "json" {
		doc := graphDocument{
			Graph:       flow.Project(res.Workflow),
			Order:       flow.Order(res.Workflow),
			Stages:      flow.Levels(res.Workflow),
			ParseErrors: res.Errors,
		}
		return output.FormatJSON(os.Stdout, doc)
	}

	output.NewPrinter(os.Stdout, colorOut).Graph(res.Workflow)
	printParseErrors(res.Errors)
	return nil
}

func printParseErrors(errs []string) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
}
