package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timoa/github-actions-gui/internal/output"
	"github.com/timoa/github-actions-gui/internal/query"
	"github.com/timoa/github-actions-gui/workflow"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Print the parsed workflow as JSON",
	Long: `Parses a workflow and prints the document as it would be written back,
followed by any problems found while reading it. roundTrip lists fields that
do not survive a write and re-read.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var queryCmd = &cobra.Command{
	Use:   "query FILE EXPR",
	Short: "Look up part of a workflow with JSONPath",
	Long: `Evaluates a JSONPath expression against the parsed workflow and prints
the result as JSON. The leading "$." may be left out:

  wfedit query ci.yml 'jobs.build.steps[0].uses'
  wfedit query ci.yml '$.on'`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

type parsedDocument struct {
	Document    workflow.Value `json:"document"`
	ParseErrors []string       `json:"parseErrors"`
	RoundTrip   []string       `json:"roundTrip"`
}

func runParse(cmd *cobra.Command, args []string) error {
	res, err := loadDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	roundTrip := workflow.Validate(res.Workflow)
	if roundTrip == nil {
		roundTrip = []string{}
	}
	return output.FormatJSON(os.Stdout, parsedDocument{
		Document:    workflow.DocumentValue(res.Workflow),
		ParseErrors: res.Errors,
		RoundTrip:   roundTrip,
	})
}

func runQuery(cmd *cobra.Command, args []string) error {
	res, err := loadDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	v, err := query.Eval(res.Workflow, args[1])
	if err != nil {
		return err
	}
	if err := output.FormatJSON(os.Stdout, v); err != nil {
		return fmt.Errorf("formatting JSON output: %w", err)
	}
	return nil
}
