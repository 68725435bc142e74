package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/internal/output"
	"github.com/timoa/github-actions-gui/storage"
	"github.com/timoa/github-actions-gui/workflow"
)

var lintOutput string

var lintCmd = &cobra.Command{
	Use:   "lint [paths...]",
	Short: "Check workflow files for mistakes",
	Long: `Checks workflow files for problems that would stop them from running
or that are likely mistakes: unknown or cyclic job dependencies, missing
runners, unpinned actions and more.

Directories are searched with the configured pattern. Without arguments the
workflows directory is checked. Exits with status 1 when any error is found;
warnings alone do not fail.`,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().StringVarP(&lintOutput, "output", "o", "text", "output format: text, json")
	lintCmd.Flags().Int(config.KeyConcurrency, 8, "files checked in parallel")
}

// targets expands the command arguments, defaulting to the workflows
// directory.
func targets(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{cfg.WorkflowsDir}
	}
	files, err := storage.Expand(args, cfg.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no workflow files found matching %q", cfg.Pattern)
	}
	return files, nil
}

func runLint(cmd *cobra.Command, args []string) error {
	if lintOutput != "text" && lintOutput != "json" {
		return fmt.Errorf("invalid output format %q: must be 'text' or 'json'", lintOutput)
	}
	files, err := targets(args)
	if err != nil {
		return err
	}

	reports, err := lintFiles(cmd.Context(), fileStore(), files, cfg.Concurrency)
	if err != nil {
		return err
	}

	switch lintOutput {
	case "json":
		if err := output.FormatJSON(os.Stdout, reports); err != nil {
			return fmt.Errorf("formatting JSON output: %w", err)
		}
	default:
		output.NewPrinter(os.Stdout, colorOut).Lint(reports)
	}

	for _, r := range reports {
		if r.Failed() {
			return ErrProblemsFound
		}
	}
	return nil
}

// lintFiles checks files concurrently. Reports keep the order of files; a
// file that cannot be read gets a report with Err set rather than failing
// the run.
func lintFiles(ctx context.Context, store editor.Store, files []string, limit int) ([]output.FileReport, error) {
	cache := editor.NewParseCache(cacheTTL)
	reports := make([]output.FileReport, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = lintFile(ctx, store, cache, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func lintFile(ctx context.Context, store editor.Store, cache *editor.ParseCache, path string) output.FileReport {
	report := output.FileReport{Path: path, Problems: workflow.LintErrors{}}

	abs, err := absPath(path)
	var text string
	if err == nil {
		text, err = store.Load(ctx, abs)
	}
	if err != nil {
		report.Err = err.Error()
		return report
	}
	res := cache.Parse(text)
	report.ParseErrors = res.Errors
	if res.SyntaxError {
		return report
	}
	if problems := workflow.Lint(res.Workflow); problems != nil {
		report.Problems = problems
	}
	log.Debug("linted", zap.String("path", path), zap.Int("problems", len(report.Problems)))
	return report
}
