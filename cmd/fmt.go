package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/workflow"
)

var (
	fmtWrite bool
	fmtCheck bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [paths...]",
	Short: "Rewrite workflow files in canonical layout",
	Long: `Parses workflow files and writes them back with keys in canonical order
and consistent indentation. Comments are not preserved.

With one file and no flags the result is printed. --write rewrites files in
place; --check lists files that would change and exits with status 1.`,
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "rewrite files in place")
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "report files that are not formatted")
	fmtCmd.Flags().Int(config.KeyConcurrency, 8, "files formatted in parallel")
	fmtCmd.MarkFlagsMutuallyExclusive("write", "check")
}

type formatResult struct {
	path      string
	formatted string
	changed   bool
	err       error
}

func runFmt(cmd *cobra.Command, args []string) error {
	files, err := targets(args)
	if err != nil {
		return err
	}
	if !fmtWrite && !fmtCheck && len(files) > 1 {
		return errors.New("use --write or --check with more than one file")
	}

	results, err := formatFiles(cmd.Context(), files, cfg.Concurrency)
	if err != nil {
		return err
	}

	if !fmtWrite && !fmtCheck {
		r := results[0]
		if r.err != nil {
			return r.err
		}
		fmt.Print(r.formatted)
		return nil
	}

	var history editor.Recorder
	if fmtWrite {
		db, err := openHistory()
		if err != nil {
			log.Warn("revision history unavailable", zap.Error(err))
		} else if db != nil {
			defer func() { _ = db.Close() }()
			history = db
		}
	}

	store := fileStore()
	failed := false
	for _, r := range results {
		switch {
		case r.err != nil:
			failed = true
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", tui.ErrorStyle.Render("✖"), r.path, r.err)
		case !r.changed:
			continue
		case fmtCheck:
			failed = true
			fmt.Println(r.path)
		default:
			abs, err := absPath(r.path)
			if err == nil {
				err = store.Save(cmd.Context(), abs, r.formatted)
			}
			if err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", tui.ErrorStyle.Render("✖"), r.path, err)
				continue
			}
			if history != nil {
				if err := history.Record(cmd.Context(), abs, r.formatted); err != nil {
					log.Warn("recording revision failed", zap.String("path", abs), zap.Error(err))
				}
			}
			fmt.Println(r.path)
		}
	}
	if failed {
		return ErrProblemsFound
	}
	return nil
}

func formatFiles(ctx context.Context, files []string, limit int) ([]formatResult, error) {
	store := fileStore()
	cache := editor.NewParseCache(cacheTTL)
	results := make([]formatResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = formatFile(ctx, store, cache, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func formatFile(ctx context.Context, store editor.Store, cache *editor.ParseCache, path string) formatResult {
	r := formatResult{path: path}
	abs, err := absPath(path)
	if err != nil {
		r.err = err
		return r
	}
	text, err := store.Load(ctx, abs)
	if err != nil {
		r.err = err
		return r
	}
	res := cache.Parse(text)
	if res.SyntaxError {
		r.err = &editor.SyntaxError{Errors: res.Errors}
		return r
	}
	r.formatted, r.err = workflow.Serialize(res.Workflow)
	r.changed = r.err == nil && r.formatted != text
	return r
}
