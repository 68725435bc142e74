package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/internal/output"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/persistence"
)

var (
	historyLimit  int
	historyKeep   int
	historyOutput string
	restoreTo     string
)

var historyCmd = &cobra.Command{
	Use:   "history FILE",
	Short: "List saved revisions of a workflow",
	Long: `Lists the revisions recorded each time FILE was saved by wfedit, newest
first. --keep N deletes all but the N newest revisions.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var restoreCmd = &cobra.Command{
	Use:   "restore REVISION",
	Short: "Write a saved revision back to disk",
	Long: `Writes the content of a revision back to the file it was saved from, or
to --to. REVISION may be any unique prefix of the revision id.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of revisions to show (-1 for all)")
	historyCmd.Flags().IntVar(&historyKeep, "keep", -1, "delete all but the newest N revisions")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "text", "output format: text, json")

	restoreCmd.Flags().StringVar(&restoreTo, "to", "", "write to this file instead")
}

func requireHistory() (*persistence.HistoryDB, error) {
	db, err := openHistory()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, errors.New("revision history is disabled (wfedit config set history true)")
	}
	return db, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyOutput != "text" && historyOutput != "json" {
		return fmt.Errorf("invalid output format %q: must be 'text' or 'json'", historyOutput)
	}
	path, err := absPath(args[0])
	if err != nil {
		return err
	}
	db, err := requireHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	ctx := cmd.Context()

	if historyKeep >= 0 {
		removed, err := db.Prune(ctx, path, historyKeep)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, tui.ExitSuccess(fmt.Sprintf("Deleted %d revision(s)", removed)))
	}

	revs, err := db.List(ctx, path, historyLimit)
	if err != nil {
		return err
	}
	if historyOutput == "json" {
		if revs == nil {
			revs = []persistence.Revision{}
		}
		return output.FormatJSON(os.Stdout, revs)
	}

	if len(revs) == 0 {
		fmt.Println(tui.MutedStyle.Render("No revisions recorded for " + path))
		return nil
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("REVISION", "SAVED", "NAME", "JOBS", "SIZE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tui.MutedStyle.PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
	for _, r := range revs {
		name := r.WorkflowName
		if name == "" {
			name = "-"
		}
		t.Row(r.ID[:8], r.CreatedAt.Local().Format(time.DateTime), name,
			strconv.Itoa(r.JobCount), strconv.Itoa(r.Size))
	}
	fmt.Println(t)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	db, err := requireHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	ctx := cmd.Context()

	rev, err := db.Get(ctx, args[0])
	if err != nil {
		return err
	}
	target := rev.Locator
	if restoreTo != "" {
		if target, err = absPath(restoreTo); err != nil {
			return err
		}
	}

	if err := fileStore().Save(ctx, target, rev.Content); err != nil {
		return err
	}
	// The restore is itself a save.
	if err := db.Record(ctx, target, rev.Content); err != nil {
		log.Warn("recording revision failed", zap.String("path", target), zap.Error(err))
	}
	fmt.Println(tui.ExitSuccess(fmt.Sprintf("Restored %s to %s", rev.ID[:8], target)))
	return nil
}
