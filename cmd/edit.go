package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/internal/tui/workbench"
	"github.com/timoa/github-actions-gui/storage"
)

var (
	newSample bool
	newForce  bool
)

var newCmd = &cobra.Command{
	Use:   "new FILE",
	Short: "Create a workflow file",
	Long: `Creates an empty workflow, or with --sample a starter workflow with a
push trigger, a build job and a test job that needs it.

When FILE is a directory the file name is derived from the workflow name.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var editCmd = &cobra.Command{
	Use:   "edit FILE",
	Short: "Edit a workflow in the terminal",
	Long: `Opens a workflow in an interactive editor: add, delete and rename jobs,
add steps and triggers, undo, and save. A missing FILE starts from the
sample workflow and is created on the first save.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	newCmd.Flags().BoolVar(&newSample, "sample", false, "start from the sample workflow")
	newCmd.Flags().BoolVarP(&newForce, "force", "f", false, "overwrite an existing file")

	editCmd.Flags().Int(config.KeyUndoDepth, 50, "number of edits that can be undone")
}

func runNew(cmd *cobra.Command, args []string) error {
	doc := editor.Empty()
	if newSample {
		doc = editor.Sample()
	}

	path, err := absPath(args[0])
	if err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			path = filepath.Join(path, editor.FileName(doc))
		} else if !newForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
		}
	}
	if _, err := os.Stat(path); err == nil && !newForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	session, closeFn := newSession(nil)
	defer closeFn()
	session.New(doc)
	if err := session.SaveAs(cmd.Context(), path); err != nil {
		return err
	}
	fmt.Println(tui.ExitSuccess("Created " + path))
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return errors.New("edit needs an interactive terminal")
	}
	path, err := absPath(args[0])
	if err != nil {
		return err
	}

	session, closeFn := newSession(editor.NewParseCache(cacheTTL))
	defer closeFn()

	if err := session.Load(cmd.Context(), path); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		session.New(editor.Sample())
	}

	model := workbench.NewModel(cmd.Context(), session, Version)
	model.SaveTo(path)

	p := tea.NewProgram(model, tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}
	if model.Dirty() {
		fmt.Println(tui.WarningStyle.Render("Quit with unsaved changes"))
	}
	return nil
}
