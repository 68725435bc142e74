package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/internal/logger"
	"github.com/timoa/github-actions-gui/internal/sentry"
	"github.com/timoa/github-actions-gui/internal/signal"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/persistence"
	"github.com/timoa/github-actions-gui/storage"
)

// Version is set at build time.
var Version = "dev"

// cacheTTL is how long parse results are reused within one process.
const cacheTTL = 5 * time.Minute

// ErrProblemsFound is returned when a command finished but found errors
// in the documents it checked. The problems were already printed.
var ErrProblemsFound = errors.New("problems found")

var (
	loader   = config.NewLoader()
	cfg      *config.Config
	log      = zap.NewNop()
	flushLog = func() {}

	noColor        bool
	colorOut       bool
	currentCommand string
)

var rootCmd = &cobra.Command{
	Use:   "wfedit",
	Short: "Edit, lint and visualize GitHub Actions workflows",
	Long: `wfedit reads GitHub Actions workflow files into an editable model,
checks them for mistakes, draws their job graph and writes them back in a
canonical layout.

The same editing core is served to graphical front ends by 'wfedit serve'.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command with signal handling.
func Execute() error {
	ctx, stop := signal.Context(context.Background())
	defer stop()
	defer func() { flushLog() }()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		signal.PrintCancelled(os.Stderr, currentCommand)
	}
	return err
}

// CurrentCommand returns the path of the command being run, for error
// reports.
func CurrentCommand() string {
	return currentCommand
}

func init() {
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyLogLevel, "warn", "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "console", "log format: console or json")
	pf.String(config.KeyLogFile, "", "also write JSON logs to this file")
	pf.String(config.KeyPattern, storage.DefaultPattern, "glob used to find workflows in directories")
	pf.String(config.KeyWorkflowsDir, ".github/workflows", "directory searched when no path is given")
	pf.String(config.KeyHistoryDB, "", "revision history database (default $WFEDIT_HOME/history.db)")
	pf.Bool(config.KeyHistory, true, "record a revision on every save")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetHelpTemplate(fmt.Sprintf(`%s
{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{.UsageString}}{{end}}`, tui.BrandStyle.Render("wfedit v"+Version)))
}

// setup resolves configuration and installs the logger before any
// command runs.
func setup(cmd *cobra.Command, _ []string) error {
	currentCommand = cmd.CommandPath()
	sentry.AddBreadcrumb("command", currentCommand)

	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	c, err := loader.Load()
	if err != nil {
		return err
	}
	cfg = c

	opts := logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}
	if cmd.Name() == "edit" {
		// The terminal belongs to the editor.
		opts.Output = io.Discard
	}
	l, closeFn, err := logger.Install(opts)
	if err != nil {
		return err
	}
	flushLog()
	log, flushLog = l, closeFn

	colorOut = !noColor && os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd())
	return nil
}

// fileStore returns the store used by every command. Locators are absolute
// paths, so the root only matters for relative ones.
func fileStore() *storage.FileStore {
	return storage.NewFileStore(".", storage.WithLogger(log.Named("storage")))
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// openHistory opens the revision database, or returns nil when history is
// disabled.
func openHistory() (*persistence.HistoryDB, error) {
	if !cfg.History {
		return nil, nil
	}
	return persistence.Open(cfg.HistoryDB, persistence.WithLogger(log.Named("history")))
}

// newSession builds a session over the file store, recording revisions
// when history is on. The returned func closes the history database.
func newSession(cache *editor.ParseCache) (*editor.Session, func()) {
	opts := []editor.Option{
		editor.WithLogger(log.Named("session")),
		editor.WithUndoDepth(cfg.UndoDepth),
		editor.WithParseCache(cache),
	}
	closeFn := func() {}

	history, err := openHistory()
	if err != nil {
		// Editing works without history.
		log.Warn("revision history unavailable", zap.Error(err))
	} else if history != nil {
		opts = append(opts, editor.WithRecorder(history))
		closeFn = func() { _ = history.Close() }
	}
	return editor.NewSession(fileStore(), opts...), closeFn
}
