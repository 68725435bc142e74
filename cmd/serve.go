package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/bridge"
	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/internal/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editing core to a graphical front end",
	Long: `Starts an HTTP server for editor front ends.

  GET  /ws           one editing session per connection (JSON messages)
  POST /api/parse    parse a document
  POST /api/format   rewrite a document in canonical layout
  POST /api/lint     lint a document
  POST /api/graph    project the job graph
  GET  /health       liveness

Sessions open and save files on this machine, so the server listens on the
loopback interface unless --listen says otherwise.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String(config.KeyListen, "127.0.0.1:7777", "address to listen on")
	serveCmd.Flags().Int(config.KeyUndoDepth, 50, "number of edits that can be undone per session")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cache := editor.NewParseCache(cacheTTL)

	opts := []editor.Option{
		editor.WithLogger(log.Named("session")),
		editor.WithUndoDepth(cfg.UndoDepth),
		editor.WithParseCache(cache),
	}
	history, err := openHistory()
	if err != nil {
		log.Warn("revision history unavailable", zap.Error(err))
	} else if history != nil {
		defer func() { _ = history.Close() }()
		opts = append(opts, editor.WithRecorder(history))
	}

	store := fileStore()
	newSession := func() *editor.Session {
		return editor.NewSession(store, opts...)
	}

	server := bridge.NewServer(Version, newSession, cache, log.Named("bridge"))
	fmt.Fprintf(os.Stderr, "%s listening on %s\n", tui.Header(Version, "serve"), tui.AccentStyle.Render("http://"+cfg.Listen))
	return server.ListenAndServe(cmd.Context(), cfg.Listen)
}
