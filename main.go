package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/timoa/github-actions-gui/cmd"
	"github.com/timoa/github-actions-gui/internal/sentry"
	"github.com/timoa/github-actions-gui/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	cleanup := sentry.Init(cmd.Version)
	defer cleanup()
	defer sentry.RecoverAndPanic()

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrProblemsFound) {
			return 1
		}
		fmt.Fprintln(os.Stderr, tui.ExitError(err.Error()))
		sentry.CaptureError(cmd.CurrentCommand(), err)
		return 1
	}
	return 0
}
