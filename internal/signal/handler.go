// Package signal ties command contexts to SIGINT and SIGTERM.
package signal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Context returns a context cancelled on the first SIGINT or SIGTERM, and a
// stop func that releases the signal handler.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// PrintCancelled tells the user a command was interrupted.
func PrintCancelled(w io.Writer, command string) {
	_, _ = fmt.Fprintf(w, "\n%s cancelled\n", command)
}
