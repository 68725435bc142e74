// Package sentry reports crashes and command failures when SENTRY_DSN is
// set. Without a DSN every function is a no-op.
package sentry

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Init configures the SDK for release wfedit@version and returns a flush
// func to defer.
func Init(version string) func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	env := os.Getenv("SENTRY_ENVIRONMENT")
	if env == "" {
		env = "production"
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "wfedit@" + version,
		Environment:      env,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}
	}
	return func() { sentry.Flush(flushTimeout) }
}

// CaptureError reports err, tagged with the command that failed.
func CaptureError(command string, err error) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if command != "" {
			scope.SetTag("command", command)
		}
		sentry.CaptureException(err)
	})
}

// RecoverAndPanic reports a panic and re-panics. Defer it at entry points.
func RecoverAndPanic() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(flushTimeout)
		panic(r)
	}
}

// AddBreadcrumb records context for the next reported error.
func AddBreadcrumb(category, message string) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	})
}
