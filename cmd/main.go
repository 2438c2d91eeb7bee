package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plsync/internal/shared"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitAuth    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner := NewRunner(RunnerOpts{})
	err := runner.app().Run(ctx, os.Args)
	stop()

	if err != nil {
		runner.logger.Error("plsync failed", "error", err)
	}
	runner.Close()
	os.Exit(exitCode(err))
}

// exitCode maps the error returned by a command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case shared.IsAuthError(err):
		return exitAuth
	default:
		return exitFailure
	}
}
