package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrshanahan/notetaker/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Errors are printed by the command that failed.
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
