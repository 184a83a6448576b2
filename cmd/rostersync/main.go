// Package main provides the entry point for the rostersync CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rosterlab/rostersync/cmd/rostersync/app"
)

// Version information populated at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Execute(ctx, version, commit, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
