// Package main provides the entry point for the coursemap CLI tool.
package main

import (
	"context"
	"os"

	"github.com/coursekit/coursemap/cmd/coursemap/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application, err := app.New(version, commit, date)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	err = application.Execute(ctx, os.Args[1:])
	if shutdownErr := application.Shutdown(); shutdownErr != nil {
		application.Logger().Error().Err(shutdownErr).Msg("shutdown error")
	}
	app.ExitOnError(err)
}
