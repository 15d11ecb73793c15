// Package main provides the entry point for the opsdesk CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/opsdesk/internal/cli"
)

// Build information set at link time via ldflags.
// Example: go build -ldflags "-X main.version=v1.0.0 -X main.commit=abc123 -X main.date=2026-01-01"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx := context.Background()

	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	// os.Exit skips deferred calls, so flush the log file first.
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
