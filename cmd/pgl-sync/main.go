package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulschiretz/pgl-sync/cmd"
	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

func main() {
	// Cancel the context on Ctrl+C so a running sync stops between actions.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.NewRootCommand().ExecuteContext(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}
