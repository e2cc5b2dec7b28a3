package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/teranos/flashbuild/cmd/flashbuild/commands"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

func main() {
	// Ctrl-C cancels the running tool and the update pause
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewApp().RootCmd().ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
