package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tansive/moodleauth/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ok := cli.Execute(ctx)
	stop()
	if !ok {
		os.Exit(1)
	}
}
