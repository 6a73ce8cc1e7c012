package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nxenhance/pkg/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// SIGHUP is left to the commands; watch uses it to reload the page.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, os.Args[1:])
}
