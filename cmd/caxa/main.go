package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/leafac/caxa/internal/cli"
)

// main only wires the process to cli.Run; everything else is testable
// without exiting.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr, cli.OSEnvironment())
	stop()
	os.Exit(code)
}
