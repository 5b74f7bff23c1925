// Command caxa-stub is the executable prefix of every compiled package.
// It is never run on its own: the packager appends an archive and a
// descriptor to a copy of it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leafac/caxa/internal/stub"
)

func main() {
	level := slog.LevelWarn
	if os.Getenv("CAXA_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	code, err := stub.Run(context.Background(), stub.Config{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "caxa stub: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}
