package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/leafac/caxa/internal/packager"
)

// CLIResult is the outcome of Execute.
type CLIResult struct {
	ExitCode int
	Package  *packager.Result
}

// Execute runs the packager for inv. Output of prepare and dedupe commands
// goes to stdout and stderr; log lines go to stderr.
func Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (CLIResult, error) {
	req := inv.Request()
	req.Stdout = stdout
	req.Stderr = stderr
	req.Logger = newLogger(stderr, inv.Verbose)
	if inv.ConfigPath != "" {
		req.Logger.Debug("loaded config", "path", inv.ConfigPath)
	}

	res, err := packager.Package(ctx, req)
	if err != nil {
		return CLIResult{ExitCode: ExitCode(err)}, err
	}
	return CLIResult{ExitCode: ExitSuccess, Package: res}, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
