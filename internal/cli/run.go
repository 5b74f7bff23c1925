package cli

import (
	"context"
	"fmt"
	"io"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the exit
// code. Errors are printed to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, env Environment) int {
	cmd := NewCommand(stdout, stderr, env)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "caxa: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}
