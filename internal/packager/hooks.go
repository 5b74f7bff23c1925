package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// shellArgv wraps command for the platform shell.
func shellArgv(goos, command string) []string {
	if goos == "windows" {
		return []string{"cmd", "/C", command}
	}
	return []string{"sh", "-c", command}
}

// runShell runs command in dir with the caller's environment. A non-zero
// exit is reported as ErrPrepareFailed with the exit code.
func runShell(ctx context.Context, dir, command string, stdout, stderr io.Writer) error {
	argv := shellArgv(HostPlatform().OS, command)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = orDiscard(stdout)
	cmd.Stderr = orDiscard(stderr)
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%q cancelled: %w", command, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errorf(ErrPrepareFailed, "%q exited with code %d", command, exitErr.ExitCode())
	}
	return errorf(ErrPrepareFailed, "%q: %v", command, err)
}

// dedupe runs the dedupe command when dir is an npm project.
func dedupe(ctx context.Context, dir, command string, stdout, stderr io.Writer) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return false, nil
	}
	if command == "" {
		command = DefaultDedupeCommand
	}
	return true, runShell(ctx, dir, command, stdout, stderr)
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
