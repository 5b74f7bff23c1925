//go:build windows

package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
)

// Exec runs argv as a child with inherited stdio and returns its exit code.
// Windows has no exec(2); interrupts go to the whole console group, so the
// parent only ignores them while it waits.
func Exec(argv, env []string) (int, error) {
	path, err := resolve(argv, env)
	if err != nil {
		return 1, err
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	err = cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 1, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	return 0, nil
}
