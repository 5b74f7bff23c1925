//go:build !windows

package launch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Exec replaces the current process image with argv. It only returns on
// failure.
func Exec(argv, env []string) (int, error) {
	path, err := resolve(argv, env)
	if err != nil {
		return 1, err
	}
	if err := unix.Exec(path, argv, env); err != nil {
		return 1, fmt.Errorf("%w: exec %s: %v", ErrLaunch, path, err)
	}
	return 0, nil
}
