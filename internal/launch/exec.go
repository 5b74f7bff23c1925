package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Func starts argv with env. On success it does not return on Unix; on
// Windows it returns the child's exit code.
type Func func(argv, env []string) (int, error)

// resolve finds argv[0] the way a shell started with env would: names
// without a separator are searched in env's PATH, not the stub's own.
func resolve(argv, env []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrLaunch)
	}
	name := argv[0]
	pathValue, ok := lookupEnv(env, "PATH")
	if strings.ContainsAny(name, `/\`) || !ok {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		return path, nil
	}

	for _, dir := range filepath.SplitList(pathValue) {
		if dir == "" {
			dir = "."
		}
		// The separator keeps LookPath from searching PATH again.
		if path, err := exec.LookPath(dir + string(os.PathSeparator) + name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: exec: %q: executable file not found in PATH %q", ErrLaunch, name, pathValue)
}

func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(env[i], "=")
		if envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}
