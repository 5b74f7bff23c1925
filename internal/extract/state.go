package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// State is the outcome of probing one attempt slot.
type State string

const (
	// StateProbe is the initial state for every attempt number.
	StateProbe State = "PROBE_NEXT_ATTEMPT"
	// StateExtract means the application directory is absent; try to win
	// the lock and extract.
	StateExtract State = "EXTRACT"
	// StateRetry means another process holds (or crashed holding) the lock
	// for this slot; move to the next attempt number.
	StateRetry State = "RETRY"
	// StateSkip means a completed extraction exists; reuse it.
	StateSkip State = "SKIP"
)

// probe classifies the slot (identifier, attempt) without modifying it.
func (l Layout) probe(identifier string, attempt int) (State, error) {
	appDir := l.ApplicationDirectory(identifier, attempt)
	exists, err := dirExists(appDir)
	if err != nil {
		return StateProbe, fmt.Errorf("application directory: %w", err)
	}
	if !exists {
		return StateExtract, nil
	}

	locked, err := dirExists(l.LockDirectory(identifier, attempt))
	if err != nil {
		return StateProbe, fmt.Errorf("lock: %w", err)
	}
	if locked {
		return StateRetry, nil
	}
	return StateSkip, nil
}

// dirExists reports whether path is an existing directory. A non-directory
// at path is an error: something else owns that name.
func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to find information about %s: %w", path, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("path %s already exists and isn't a directory", path)
	}
	return true, nil
}
