package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrExtraction wraps failures after the lock for a slot was acquired. The
// lock is left in place; later runs skip that slot.
var ErrExtraction = errors.New("extraction failed")

// errRaceLost signals that another process created the lock first.
var errRaceLost = errors.New("extraction race lost")

// ExtractFunc writes the application tree into dir, which does not exist yet.
type ExtractFunc func(ctx context.Context, dir string) error

// Machine resolves the application directory for one identifier.
//
// Resolve is safe to call from any number of processes (or goroutines)
// racing on the same Layout and Identifier.
type Machine struct {
	Layout     Layout
	Identifier string

	// Extract unpacks the payload. Called at most once per Resolve.
	Extract ExtractFunc

	// Message, if set, is written to Stderr before extracting.
	Message string
	Stderr  io.Writer

	Logger *slog.Logger
}

// Result describes the directory Resolve settled on.
type Result struct {
	Directory string
	Attempt   int
	// Extracted is true when this call performed the extraction.
	Extracted bool
}

// Resolve runs the probe loop:
//
//  1. Probe attempt n (starting at 0).
//  2. Application directory absent: try to create the lock. Losing the race
//     moves on to n+1; winning extracts into a staging directory, renames it
//     into place and removes the lock.
//  3. Application directory and lock present: move on to n+1 without
//     waiting.
//  4. Application directory present, no lock: reuse it.
func (m *Machine) Resolve(ctx context.Context) (*Result, error) {
	if m.Extract == nil {
		return nil, fmt.Errorf("extract: nil ExtractFunc")
	}
	log := m.logger()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := m.Layout.probe(m.Identifier, attempt)
		if err != nil {
			return nil, err
		}
		log.Debug("probed attempt", "identifier", m.Identifier, "attempt", attempt, "state", state)

		switch state {
		case StateSkip:
			return m.result(attempt, false), nil

		case StateRetry:
			continue

		case StateExtract:
			extracted, err := m.extractAttempt(ctx, attempt)
			if errors.Is(err, errRaceLost) {
				log.Debug("lost extraction race", "attempt", attempt)
				continue
			}
			if err != nil {
				return nil, err
			}
			return m.result(attempt, extracted), nil
		}
	}
}

// extractAttempt owns slot attempt once its lock is created. It returns
// false if a completed directory appeared between the probe and the lock.
func (m *Machine) extractAttempt(ctx context.Context, attempt int) (bool, error) {
	lock := m.Layout.LockDirectory(m.Identifier, attempt)
	appDir := m.Layout.ApplicationDirectory(m.Identifier, attempt)

	if err := os.MkdirAll(filepath.Dir(lock), 0o755); err != nil {
		return false, fmt.Errorf("creating lock parent: %w", err)
	}
	if err := os.Mkdir(lock, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, errRaceLost
		}
		return false, fmt.Errorf("creating the lock directory: %w", err)
	}

	// Someone finished this slot after our probe and released the lock
	// before we took it.
	exists, err := dirExists(appDir)
	if err != nil {
		return false, err
	}
	if exists {
		if err := os.Remove(lock); err != nil {
			return false, fmt.Errorf("releasing lock: %w", err)
		}
		return false, nil
	}

	stop := m.announce()
	err = m.populate(ctx, attempt)
	stop()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	if err := os.Remove(lock); err != nil {
		return false, fmt.Errorf("releasing lock: %w", err)
	}
	return true, nil
}

// populate extracts into the staging directory and publishes it with a
// rename, so the application directory never exists half-written.
func (m *Machine) populate(ctx context.Context, attempt int) error {
	staging := m.Layout.stagingDirectory(m.Identifier, attempt)
	appDir := m.Layout.ApplicationDirectory(m.Identifier, attempt)

	if err := m.Extract(ctx, staging); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(appDir), 0o755); err != nil {
		return fmt.Errorf("creating applications directory: %w", err)
	}
	if err := os.Rename(staging, appDir); err != nil {
		return fmt.Errorf("publishing application directory: %w", err)
	}
	return nil
}

func (m *Machine) result(attempt int, extracted bool) *Result {
	return &Result{
		Directory: m.Layout.ApplicationDirectory(m.Identifier, attempt),
		Attempt:   attempt,
		Extracted: extracted,
	}
}

func (m *Machine) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.DiscardHandler)
}
