// Package stub is the runtime half of a compiled package: it reads the
// trailer from its own executable, extracts the archive into the cache on
// first run and hands control to the packaged command.
package stub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leafac/caxa/internal/archive"
	"github.com/leafac/caxa/internal/descriptor"
	"github.com/leafac/caxa/internal/extract"
	"github.com/leafac/caxa/internal/launch"
)

// Config controls one stub invocation. Zero fields fall back to the real
// process: os.Executable, os.Args[1:], os.Environ, os.Stderr, launch.Exec.
type Config struct {
	// Executable is the package file to read. Defaults to the running binary.
	Executable string
	// Args are forwarded after the packaged command.
	Args []string
	// Env is the base environment for the packaged command.
	Env []string

	// Layout overrides the cache location chosen from the descriptor.
	Layout *extract.Layout

	Stderr io.Writer
	Logger *slog.Logger
	Exec   launch.Func
}

// Run executes the package and returns the exit code to use. On Unix a
// successful launch replaces the process and Run does not return.
func Run(ctx context.Context, cfg Config) (int, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return 1, err
	}
	log := cfg.Logger

	f, err := os.Open(cfg.Executable)
	if err != nil {
		return 1, fmt.Errorf("opening own executable: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 1, fmt.Errorf("stat own executable: %w", err)
	}

	d, trailerOffset, err := descriptor.ReadTrailer(f, info.Size())
	if err != nil {
		return 1, err
	}
	if err := d.Validate(); err != nil {
		return 1, err
	}
	region, err := descriptor.Locate(f, d, trailerOffset)
	if err != nil {
		return 1, err
	}
	log.Debug("read package descriptor", "identifier", d.Identifier, "archiveSize", region.Size())

	layout := extract.DefaultLayout(d.UserScoped)
	if cfg.Layout != nil {
		layout = *cfg.Layout
	}

	m := &extract.Machine{
		Layout:     layout,
		Identifier: d.Identifier,
		Extract:    extractRegion(region, d.Checksum),
		Message:    d.UncompressionMessage,
		Stderr:     cfg.Stderr,
		Logger:     log,
	}
	res, err := m.Resolve(ctx)
	if err != nil {
		return 1, err
	}
	log.Debug("application directory resolved", "dir", res.Directory, "attempt", res.Attempt, "extracted", res.Extracted)

	// The file handle is not needed by the launched command.
	f.Close()

	argv := launch.Argv(d.Command, res.Directory, cfg.Args)
	env := launch.Environment(cfg.Env, res.Directory)
	log.Debug("launching", "argv", argv)
	return cfg.Exec(argv, env)
}

// extractRegion verifies the archive checksum, when recorded, before
// unpacking it.
func extractRegion(region *io.SectionReader, checksum string) extract.ExtractFunc {
	return func(ctx context.Context, dir string) error {
		if checksum != "" {
			if err := archive.Verify(io.NewSectionReader(region, 0, region.Size()), checksum); err != nil {
				return err
			}
		}
		return archive.Extract(ctx, io.NewSectionReader(region, 0, region.Size()), dir)
	}
}

// executable is os.Executable, replaceable in tests.
var executable = os.Executable

func withDefaults(cfg Config) (Config, error) {
	if cfg.Executable == "" {
		exe, err := executable()
		if err != nil {
			return cfg, fmt.Errorf("locating own executable: %w", err)
		}
		cfg.Executable = exe
	}
	if cfg.Args == nil && len(os.Args) > 1 {
		cfg.Args = os.Args[1:]
	}
	if cfg.Env == nil {
		cfg.Env = os.Environ()
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Exec == nil {
		cfg.Exec = launch.Exec
	}
	return cfg, nil
}
