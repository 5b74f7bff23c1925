// Package packager builds self-extracting packages from a directory and a
// command template.
//
// A run copies the input into a fresh build directory, applies the
// optional prepare steps (dedupe, prepare command, node runtime) and hands
// the result to exactly one format writer chosen from the output name.
package packager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/leafac/caxa/internal/archive"
	"github.com/leafac/caxa/internal/descriptor"
	"github.com/leafac/caxa/internal/extract"
)

// Result describes a finished package.
type Result struct {
	Output     string
	Format     Format
	Identifier string
	// BuildDirectory is empty when it was removed.
	BuildDirectory string
	// Archive is nil for bundles, which are not archived.
	Archive *archive.Summary
}

// build is the state shared by the format writers.
type build struct {
	output     string
	buildDir   string
	identifier string
	command    []string
	opts       Options
	stub       []byte
	summary    *archive.Summary
}

func (b *build) descriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Identifier:           b.identifier,
		Command:              b.command,
		UncompressionMessage: b.opts.UncompressionMessage,
		UserScoped:           b.opts.UserScoped,
	}
}

// Package runs one packaging job. Every precondition is checked before the
// filesystem is touched.
func Package(ctx context.Context, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	opts := req.Options
	if opts.Platform == (Platform{}) {
		opts.Platform = HostPlatform()
	}

	b, err := plan(req, opts)
	if err != nil {
		return nil, err
	}
	format := SelectFormat(b.output)
	log.Debug("packaging", "input", req.Input, "output", b.output, "format", format, "identifier", b.identifier)

	b.buildDir = filepath.Join(buildRoot(opts), uuid.NewString())
	if opts.RemoveBuildDirectory {
		defer func() {
			if err := os.RemoveAll(b.buildDir); err != nil {
				log.Warn("failed to remove build directory", "dir", b.buildDir, "error", err)
			}
		}()
	}

	input, err := filepath.Abs(req.Input)
	if err != nil {
		return nil, fmt.Errorf("resolving input: %w", err)
	}
	ex, err := newExcluder(input, opts.Exclude, b.output)
	if err != nil {
		return nil, err
	}
	files, err := copyTree(ctx, input, b.buildDir, ex)
	if err != nil {
		return nil, fmt.Errorf("copying input to build directory: %w", err)
	}
	log.Debug("copied input", "files", files, "buildDirectory", b.buildDir)

	if opts.Dedupe {
		ran, err := dedupe(ctx, b.buildDir, opts.DedupeCommand, req.Stdout, req.Stderr)
		if err != nil {
			return nil, err
		}
		if ran {
			log.Debug("deduplicated dependencies")
		}
	}
	if opts.PrepareCommand != "" {
		log.Debug("running prepare command", "command", opts.PrepareCommand)
		if err := runShell(ctx, b.buildDir, opts.PrepareCommand, req.Stdout, req.Stderr); err != nil {
			return nil, err
		}
	}
	if opts.IncludeNode {
		dst, err := includeNode(b.buildDir, opts.NodePath, opts.Platform)
		if err != nil {
			return nil, err
		}
		log.Debug("included node runtime", "path", dst)
	}

	if err := os.RemoveAll(b.output); err != nil {
		return nil, fmt.Errorf("removing existing output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.output), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if err := builderFor(format)(ctx, b); err != nil {
		return nil, err
	}
	log.Info("package written", "output", b.output, "format", format)

	res := &Result{
		Output:     b.output,
		Format:     format,
		Identifier: b.identifier,
		Archive:    b.summary,
	}
	if !opts.RemoveBuildDirectory {
		res.BuildDirectory = b.buildDir
	}
	return res, nil
}

// plan validates req in order and resolves everything the writers need
// except the build directory.
func plan(req Request, opts Options) (*build, error) {
	info, err := os.Stat(req.Input)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, errorf(ErrInvalidInput, "input %q does not exist", req.Input)
	case err != nil:
		return nil, fmt.Errorf("stat input: %w", err)
	case !info.IsDir():
		return nil, errorf(ErrInvalidInput, "input %q is not a directory", req.Input)
	}
	if len(req.Command) == 0 || req.Command[0] == "" {
		return nil, errorf(ErrInvalidInput, "command is empty")
	}
	if req.Output == "" {
		return nil, errorf(ErrInvalidInput, "output is empty")
	}
	output, err := filepath.Abs(req.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output: %w", err)
	}

	if !opts.Force {
		if _, err := os.Lstat(output); err == nil {
			return nil, errorf(ErrOutputExists, "%q (drop --no-force to overwrite)", req.Output)
		}
	}

	format := SelectFormat(output)
	if err := checkPlatform(format, output, opts.Platform); err != nil {
		return nil, err
	}

	b := &build{
		output:  output,
		command: append([]string(nil), req.Command...),
		opts:    opts,
	}
	if format == FormatCompiled {
		if b.stub, err = resolveStub(opts.Stub, opts.Platform); err != nil {
			return nil, err
		}
	}

	if opts.Identifier != "" {
		if err := descriptor.ValidateIdentifier(opts.Identifier); err != nil {
			return nil, errorf(ErrInvalidInput, "identifier: %v", err)
		}
		b.identifier = opts.Identifier
	} else if b.identifier, err = defaultIdentifier(output); err != nil {
		return nil, err
	}
	return b, nil
}

func buildRoot(opts Options) string {
	if opts.BuildRoot != "" {
		return opts.BuildRoot
	}
	return filepath.Join(os.TempDir(), extract.Namespace, "builds")
}
