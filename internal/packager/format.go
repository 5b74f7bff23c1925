package packager

import (
	"context"
	"path/filepath"
	"strings"
)

// Format is the kind of artifact Package produces, chosen from the output
// file name.
type Format int

const (
	// FormatCompiled is stub + separator + archive + trailer.
	FormatCompiled Format = iota
	// FormatBundle is a macOS .app directory.
	FormatBundle
	// FormatShell is a self-extracting POSIX shell script.
	FormatShell
)

func (f Format) String() string {
	switch f {
	case FormatBundle:
		return "bundle"
	case FormatShell:
		return "shell"
	default:
		return "compiled"
	}
}

// SelectFormat picks the format for output.
func SelectFormat(output string) Format {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".app":
		return FormatBundle
	case ".sh":
		return FormatShell
	default:
		return FormatCompiled
	}
}

// checkPlatform rejects outputs the target platform cannot run.
func checkPlatform(f Format, output string, p Platform) error {
	ext := strings.ToLower(filepath.Ext(output))
	switch {
	case p.OS == "windows" && ext != ".exe":
		return errorf(ErrPlatformMismatch, "on windows the output must end in .exe (got %q)", output)
	case f == FormatBundle && p.OS != "darwin":
		return errorf(ErrPlatformMismatch, ".app bundles can only be built on darwin (host is %s)", p)
	case f == FormatShell && p.OS == "windows":
		return errorf(ErrPlatformMismatch, ".sh outputs are not supported on windows")
	}
	return nil
}

type builder func(ctx context.Context, b *build) error

// builderFor is the single dispatch point from Format to its writer.
func builderFor(f Format) builder {
	switch f {
	case FormatBundle:
		return buildBundle
	case FormatShell:
		return buildShell
	default:
		return buildCompiled
	}
}
