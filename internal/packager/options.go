package packager

import (
	"io"
	"log/slog"
	"runtime"
)

// DefaultDedupeCommand runs in the build directory when it holds a
// package.json.
const DefaultDedupeCommand = "npm dedupe --production"

// DefaultUncompressionMessage is empty: packages extract silently unless
// asked otherwise.
const DefaultUncompressionMessage = ""

// Platform names a GOOS/GOARCH pair.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string { return p.OS + "/" + p.Arch }

// HostPlatform returns the platform this binary was built for.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Options tunes a packaging run. Use DefaultOptions and override fields;
// the zero value disables every boolean step.
type Options struct {
	// Force overwrites an existing output.
	Force bool
	// Exclude lists doublestar globs of input paths not to copy.
	Exclude []string

	Dedupe        bool
	DedupeCommand string
	// PrepareCommand runs through the platform shell in the build directory.
	PrepareCommand string

	// IncludeNode copies the node runtime to node_modules/.bin. NodePath
	// overrides the lookup on PATH.
	IncludeNode bool
	NodePath    string

	// Stub replaces the embedded stub for the compiled format.
	Stub string
	// Identifier overrides the generated cache identifier.
	Identifier string

	// BuildRoot is where build directories are created. Defaults to
	// <tmp>/caxa/builds.
	BuildRoot            string
	RemoveBuildDirectory bool

	UncompressionMessage string
	UserScoped           bool

	// Platform defaults to HostPlatform.
	Platform Platform
}

// DefaultOptions mirrors the command-line defaults.
func DefaultOptions() Options {
	return Options{
		Force:                true,
		Dedupe:               true,
		DedupeCommand:        DefaultDedupeCommand,
		IncludeNode:          true,
		RemoveBuildDirectory: true,
		UncompressionMessage: DefaultUncompressionMessage,
		Platform:             HostPlatform(),
	}
}

// Request is one packaging job.
type Request struct {
	// Input is the directory to package.
	Input string
	// Command is the argv template; elements may contain {{caxa}}.
	Command []string
	// Output is the file (or .app directory) to produce.
	Output  string
	Options Options

	// Stdout and Stderr receive the output of prepare and dedupe commands.
	// Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}
