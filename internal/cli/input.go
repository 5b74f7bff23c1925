package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/leafac/caxa/internal/packager"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Invocation is the fully merged description of one packaging run.
type Invocation struct {
	Settings
	// ConfigPath is the YAML file that was applied, if any.
	ConfigPath string
}

// Request converts the invocation into a packager request.
func (inv Invocation) Request() packager.Request {
	opts := packager.DefaultOptions()
	opts.Force = inv.Force
	opts.Exclude = inv.Exclude
	opts.Dedupe = inv.Dedupe
	if inv.DedupeCommand != "" {
		opts.DedupeCommand = inv.DedupeCommand
	}
	opts.PrepareCommand = inv.PrepareCommand
	opts.IncludeNode = inv.IncludeNode
	opts.NodePath = inv.NodePath
	opts.Stub = inv.Stub
	opts.Identifier = inv.Identifier
	opts.RemoveBuildDirectory = inv.RemoveBuildDirectory
	opts.UncompressionMessage = inv.UncompressionMessage
	opts.UserScoped = inv.UserScoped
	return packager.Request{
		Input:   inv.Input,
		Command: inv.Command,
		Output:  inv.Output,
		Options: opts,
	}
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitFailure, Message: fmt.Sprintf(format, args...)}
}

// Environment is what an invocation may read besides its arguments.
type Environment struct {
	// DotEnv is the .env file to read; empty skips it.
	DotEnv string
	// Lookup reads process environment variables.
	Lookup func(string) (string, bool)
}

// OSEnvironment reads ./.env and the process environment.
func OSEnvironment() Environment {
	return Environment{DotEnv: ".env", Lookup: os.LookupEnv}
}

func defineFlags(fs *pflag.FlagSet) {
	fs.StringP("input", "i", "", "The input directory to package.")
	fs.StringP("output", "o", "", "The path where the executable will be produced. On Windows must end in ‘.exe’. On macOS may end in ‘.app’ to generate an application bundle. May end in ‘.sh’ for a self-extracting shell script.")
	fs.Bool("no-force", false, "Don’t overwrite output if it exists.")
	fs.StringArrayP("exclude", "e", nil, "Paths to exclude from the build (doublestar globs). May be repeated.")
	fs.Bool("no-dedupe", false, "Don’t run ‘npm dedupe --production’ on the build directory.")
	fs.StringP("prepare-command", "p", "", "Command to run on the build directory while packaging.")
	fs.Bool("no-include-node", false, "Don’t copy the Node.js executable to ‘{{caxa}}/node_modules/.bin/node’.")
	fs.StringP("stub", "s", "", "Path to the stub.")
	fs.String("identifier", "", "Build identifier, which is the path in which the application will be unpacked.")
	fs.Bool("no-remove-build-directory", false, "Keep the build directory after packaging.")
	fs.StringP("uncompression-message", "m", "", "A message to show when uncompressing, for example, ‘This may take a while to run the first time, please wait...’.")
	fs.Bool("user-scoped", false, "Extract into a per-user cache directory.")
	fs.String("config", "", "YAML file with default settings.")
	fs.BoolP("verbose", "v", false, "Log debug information.")
}

// resolveInvocation merges every configuration layer. fs must already be
// parsed; args are the positional arguments, i.e. the command to run.
func resolveInvocation(fs *pflag.FlagSet, args []string, env Environment) (Invocation, error) {
	s := defaultSettings()
	inv := Invocation{}

	if env.DotEnv != "" {
		values, err := loadDotEnv(env.DotEnv)
		if err != nil {
			return inv, err
		}
		if err := s.applyEnv(mapLookup(values)); err != nil {
			return inv, err
		}
	}

	configPath, _ := fs.GetString("config")
	if configPath == "" && env.Lookup != nil {
		configPath, _ = env.Lookup(EnvPrefix + "CONFIG")
	}
	if configPath != "" {
		if err := s.applyYAML(configPath); err != nil {
			return inv, err
		}
		inv.ConfigPath = configPath
	}

	if env.Lookup != nil {
		if err := s.applyEnv(env.Lookup); err != nil {
			return inv, err
		}
	}

	if err := applyFlags(fs, &s); err != nil {
		return inv, err
	}
	if len(args) > 0 {
		s.Command = args
	}
	inv.Settings = s
	return inv, validate(inv)
}

func applyFlags(fs *pflag.FlagSet, s *Settings) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	// --no-x flags only ever turn a step off; --no-x=false turns it back on.
	negated := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = !v
		}
	}
	boolean := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("input", &s.Input)
	str("output", &s.Output)
	str("prepare-command", &s.PrepareCommand)
	str("stub", &s.Stub)
	str("identifier", &s.Identifier)
	str("uncompression-message", &s.UncompressionMessage)
	negated("no-force", &s.Force)
	negated("no-dedupe", &s.Dedupe)
	negated("no-include-node", &s.IncludeNode)
	negated("no-remove-build-directory", &s.RemoveBuildDirectory)
	boolean("user-scoped", &s.UserScoped)
	boolean("verbose", &s.Verbose)
	if fs.Changed("exclude") {
		v, err := fs.GetStringArray("exclude")
		errs = append(errs, err)
		s.Exclude = v
	}

	if err := errors.Join(errs...); err != nil {
		return invalidInvocationf("%v", err)
	}
	return nil
}

func validate(inv Invocation) error {
	if strings.TrimSpace(inv.Input) == "" {
		return invalidInvocationf("--input is required")
	}
	if strings.TrimSpace(inv.Output) == "" {
		return invalidInvocationf("--output is required")
	}
	if len(inv.Command) == 0 {
		return invalidInvocationf("missing command to run (pass it after --)")
	}
	if filepath.Clean(inv.Output) == filepath.Clean(inv.Input) {
		return invalidInvocationf("--output must not be the input directory")
	}
	return nil
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil && invErr.ExitCode != 0 {
		return invErr.ExitCode
	}
	return ExitFailure
}
