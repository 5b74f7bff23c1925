package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leafac/caxa/internal/packager"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "CAXA_"

// Settings is the merged configuration of one invocation.
//
// Layers, lowest first:
//  1. packager.DefaultOptions
//  2. CAXA_* entries of a .env file in the working directory
//  3. the YAML file named by --config
//  4. CAXA_* environment variables
//  5. flags given on the command line
type Settings struct {
	Input   string   `yaml:"input"`
	Output  string   `yaml:"output"`
	Command []string `yaml:"command"`

	Force                bool     `yaml:"force"`
	Exclude              []string `yaml:"exclude"`
	Dedupe               bool     `yaml:"dedupe"`
	DedupeCommand        string   `yaml:"dedupeCommand"`
	PrepareCommand       string   `yaml:"prepareCommand"`
	IncludeNode          bool     `yaml:"includeNode"`
	NodePath             string   `yaml:"nodePath"`
	Stub                 string   `yaml:"stub"`
	Identifier           string   `yaml:"identifier"`
	RemoveBuildDirectory bool     `yaml:"removeBuildDirectory"`
	UncompressionMessage string   `yaml:"uncompressionMessage"`
	UserScoped           bool     `yaml:"userScoped"`

	Verbose bool `yaml:"verbose"`
}

func defaultSettings() Settings {
	o := packager.DefaultOptions()
	return Settings{
		Force:                o.Force,
		Dedupe:               o.Dedupe,
		DedupeCommand:        o.DedupeCommand,
		IncludeNode:          o.IncludeNode,
		RemoveBuildDirectory: o.RemoveBuildDirectory,
		UncompressionMessage: o.UncompressionMessage,
	}
}

// loadDotEnv reads path if it exists. A missing file is not an error.
func loadDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, configErrorf("reading %s: %v", path, err)
	}
	return values, nil
}

// applyYAML overlays the keys present in the file at path onto s.
func (s *Settings) applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return configErrorf("reading config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return configErrorf("parsing config %s: %v", path, err)
	}
	return nil
}

// applyEnv overlays CAXA_* values returned by lookup.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return configErrorf("%s%s: %q is not a boolean", EnvPrefix, name, v)
		}
		*dst = b
		return nil
	}

	str("INPUT", &s.Input)
	str("OUTPUT", &s.Output)
	str("DEDUPE_COMMAND", &s.DedupeCommand)
	str("PREPARE_COMMAND", &s.PrepareCommand)
	str("NODE_PATH", &s.NodePath)
	str("STUB", &s.Stub)
	str("IDENTIFIER", &s.Identifier)
	str("UNCOMPRESSION_MESSAGE", &s.UncompressionMessage)
	if v, ok := lookup(EnvPrefix + "EXCLUDE"); ok && v != "" {
		s.Exclude = splitList(v)
	}

	for name, dst := range map[string]*bool{
		"FORCE":                  &s.Force,
		"DEDUPE":                 &s.Dedupe,
		"INCLUDE_NODE":           &s.IncludeNode,
		"REMOVE_BUILD_DIRECTORY": &s.RemoveBuildDirectory,
		"USER_SCOPED":            &s.UserScoped,
		"VERBOSE":                &s.Verbose,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitFailure, Message: fmt.Sprintf(format, args...)}
}
