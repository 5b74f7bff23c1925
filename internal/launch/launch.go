// Package launch turns a packaged command template into a running process.
//
// The template is a list of argument strings that may contain the
// placeholder {{caxa}} (whitespace inside the braces allowed). Every
// occurrence is replaced by the application directory; forwarded arguments
// are appended verbatim.
package launch

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrLaunch wraps failures to start the packaged command.
var ErrLaunch = errors.New("launch failed")

// Placeholder matches {{caxa}} with optional whitespace inside the braces.
var Placeholder = regexp.MustCompile(`\{\{\s*caxa\s*\}\}`)

// Expand replaces every placeholder in s with dir. dir is inserted
// literally; "$" in paths is not treated as a group reference.
func Expand(s, dir string) string {
	return Placeholder.ReplaceAllLiteralString(s, dir)
}

// Argv expands each element of command and appends extra unchanged.
// Arguments are never re-split on whitespace.
func Argv(command []string, dir string, extra []string) []string {
	argv := make([]string, 0, len(command)+len(extra))
	for _, c := range command {
		argv = append(argv, Expand(c, dir))
	}
	return append(argv, extra...)
}

// Environment returns base with CAXA=true set and, if dir contains
// node_modules/.bin, that directory prepended to PATH.
func Environment(base []string, dir string) []string {
	env := make([]string, 0, len(base)+1)
	pathKey, pathValue := "PATH", ""
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		switch {
		case envKeyEqual(k, "CAXA"):
			continue
		case envKeyEqual(k, "PATH"):
			pathKey, pathValue = k, v
			continue
		}
		env = append(env, kv)
	}

	bin := filepath.Join(dir, "node_modules", ".bin")
	if info, err := os.Stat(bin); err == nil && info.IsDir() {
		if pathValue == "" {
			pathValue = bin
		} else {
			pathValue = bin + string(os.PathListSeparator) + pathValue
		}
	}
	if pathValue != "" {
		env = append(env, pathKey+"="+pathValue)
	}
	return append(env, "CAXA=true")
}
