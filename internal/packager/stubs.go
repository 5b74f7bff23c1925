package packager

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

//go:generate ../../scripts/build-stubs.sh

//go:embed stubs
var embeddedStubs embed.FS

// stubFiles maps each supported platform to its file under stubs/. The
// files are produced by scripts/build-stubs.sh before a release build.
var stubFiles = map[Platform]string{
	{OS: "darwin", Arch: "amd64"}:  "stubs/stub--darwin--amd64",
	{OS: "darwin", Arch: "arm64"}:  "stubs/stub--darwin--arm64",
	{OS: "linux", Arch: "amd64"}:   "stubs/stub--linux--amd64",
	{OS: "linux", Arch: "arm64"}:   "stubs/stub--linux--arm64",
	{OS: "linux", Arch: "arm"}:     "stubs/stub--linux--arm",
	{OS: "windows", Arch: "amd64"}: "stubs/stub--windows--amd64",
	{OS: "windows", Arch: "arm64"}: "stubs/stub--windows--arm64",
}

// resolveStub returns the stub bytes for a compiled package. An explicit
// override path wins over the embedded table.
func resolveStub(override string, p Platform) ([]byte, error) {
	if override != "" {
		data, err := os.ReadFile(override)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errorf(ErrInvalidInput, "stub %q does not exist", override)
		}
		if err != nil {
			return nil, fmt.Errorf("reading stub %q: %w", override, err)
		}
		return data, nil
	}

	name, ok := stubFiles[p]
	if !ok {
		return nil, errorf(ErrUnsupportedPlatform, "%s", p)
	}
	data, err := embeddedStubs.ReadFile(name)
	if err != nil {
		return nil, errorf(ErrUnsupportedPlatform, "%s (stub not built into this binary; run go generate ./...)", p)
	}
	return data, nil
}
