package packager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafac/caxa/internal/archive"
	"github.com/leafac/caxa/internal/descriptor"
)

const fakeStub = "#!fake stub\x00binary bytes\n"

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// testRequest returns a request with every external step disabled and a
// fake stub, packaging a small tree.
func testRequest(t *testing.T) Request {
	t.Helper()
	input := t.TempDir()
	writeTree(t, input, map[string]string{
		"index.js":              "console.log('hi')",
		"lib/util.js":           "module.exports = 1",
		"logs/debug.log":        "noise",
		"node_modules/x/i.js":   "x",
		"node_modules/x/i.test": "test",
	})
	stub := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(stub, []byte(fakeStub), 0o755))

	opts := DefaultOptions()
	opts.Dedupe = false
	opts.IncludeNode = false
	opts.Stub = stub
	opts.BuildRoot = t.TempDir()
	opts.Platform = Platform{OS: "linux", Arch: "amd64"}

	return Request{
		Input:   input,
		Command: []string{"{{caxa}}/node_modules/.bin/node", "{{caxa}}/index.js"},
		Output:  filepath.Join(t.TempDir(), "out", "app"),
		Options: opts,
	}
}

// unpack reads a compiled package the way the stub does and extracts it.
func unpack(t *testing.T, path string) (*descriptor.Descriptor, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	d, trailerOffset, err := descriptor.ReadTrailer(f, info.Size())
	require.NoError(t, err)
	region, err := descriptor.Locate(f, d, trailerOffset)
	require.NoError(t, err)
	require.NoError(t, archive.Verify(region, d.Checksum))
	_, err = region.Seek(0, io.SeekStart)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "x")
	require.NoError(t, archive.Extract(context.Background(), region, dir))
	return d, dir
}

func TestPackage_Compiled(t *testing.T) {
	req := testRequest(t)
	req.Options.Exclude = []string{"logs/**", "**/*.test"}
	req.Options.UncompressionMessage = "wait"

	res, err := Package(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, FormatCompiled, res.Format)
	assert.Regexp(t, regexp.MustCompile(`^app/[a-z0-9]{10}$`), res.Identifier)
	assert.Empty(t, res.BuildDirectory)
	assert.Equal(t, 3, res.Archive.Files)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(fakeStub+string(descriptor.Separator))))

	d, dir := unpack(t, res.Output)
	assert.Equal(t, res.Identifier, d.Identifier)
	assert.Equal(t, req.Command, d.Command)
	assert.Equal(t, "wait", d.UncompressionMessage)
	assert.Equal(t, int64(len(fakeStub)+len(descriptor.Separator)), d.ArchiveOffset)

	assert.FileExists(t, filepath.Join(dir, "index.js"))
	assert.FileExists(t, filepath.Join(dir, "lib", "util.js"))
	assert.FileExists(t, filepath.Join(dir, "node_modules", "x", "i.js"))
	assert.NoFileExists(t, filepath.Join(dir, "logs", "debug.log"))
	assert.NoFileExists(t, filepath.Join(dir, "node_modules", "x", "i.test"))

	entries, err := os.ReadDir(req.Options.BuildRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "build directory should be removed")
}

func TestPackage_ForceAndNoForce(t *testing.T) {
	req := testRequest(t)
	_, err := Package(context.Background(), req)
	require.NoError(t, err)
	_, err = Package(context.Background(), req)
	require.NoError(t, err, "force is on by default")

	before, err := os.ReadFile(req.Output)
	require.NoError(t, err)

	req.Options.Force = false
	_, err = Package(context.Background(), req)
	assert.True(t, errors.Is(err, ErrOutputExists), "err = %v", err)

	after, err := os.ReadFile(req.Output)
	require.NoError(t, err)
	assert.Equal(t, before, after, "output must be untouched")
}

func TestPackage_Gating(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(t *testing.T, r *Request)
		want   error
	}{
		{"missing input", func(t *testing.T, r *Request) { r.Input = filepath.Join(r.Input, "nope") }, ErrInvalidInput},
		{"input is a file", func(t *testing.T, r *Request) { r.Input = filepath.Join(r.Input, "index.js") }, ErrInvalidInput},
		{"empty command", func(t *testing.T, r *Request) { r.Command = nil }, ErrInvalidInput},
		{"windows without exe", func(t *testing.T, r *Request) { r.Options.Platform = Platform{OS: "windows", Arch: "amd64"} }, ErrPlatformMismatch},
		{"bundle off darwin", func(t *testing.T, r *Request) { r.Output += ".app" }, ErrPlatformMismatch},
		{"shell on windows", func(t *testing.T, r *Request) {
			r.Output += ".sh"
			r.Options.Platform = Platform{OS: "windows", Arch: "amd64"}
		}, ErrPlatformMismatch},
		{"no stub for platform", func(t *testing.T, r *Request) {
			r.Options.Stub = ""
			r.Options.Platform = Platform{OS: "plan9", Arch: "386"}
		}, ErrUnsupportedPlatform},
		{"missing stub override", func(t *testing.T, r *Request) { r.Options.Stub += ".missing" }, ErrInvalidInput},
		{"bad identifier", func(t *testing.T, r *Request) { r.Options.Identifier = "../escape" }, ErrInvalidInput},
		{"bad exclude", func(t *testing.T, r *Request) { r.Options.Exclude = []string{"[unclosed"} }, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest(t)
			tc.mutate(t, &req)
			_, err := Package(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "err = %v, want %v", err, tc.want)

			var perr *Error
			assert.True(t, errors.As(err, &perr))
			assert.NoFileExists(t, req.Output)
		})
	}
}

func TestPackage_GatingOrder(t *testing.T) {
	// Every precondition fails; the first in order wins.
	req := testRequest(t)
	req.Input = filepath.Join(req.Input, "nope")
	req.Command = nil
	req.Options.Platform = Platform{OS: "plan9", Arch: "386"}
	_, err := Package(context.Background(), req)
	assert.True(t, errors.Is(err, ErrInvalidInput), "err = %v", err)

	req = testRequest(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(req.Output), 0o755))
	require.NoError(t, os.WriteFile(req.Output, []byte("existing"), 0o644))
	req.Options.Force = false
	req.Options.Platform = Platform{OS: "windows", Arch: "amd64"}
	_, err = Package(context.Background(), req)
	assert.True(t, errors.Is(err, ErrOutputExists), "err = %v", err)
}

func TestPackage_CustomIdentifierAndKeepBuildDirectory(t *testing.T) {
	req := testRequest(t)
	req.Options.Identifier = "my-app/v1"
	req.Options.RemoveBuildDirectory = false

	res, err := Package(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "my-app/v1", res.Identifier)
	require.NotEmpty(t, res.BuildDirectory)
	assert.FileExists(t, filepath.Join(res.BuildDirectory, "index.js"))
}

func TestPackage_OutputInsideInputIsSkipped(t *testing.T) {
	req := testRequest(t)
	req.Output = filepath.Join(req.Input, "dist", "app")
	_, err := Package(context.Background(), req)
	require.NoError(t, err)

	// Second run: the first output now lives in the input tree.
	_, err = Package(context.Background(), req)
	require.NoError(t, err)
	_, dir := unpack(t, req.Output)
	assert.NoFileExists(t, filepath.Join(dir, "dist", "app"))
}

func TestPackage_IncludeNode(t *testing.T) {
	req := testRequest(t)
	fakeNode := filepath.Join(t.TempDir(), "node")
	require.NoError(t, os.WriteFile(fakeNode, []byte("#!node"), 0o755))
	writeTree(t, req.Input, map[string]string{"node_modules/.bin/node": "stale"})
	req.Options.IncludeNode = true
	req.Options.NodePath = fakeNode

	res, err := Package(context.Background(), req)
	require.NoError(t, err)
	_, dir := unpack(t, res.Output)
	got, err := os.ReadFile(filepath.Join(dir, "node_modules", ".bin", "node"))
	require.NoError(t, err)
	assert.Equal(t, "#!node", string(got), "existing runtime is overwritten")

	req.Options.NodePath = filepath.Join(t.TempDir(), "missing-node")
	_, err = Package(context.Background(), req)
	assert.True(t, errors.Is(err, ErrRuntimeNotFound), "err = %v", err)
}

func TestPackage_PrepareCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	req := testRequest(t)
	req.Options.PrepareCommand = "echo built > generated.txt"
	res, err := Package(context.Background(), req)
	require.NoError(t, err)
	_, dir := unpack(t, res.Output)
	assert.FileExists(t, filepath.Join(dir, "generated.txt"))
	assert.NoFileExists(t, filepath.Join(req.Input, "generated.txt"), "input must not be modified")

	req.Options.PrepareCommand = "exit 3"
	_, err = Package(context.Background(), req)
	assert.True(t, errors.Is(err, ErrPrepareFailed), "err = %v", err)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestPackage_DedupeOnlyForNpmProjects(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	req := testRequest(t)
	req.Options.Dedupe = true
	req.Options.DedupeCommand = "touch deduped"

	res, err := Package(context.Background(), req)
	require.NoError(t, err)
	_, dir := unpack(t, res.Output)
	assert.NoFileExists(t, filepath.Join(dir, "deduped"))

	writeTree(t, req.Input, map[string]string{"package.json": "{}"})
	res, err = Package(context.Background(), req)
	require.NoError(t, err)
	_, dir = unpack(t, res.Output)
	assert.FileExists(t, filepath.Join(dir, "deduped"))
}

func TestSelectFormat(t *testing.T) {
	assert.Equal(t, FormatBundle, SelectFormat("/x/Echo.app"))
	assert.Equal(t, FormatShell, SelectFormat("echo.sh"))
	assert.Equal(t, FormatCompiled, SelectFormat("echo.exe"))
	assert.Equal(t, FormatCompiled, SelectFormat("echo"))
}

func TestDefaultIdentifier(t *testing.T) {
	for output, prefix := range map[string]string{
		"/out/echo":     "echo/",
		"/out/echo.exe": "echo/",
		"/out/Echo.app": "Echo/",
		"/out/echo.sh":  "echo/",
	} {
		id, err := defaultIdentifier(output)
		require.NoError(t, err)
		assert.Regexp(t, "^"+regexp.QuoteMeta(prefix)+"[a-z0-9]{10}$", id)
	}
	a, _ := defaultIdentifier("x")
	b, _ := defaultIdentifier("x")
	assert.NotEqual(t, a, b)
}

func TestExcluder(t *testing.T) {
	ex, err := newExcluder("/src", []string{"logs/**", "*.tmp", "/src/secret"}, "/src/out")
	require.NoError(t, err)
	assert.True(t, ex.excluded("/src/logs/a.log", "logs/a.log"))
	assert.True(t, ex.excluded("/src/x.tmp", "x.tmp"))
	assert.False(t, ex.excluded("/src/lib/x.tmp", "lib/x.tmp"))
	assert.True(t, ex.excluded("/src/secret", "secret"))
	assert.True(t, ex.excluded("/src/out", "out"))
	assert.False(t, ex.excluded("/src/index.js", "index.js"))
}
