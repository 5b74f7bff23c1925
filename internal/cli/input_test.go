package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func parse(t *testing.T, args []string, env Environment) (Invocation, error) {
	t.Helper()
	fs := pflag.NewFlagSet("caxa", pflag.ContinueOnError)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}
	return resolveInvocation(fs, fs.Args(), env)
}

func noEnv() Environment {
	return Environment{Lookup: func(string) (string, bool) { return "", false }}
}

func TestResolveInvocation_Defaults(t *testing.T) {
	inv, err := parse(t, []string{"--input", "in", "--output", "out", "--", "node", "{{caxa}}/index.js"}, noEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := inv.Request()
	if !req.Options.Force || !req.Options.Dedupe || !req.Options.IncludeNode || !req.Options.RemoveBuildDirectory {
		t.Fatalf("expected default-on options, got %+v", req.Options)
	}
	if req.Options.UserScoped {
		t.Fatalf("user-scoped should default to off")
	}
	if !reflect.DeepEqual(req.Command, []string{"node", "{{caxa}}/index.js"}) {
		t.Fatalf("command = %q", req.Command)
	}
}

func TestResolveInvocation_Flags(t *testing.T) {
	inv, err := parse(t, []string{
		"-i", "in", "-o", "out.sh",
		"--no-force", "--no-dedupe", "--no-include-node", "--no-remove-build-directory",
		"-e", "logs/**", "--exclude", "*.tmp",
		"-p", "npm run build",
		"-s", "/stub", "--identifier", "my/app",
		"-m", "wait", "--user-scoped", "--verbose",
		"--", "sh", "-c", "echo hi",
	}, noEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := inv.Request().Options
	if o.Force || o.Dedupe || o.IncludeNode || o.RemoveBuildDirectory {
		t.Fatalf("--no-* flags not applied: %+v", o)
	}
	if !reflect.DeepEqual(o.Exclude, []string{"logs/**", "*.tmp"}) {
		t.Fatalf("exclude = %q", o.Exclude)
	}
	if o.PrepareCommand != "npm run build" || o.Stub != "/stub" || o.Identifier != "my/app" || o.UncompressionMessage != "wait" || !o.UserScoped {
		t.Fatalf("flags not applied: %+v", o)
	}
	if !inv.Verbose {
		t.Fatalf("verbose not applied")
	}
	if !reflect.DeepEqual(inv.Command, []string{"sh", "-c", "echo hi"}) {
		t.Fatalf("command after -- must be kept verbatim, got %q", inv.Command)
	}
}

func TestResolveInvocation_Layering(t *testing.T) {
	dir := t.TempDir()
	dotEnv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotEnv, []byte("CAXA_INPUT=from-dotenv\nCAXA_UNCOMPRESSION_MESSAGE=dotenv\nCAXA_STUB=dotenv-stub\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	config := filepath.Join(dir, "caxa.yaml")
	if err := os.WriteFile(config, []byte("output: from-yaml\nuncompressionMessage: yaml\ndedupe: false\ncommand: [node, index.js]\nexclude: [a, b]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := Environment{
		DotEnv: dotEnv,
		Lookup: func(k string) (string, bool) {
			v, ok := map[string]string{
				"CAXA_UNCOMPRESSION_MESSAGE": "env",
				"CAXA_USER_SCOPED":           "true",
			}[k]
			return v, ok
		},
	}

	inv, err := parse(t, []string{"--config", config, "--identifier", "flag/id"}, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Input != "from-dotenv" {
		t.Errorf("input = %q, want from .env", inv.Input)
	}
	if inv.Stub != "dotenv-stub" {
		t.Errorf("stub = %q, want from .env", inv.Stub)
	}
	if inv.Output != "from-yaml" {
		t.Errorf("output = %q, want from yaml", inv.Output)
	}
	if inv.UncompressionMessage != "env" {
		t.Errorf("message = %q, want env to beat yaml and .env", inv.UncompressionMessage)
	}
	if inv.Dedupe {
		t.Errorf("dedupe should be disabled by yaml")
	}
	if !inv.IncludeNode {
		t.Errorf("includeNode should keep its default")
	}
	if !inv.UserScoped || inv.Identifier != "flag/id" {
		t.Errorf("env/flag layers not applied: %+v", inv.Settings)
	}
	if !reflect.DeepEqual(inv.Command, []string{"node", "index.js"}) || !reflect.DeepEqual(inv.Exclude, []string{"a", "b"}) {
		t.Errorf("yaml lists not applied: %+v", inv.Settings)
	}
	if inv.ConfigPath != config {
		t.Errorf("config path = %q", inv.ConfigPath)
	}

	// Flags beat every other layer.
	inv, err = parse(t, []string{"--config", config, "-m", "flag", "--", "x"}, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.UncompressionMessage != "flag" || !reflect.DeepEqual(inv.Command, []string{"x"}) {
		t.Errorf("flags not on top: %+v", inv.Settings)
	}
}

func TestResolveInvocation_MissingDotEnvIsFine(t *testing.T) {
	env := noEnv()
	env.DotEnv = filepath.Join(t.TempDir(), ".env")
	if _, err := parse(t, []string{"-i", "a", "-o", "b", "--", "c"}, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveInvocation_Errors(t *testing.T) {
	badBool := Environment{Lookup: func(k string) (string, bool) {
		if k == "CAXA_FORCE" {
			return "maybe", true
		}
		return "", false
	}}
	cases := []struct {
		name string
		args []string
		env  Environment
	}{
		{"missing input", []string{"-o", "out", "--", "x"}, noEnv()},
		{"missing output", []string{"-i", "in", "--", "x"}, noEnv()},
		{"missing command", []string{"-i", "in", "-o", "out"}, noEnv()},
		{"output is input", []string{"-i", "in", "-o", "in/", "--", "x"}, noEnv()},
		{"bad env bool", []string{"-i", "in", "-o", "out", "--", "x"}, badBool},
		{"missing config", []string{"--config", "/does/not/exist.yaml", "-i", "in", "-o", "out", "--", "x"}, noEnv()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.args, tc.env)
			if err == nil {
				t.Fatalf("expected error")
			}
			if ExitCode(err) != ExitFailure {
				t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitFailure)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitSuccess {
		t.Fatalf("nil error should map to success")
	}
	if ExitCode(os.ErrNotExist) != ExitFailure {
		t.Fatalf("unknown errors should map to failure")
	}
	if ExitCode(&InvocationError{ExitCode: 7}) != 7 {
		t.Fatalf("explicit exit code not honoured")
	}
}
