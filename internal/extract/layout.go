package extract

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// Namespace is the directory created under the OS temporary directory.
const Namespace = "caxa"

// Layout maps (identifier, attempt) pairs to cache paths.
type Layout struct {
	// Root is the cache root, e.g. $TMPDIR/caxa.
	Root string
}

// DefaultLayout returns the layout under os.TempDir(). With userScoped the
// root gains a username segment so users on one machine do not share
// extractions.
func DefaultLayout(userScoped bool) Layout {
	root := filepath.Join(os.TempDir(), Namespace)
	if userScoped {
		root = filepath.Join(root, currentUsername())
	}
	return Layout{Root: root}
}

// ApplicationDirectory returns where attempt number attempt of identifier is
// extracted.
func (l Layout) ApplicationDirectory(identifier string, attempt int) string {
	return filepath.Join(l.Root, "applications", filepath.FromSlash(identifier), strconv.Itoa(attempt))
}

// LockDirectory returns the lock guarding ApplicationDirectory(identifier, attempt).
func (l Layout) LockDirectory(identifier string, attempt int) string {
	return filepath.Join(l.Root, "locks", filepath.FromSlash(identifier), strconv.Itoa(attempt))
}

// stagingDirectory lives inside the lock so a crash leaves nothing behind in
// applications/.
func (l Layout) stagingDirectory(identifier string, attempt int) string {
	return filepath.Join(l.LockDirectory(identifier, attempt), "payload")
}

// currentUsername returns a path-safe user name. Windows reports
// DOMAIN\user, which becomes DOMAIN_user.
func currentUsername() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = os.Getenv("USERNAME")
	}
	if name == "" {
		name = "unknown"
	}
	return strings.NewReplacer(`\`, "_", "/", "_").Replace(name)
}
