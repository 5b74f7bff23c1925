package packager

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// includeNode copies the node runtime into <dir>/node_modules/.bin so the
// packaged command can refer to {{caxa}}/node_modules/.bin/node. An existing
// file at the destination is replaced.
func includeNode(dir, nodePath string, p Platform) (string, error) {
	src := nodePath
	if src == "" {
		found, err := exec.LookPath("node")
		if err != nil {
			return "", errorf(ErrRuntimeNotFound, "node not found on PATH (use --no-include-node to skip): %v", err)
		}
		src = found
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", errorf(ErrRuntimeNotFound, "%v", err)
	}
	if !info.Mode().IsRegular() {
		return "", errorf(ErrRuntimeNotFound, "%s is not a regular file", src)
	}

	name := "node"
	if p.OS == "windows" {
		name = "node.exe"
	}
	bin := filepath.Join(dir, "node_modules", ".bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", bin, err)
	}
	dst := filepath.Join(bin, name)
	if err := os.RemoveAll(dst); err != nil {
		return "", fmt.Errorf("replacing %s: %w", dst, err)
	}
	if err := copyFile(src, dst, 0o755); err != nil {
		return "", err
	}
	return dst, nil
}
