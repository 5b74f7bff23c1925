package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// buildBundle lays out a macOS application bundle:
//
//	<name>.app/Contents/MacOS/<name>      opens the launcher in a terminal
//	<name>.app/Contents/Resources/<name>  runs the command
//	<name>.app/Contents/Resources/app/    the build directory
//
// Bundles are not self-extracting; the application runs in place.
func buildBundle(ctx context.Context, b *build) error {
	name := strings.TrimSuffix(filepath.Base(b.output), filepath.Ext(b.output))
	staging, err := os.MkdirTemp(filepath.Dir(b.output), filepath.Base(b.output)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating bundle staging directory: %w", err)
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return err
	}

	resources := filepath.Join(staging, "Contents", "Resources")
	macOS := filepath.Join(staging, "Contents", "MacOS")
	if err := os.MkdirAll(macOS, 0o755); err != nil {
		return err
	}
	if err := placeApplication(ctx, b, filepath.Join(resources, "app")); err != nil {
		return err
	}

	entry := "#!/usr/bin/env sh\nopen \"$(dirname \"$0\")/../Resources/" + name + "\"\n"
	if err := os.WriteFile(filepath.Join(macOS, name), []byte(entry), 0o755); err != nil {
		return err
	}
	launcher := "#!/usr/bin/env sh\nexec " + shellCommand(b.command, `"$(dirname "$0")/app"`) + " \"$@\"\n"
	if err := os.WriteFile(filepath.Join(resources, name), []byte(launcher), 0o755); err != nil {
		return err
	}

	if err := os.RemoveAll(b.output); err != nil {
		return fmt.Errorf("removing previous bundle: %w", err)
	}
	if err := os.Rename(staging, b.output); err != nil {
		return fmt.Errorf("publishing bundle: %w", err)
	}
	return nil
}

// placeApplication moves the build directory into the bundle. It is copied
// instead when the build directory must be kept, or when a rename is not
// possible (build root on another filesystem).
func placeApplication(ctx context.Context, b *build, dst string) error {
	if b.opts.RemoveBuildDirectory {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.Rename(b.buildDir, dst); err == nil {
			return nil
		}
	}
	if _, err := copyTree(ctx, b.buildDir, dst, nil); err != nil {
		return fmt.Errorf("copying application into bundle: %w", err)
	}
	return nil
}
