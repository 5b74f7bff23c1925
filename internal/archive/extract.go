package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Extract unpacks the gzip-compressed tar read from r into dir, creating dir
// if needed.
//
// Regular files keep their permission bits, directories are created 0755 and
// symbolic links are recreated as-is. Modification times in the future are
// clamped to the current time.
func Extract(ctx context.Context, r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("requires gzip-compressed body: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	t0 := time.Now()
	madeDir := map[string]bool{dir: true}
	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar error: %w", err)
		}
		if !validRelPath(hdr.Name) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, hdr.Name)
		}
		abs := filepath.Join(dir, filepath.FromSlash(hdr.Name))

		mode := hdr.FileInfo().Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return err
			}
			madeDir[abs] = true

		case mode.IsRegular():
			parent := filepath.Dir(abs)
			if !madeDir[parent] {
				if err := os.MkdirAll(parent, 0o755); err != nil {
					return err
				}
				madeDir[parent] = true
			}
			if err := writeFile(abs, tr, mode.Perm(), hdr.Size); err != nil {
				return err
			}
			modTime := hdr.ModTime
			if modTime.After(t0) {
				modTime = t0
			}
			if !modTime.IsZero() {
				// Not fatal: nothing downstream depends on mtimes.
				_ = os.Chtimes(abs, modTime, modTime)
			}

		case hdr.Typeflag == tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return fmt.Errorf("%s: making directory for link: %w", abs, err)
			}
			if _, err := os.Lstat(abs); err == nil {
				if err := os.Remove(abs); err != nil {
					return fmt.Errorf("%s: failed to unlink: %w", abs, err)
				}
			}
			if err := os.Symlink(filepath.FromSlash(hdr.Linkname), abs); err != nil {
				return fmt.Errorf("%s: making symbolic link: %w", abs, err)
			}

		default:
			return fmt.Errorf("tar entry %s has unsupported type %v", hdr.Name, mode)
		}
	}
}

func writeFile(abs string, r io.Reader, perm os.FileMode, size int64) error {
	f, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("error writing to %s: %w", abs, err)
	}
	if n != size {
		return fmt.Errorf("only wrote %d bytes to %s; expected %d", n, abs, size)
	}
	return nil
}

// validRelPath rejects absolute names, backslashes and any ".." segment.
func validRelPath(p string) bool {
	if p == "" || strings.Contains(p, `\`) || strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(path.Clean(p), "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
