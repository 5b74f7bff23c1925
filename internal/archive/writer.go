// Package archive produces and unpacks the gzip-compressed tar payload that
// is appended to a stub.
//
// The compression pairing is a contract between the packager and the stub:
// both sides go through this package, so they cannot diverge within one
// release.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Summary describes what Write put into an archive.
type Summary struct {
	Files    int
	Dirs     int
	Symlinks int
}

// Write streams the tree rooted at root into w as a gzip-compressed tar.
//
// Entry names are slash-separated paths relative to root, without a leading
// "./". Entries are written in sorted order so identical trees produce
// identical archives. Ownership is not recorded.
func Write(ctx context.Context, w io.Writer, root string) (*Summary, error) {
	paths, err := collect(root)
	if err != nil {
		return nil, err
	}

	zw, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	sum := &Summary{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeEntry(tw, root, p, sum); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	return sum, nil
}

// collect returns every path below root (root itself excluded), sorted.
// Filesystem ordering is not relied upon.
func collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func writeEntry(tw *tar.Writer, root, path string, sum *Summary) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("relativizing %q: %w", path, err)
	}
	name := filepath.ToSlash(rel)

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return fmt.Errorf("reading symlink %q: %w", path, err)
		}
	}

	hdr, err := tar.FileInfoHeader(info, filepath.ToSlash(link))
	if err != nil {
		return fmt.Errorf("tar header for %q: %w", name, err)
	}
	hdr.Name = name
	// Reading a file updates its atime; only the mtime is archived.
	hdr.AccessTime, hdr.ChangeTime = time.Time{}, time.Time{}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.Format = tar.FormatPAX

	switch {
	case info.IsDir():
		hdr.Name = strings.TrimSuffix(name, "/") + "/"
		sum.Dirs++
		return writeHeader(tw, hdr)
	case link != "":
		sum.Symlinks++
		return writeHeader(tw, hdr)
	case info.Mode().IsRegular():
		if err := writeHeader(tw, hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %q: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %q: %w", name, err)
		}
		sum.Files++
		return nil
	default:
		return fmt.Errorf("%q has unsupported file type %v", name, info.Mode().Type())
	}
}

func writeHeader(tw *tar.Writer, hdr *tar.Header) error {
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header %q: %w", hdr.Name, err)
	}
	return nil
}
