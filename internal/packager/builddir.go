package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// excluder decides which input paths stay out of the build directory.
//
// Patterns are doublestar globs. A pattern matches when it matches either
// the slash path relative to the input or the input-joined path, so both
// "node_modules/**" and "app/*.log" style patterns work.
type excluder struct {
	base     string
	patterns []string
	// skip holds absolute paths that are always left out (the output, when
	// it lives inside the input).
	skip map[string]struct{}
}

func newExcluder(base string, patterns []string, skip ...string) (*excluder, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errorf(ErrInvalidInput, "invalid exclude pattern %q", p)
		}
	}
	e := &excluder{base: base, patterns: patterns, skip: make(map[string]struct{})}
	for _, s := range skip {
		if s != "" {
			e.skip[filepath.Clean(s)] = struct{}{}
		}
	}
	return e, nil
}

func (e *excluder) excluded(abs, rel string) bool {
	if _, ok := e.skip[filepath.Clean(abs)]; ok {
		return true
	}
	slashRel := filepath.ToSlash(rel)
	joined := filepath.ToSlash(filepath.Join(e.base, rel))
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, slashRel); ok {
			return true
		}
		if ok, _ := doublestar.Match(filepath.ToSlash(p), joined); ok {
			return true
		}
	}
	return false
}

type copyJob struct {
	src, dst string
	mode     fs.FileMode
}

// copyTree copies src into dst, which must not exist. Directories and
// symlinks are created in walk order; regular files are copied in parallel.
// It returns the number of files copied.
func copyTree(ctx context.Context, src, dst string, ex *excluder) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent of %s: %w", dst, err)
	}

	var jobs []copyJob
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && ex != nil && ex.excluded(path, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			jobs = append(jobs, copyJob{src: path, dst: target, mode: info.Mode().Perm()})
		}
		// Sockets, devices and pipes are not packaged.
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %s: %w", src, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return copyFile(job.src, job.dst, job.mode)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	// O_CREATE honours the umask; restore the source mode.
	return os.Chmod(dst, mode)
}
