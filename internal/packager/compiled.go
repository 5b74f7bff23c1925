package packager

import (
	"context"
	"fmt"
	"io"

	"github.com/leafac/caxa/internal/archive"
	"github.com/leafac/caxa/internal/descriptor"
)

// buildCompiled writes stub, separator, archive and trailer. The trailer
// records the archive region and its checksum so the stub does not need to
// search for the separator.
func buildCompiled(ctx context.Context, b *build) error {
	return writeFileAtomic(b.output, 0o755, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		if _, err := cw.Write(b.stub); err != nil {
			return fmt.Errorf("writing stub: %w", err)
		}
		if _, err := cw.Write(descriptor.Separator); err != nil {
			return fmt.Errorf("writing separator: %w", err)
		}

		offset := cw.n
		h := archive.NewHash()
		sum, err := archive.Write(ctx, io.MultiWriter(cw, h), b.buildDir)
		if err != nil {
			return err
		}
		b.summary = sum

		d := b.descriptor()
		d.ArchiveOffset = offset
		d.ArchiveSize = cw.n - offset
		d.Checksum = archive.FormatChecksum(h)
		return descriptor.WriteTrailer(cw, d)
	})
}
