package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Separator is written between the stub and the archive. It is built at run
// time so the literal byte sequence never appears in a compiled stub.
var Separator = []byte("\n" + strings.Repeat("CAXA", 3) + "\n")

const (
	scanChunk = 64 * 1024

	// maxTrailerSize bounds the backward scan on files without a trailer.
	maxTrailerSize = 1 << 20
)

// WriteTrailer appends "\n" + JSON(d) to w.
func WriteTrailer(w io.Writer, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, '\n')
	buf = append(buf, b...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// ReadTrailer finds the last line of the size-byte file r and decodes it.
//
// It returns the descriptor and the offset of the newline that starts the
// trailer, which is also where the archive region ends.
func ReadTrailer(r io.ReaderAt, size int64) (*Descriptor, int64, error) {
	buf := make([]byte, scanChunk)
	var tail []byte
	for end := size; end > 0; {
		start := end - scanChunk
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := r.ReadAt(chunk, start); err != nil && err != io.EOF {
			return nil, 0, fmt.Errorf("read trailer: %w", err)
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			line := make([]byte, 0, len(chunk)-i-1+len(tail))
			line = append(line, chunk[i+1:]...)
			line = append(line, tail...)
			d, err := Decode(line)
			if err != nil {
				return nil, 0, err
			}
			return d, start + int64(i), nil
		}
		tail = append(append([]byte{}, chunk...), tail...)
		if len(tail) > maxTrailerSize {
			break
		}
		end = start
	}
	return nil, 0, fmt.Errorf("%w (did you append an archive and a trailer to the stub?)", ErrNoTrailer)
}

// Locate returns the archive region of a package whose trailer starts at
// trailerOffset.
//
// Descriptors that record the archive offset and size are used directly.
// Otherwise the region runs from just after the first Separator to the
// trailer.
func Locate(r io.ReaderAt, d *Descriptor, trailerOffset int64) (*io.SectionReader, error) {
	if d.ArchiveSize > 0 {
		if d.ArchiveOffset+d.ArchiveSize > trailerOffset {
			return nil, fmt.Errorf("%w: archive region [%d, %d) overlaps trailer at %d",
				ErrInvalidDescriptor, d.ArchiveOffset, d.ArchiveOffset+d.ArchiveSize, trailerOffset)
		}
		return io.NewSectionReader(r, d.ArchiveOffset, d.ArchiveSize), nil
	}

	idx, err := indexSeparator(r, trailerOffset)
	if err != nil {
		return nil, err
	}
	start := idx + int64(len(Separator))
	return io.NewSectionReader(r, start, trailerOffset-start), nil
}

// indexSeparator scans [0, limit) forward for Separator. Chunks overlap by
// len(Separator)-1 bytes so a separator spanning two chunks is still found.
func indexSeparator(r io.ReaderAt, limit int64) (int64, error) {
	overlap := int64(len(Separator) - 1)
	buf := make([]byte, scanChunk+overlap)
	for start := int64(0); start < limit; start += scanChunk {
		end := start + int64(len(buf))
		if end > limit {
			end = limit
		}
		chunk := buf[:end-start]
		if _, err := r.ReadAt(chunk, start); err != nil && err != io.EOF {
			return 0, fmt.Errorf("search archive separator: %w", err)
		}
		if i := bytes.Index(chunk, Separator); i >= 0 {
			return start + int64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: archive separator not found (did you append the separator after the stub?)", ErrInvalidDescriptor)
}
