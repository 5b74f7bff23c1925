package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrNoTrailer         = errors.New("no package trailer")
	ErrInvalidDescriptor = errors.New("invalid package descriptor")
)

// Descriptor is the record embedded at the end of every compiled package.
//
// It is written once at build time and read-only afterwards. Field names are
// part of the file format and must not change.
type Descriptor struct {
	// Identifier is a relative slash path (usually "<name>/<token>") used as
	// the cache sub-path. It must uniquely determine the archive contents.
	Identifier string `json:"identifier"`

	// Command is the argv to exec. Elements may contain {{caxa}}
	// placeholders.
	Command []string `json:"command"`

	// UncompressionMessage is printed to stderr before the first extraction.
	UncompressionMessage string `json:"uncompressionMessage,omitempty"`

	// ArchiveOffset and ArchiveSize locate the archive within the file.
	// A zero ArchiveSize means the reader must search for Separator.
	ArchiveOffset int64 `json:"archiveOffset,omitempty"`
	ArchiveSize   int64 `json:"archiveSize,omitempty"`

	// Checksum is "<algorithm>:<hex>" over the archive bytes. Optional.
	Checksum string `json:"checksum,omitempty"`

	// UserScoped adds a username segment to the cache root.
	UserScoped bool `json:"userScoped,omitempty"`
}

// Validate reports whether d can be used to extract and launch a package.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDescriptor)
	}
	if err := ValidateIdentifier(d.Identifier); err != nil {
		return err
	}
	if len(d.Command) == 0 || d.Command[0] == "" {
		return fmt.Errorf("%w: empty command", ErrInvalidDescriptor)
	}
	if d.ArchiveOffset < 0 || d.ArchiveSize < 0 {
		return fmt.Errorf("%w: negative archive region", ErrInvalidDescriptor)
	}
	return nil
}

// ValidateIdentifier checks that id is a relative slash path that stays
// inside the cache directory it is joined to.
func ValidateIdentifier(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty identifier", ErrInvalidDescriptor)
	case strings.Contains(id, `\`), path.IsAbs(id), strings.Contains(id, ":"):
		return fmt.Errorf("%w: identifier %q must be a relative slash path", ErrInvalidDescriptor, id)
	}
	clean := path.Clean(id)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: identifier %q escapes the cache directory", ErrInvalidDescriptor, id)
	}
	return nil
}

// Decode parses a trailer line (without its leading newline).
func Decode(line []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(line, &d); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
