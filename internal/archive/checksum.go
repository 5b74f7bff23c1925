package archive

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ChecksumAlgorithm prefixes every checksum string this package produces.
const ChecksumAlgorithm = "blake2b-256"

// ErrChecksumMismatch is returned by Verify when the payload does not match.
var ErrChecksumMismatch = errors.New("archive checksum mismatch")

// NewHash returns the hash used for payload checksums.
func NewHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only possible with an oversized key.
		panic(err)
	}
	return h
}

// FormatChecksum renders a finished hash as "<algorithm>:<hex>".
func FormatChecksum(h hash.Hash) string {
	return ChecksumAlgorithm + ":" + hex.EncodeToString(h.Sum(nil))
}

// Checksum hashes everything read from r.
func Checksum(r io.Reader) (string, error) {
	h := NewHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing archive: %w", err)
	}
	return FormatChecksum(h), nil
}

// Verify reads r to the end and compares it against want.
func Verify(r io.Reader, want string) error {
	algo, _, ok := strings.Cut(want, ":")
	if !ok || algo != ChecksumAlgorithm {
		return fmt.Errorf("unsupported checksum %q", want)
	}
	got, err := Checksum(r)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got)
	}
	return nil
}
