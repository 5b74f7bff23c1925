package packager

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leafac/caxa/internal/descriptor"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 10
)

// defaultIdentifier returns "<output name>/<random token>". The token makes
// every build extract into a fresh cache directory.
func defaultIdentifier(output string) (string, error) {
	name := filepath.Base(output)
	for _, ext := range []string{".exe", ".app", ".sh"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	if name == "" || name == "." || name == ".." {
		name = "caxa"
	}
	tok, err := randomToken(tokenLength)
	if err != nil {
		return "", err
	}
	id := name + "/" + tok
	if err := descriptor.ValidateIdentifier(id); err != nil {
		return "", errorf(ErrInvalidInput, "cannot derive an identifier from %q: %v", output, err)
	}
	return id, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating identifier: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}
