//go:build windows

package launch

import "strings"

// Windows environment keys are case-insensitive (Path vs PATH).
func envKeyEqual(a, b string) bool { return strings.EqualFold(a, b) }
