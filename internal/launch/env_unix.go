//go:build !windows

package launch

func envKeyEqual(a, b string) bool { return a == b }
