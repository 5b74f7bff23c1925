package packager

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrOutputExists        = errors.New("output already exists")
	ErrPlatformMismatch    = errors.New("output format not supported on this platform")
	ErrUnsupportedPlatform = errors.New("no stub available for platform")
	ErrPrepareFailed       = errors.New("prepare step failed")
	ErrRuntimeNotFound     = errors.New("runtime not found")
)

// Error wraps packaging failures with one of the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
