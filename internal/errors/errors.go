package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Location pins an error to where it was produced: the export file and
// line the declaration came from, plus the declaration's own index in the
// file (errors never carry a checker source position beyond this, since
// the kernel has no surface syntax of its own).
type Location struct {
	File      string
	Line      int
	DeclIndex int
	DeclName  string
}

// KernelError is the fatal-error type every package in this module
// returns. Checking never recovers locally: the first KernelError raised
// while admitting a declaration aborts that declaration and, at the CLI
// boundary, the whole run.
type KernelError struct {
	Code    string
	Message string
	Loc     Location
	cause   error
}

func (e *KernelError) Error() string {
	if e.Loc.DeclName != "" {
		return fmt.Sprintf("[%s] %s (declaring %s)", e.Code, e.Message, e.Loc.DeclName)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *KernelError) Unwrap() error { return e.cause }

// New builds a KernelError with a stack trace captured at the call site
// via pkg/errors.
func New(code, message string) error {
	return pkgerrors.WithStack(&KernelError{Code: code, Message: message})
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithLocation attaches file/line/declaration context to an existing
// KernelError, returning non-KernelErrors unchanged (callers only enrich
// errors that originated in this package).
func WithLocation(err error, loc Location) error {
	var ke *KernelError
	if pkgerrors.As(err, &ke) {
		cloned := *ke
		cloned.Loc = loc
		return pkgerrors.WithStack(&cloned)
	}
	return err
}

// Code extracts the KernelError code from err, if any.
func Code(err error) (string, bool) {
	var ke *KernelError
	if pkgerrors.As(err, &ke) {
		return ke.Code, true
	}
	return "", false
}
