package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders a KernelError the way the CLI surfaces a fatal failure:
// a bold code/message header followed by the declaration's location, with
// colors dropped automatically on a non-terminal output (color.NoColor is
// set by the fatih/color package itself based on the output stream).
type Reporter struct {
	bold color.Attribute
}

func NewReporter() *Reporter {
	return &Reporter{bold: color.Bold}
}

// Format renders err as a multi-line diagnostic. Non-KernelErrors fall
// back to their plain Error() text.
func (r *Reporter) Format(err error) string {
	ke, ok := asKernelError(err)
	if !ok {
		return err.Error()
	}

	headerColor := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	var b strings.Builder
	b.WriteString(headerColor.Sprintf("error[%s]", ke.Code))
	b.WriteString(": ")
	b.WriteString(ke.Message)
	b.WriteString("\n")

	if ke.Loc.File != "" {
		fmt.Fprintf(&b, "  %s %s:%d\n", dim.Sprint("-->"), ke.Loc.File, ke.Loc.Line)
	}
	if ke.Loc.DeclName != "" {
		fmt.Fprintf(&b, "  %s declaration #%d (%s)\n", dim.Sprint("in"), ke.Loc.DeclIndex, ke.Loc.DeclName)
	}
	return b.String()
}

func asKernelError(err error) (*KernelError, bool) {
	type causer interface{ Unwrap() error }
	for err != nil {
		if ke, ok := err.(*KernelError); ok {
			return ke, true
		}
		u, ok := err.(causer)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
