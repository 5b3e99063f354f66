package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProducesCodedError(t *testing.T) {
	err := New(CodeDuplicateDecl, "x already declared")
	code, ok := Code(err)
	require.True(t, ok)
	require.Equal(t, CodeDuplicateDecl, code)
	require.Contains(t, err.Error(), CodeDuplicateDecl)
}

func TestWithLocationAttachesContext(t *testing.T) {
	err := New(CodeTypeMismatch, "bad value")
	located := WithLocation(err, Location{File: "foo.export", Line: 12, DeclIndex: 3, DeclName: "foo"})
	require.Contains(t, located.Error(), "foo")
}

func TestCodeReturnsFalseForPlainError(t *testing.T) {
	_, ok := Code(fmt.Errorf("plain failure"))
	require.False(t, ok)
}

func TestReporterFormatsKernelError(t *testing.T) {
	err := New(CodeNotPositive, "constructor is not strictly positive")
	located := WithLocation(err, Location{File: "nat.export", Line: 4, DeclIndex: 1, DeclName: "Nat"})
	out := NewReporter().Format(located)
	require.Contains(t, out, CodeNotPositive)
	require.Contains(t, out, "nat.export:4")
	require.Contains(t, out, "Nat")
}
