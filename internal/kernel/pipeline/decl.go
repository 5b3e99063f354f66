// Package pipeline drives declarations from the parser into the
// environment: kind dispatch, compilation (record building and rule
// installation, serial and in input order), and body checking (fanned out
// across workers).
package pipeline

import (
	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// DeclKind discriminates what the parser handed us.
type DeclKind uint8

const (
	DeclAxiom DeclKind = iota
	DeclDefinition
	DeclQuot
	DeclInductive
)

// Intro is one constructor of an inductive declaration as parsed.
type Intro struct {
	Name name.Name
	Type expr.Expr
}

// Declaration is a fully-elaborated declaration from the export stream,
// tagged with enough provenance (file, line, stream index) for a fatal
// error to name its origin.
type Declaration struct {
	Kind    DeclKind
	Name    name.Name
	Type    expr.Expr
	Value   expr.Expr // definitions only
	LParams []level.Level

	// inductive declarations only
	NumParams int
	Intros    []Intro

	Index int
	File  string
	Line  int
}
