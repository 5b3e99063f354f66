// Package env implements the append-only declaration environment: the
// constant table, the reduction-rule map, and the quot_initialized flag.
package env

import (
	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// ConstantVal is the name/universe-params/type block shared by every
// declaration kind.
type ConstantVal struct {
	Name    name.Name
	LParams []level.Level
	Type    expr.Expr
}

// ReducibilityHint orders how eagerly a definition should be unfolded
// during lazy delta-reduction: Opaque < Regular(height) < Abbreviation,
// Regular values compared numerically by height.
type ReducibilityHint struct {
	Kind   HintKind
	Height int // meaningful only when Kind == HintRegular
}

type HintKind uint8

const (
	HintRegular HintKind = iota
	HintOpaque
	HintAbbreviation
)

// Compare orders two hints: Opaque is least reducible, Abbreviation most,
// Regular hints compare by height.
func (h ReducibilityHint) Compare(other ReducibilityHint) int {
	switch {
	case h.Kind == HintRegular && other.Kind == HintRegular:
		switch {
		case h.Height == other.Height:
			return 0
		case h.Height > other.Height:
			return 1
		default:
			return -1
		}
	case h.Kind == HintOpaque && other.Kind == HintOpaque:
		return 0
	case h.Kind == HintAbbreviation && other.Kind == HintAbbreviation:
		return 0
	case h.Kind == HintOpaque:
		return -1
	case other.Kind == HintOpaque:
		return 1
	case h.Kind == HintAbbreviation:
		return 1
	case other.Kind == HintAbbreviation:
		return -1
	}
	return 0
}

// AxiomVal is an axiom: a constant with a type and no value.
type AxiomVal struct {
	ConstantVal ConstantVal
	IsUnsafe    bool
}

// DefinitionVal is a constant with a value; its Hint's height directs lazy
// delta-reduction order. ForceDelta marks the id_delta-style transparency
// marker: when set, whnf's delta step expands this constant's result one
// further step before the next comparison.
type DefinitionVal struct {
	ConstantVal ConstantVal
	Value       expr.Expr
	Hint        ReducibilityHint
	IsUnsafe    bool
	ForceDelta  bool
}

// TheoremVal is a proved proposition; like DefinitionVal it carries a
// value, but is never delta-unfolded during checking (no Hint).
type TheoremVal struct {
	ConstantVal ConstantVal
	Value       expr.Expr
}

// OpaqueVal is a value-carrying constant that checking never unfolds.
type OpaqueVal struct {
	ConstantVal ConstantVal
	Value       expr.Expr
}

// QuotVal is one of the four hardcoded quotient-package constants.
type QuotVal struct {
	ConstantVal ConstantVal
}

// InductiveVal describes a type former introduced by the inductive
// compiler.
type InductiveVal struct {
	ConstantVal  ConstantVal
	NParams      int
	NIndices     int
	All          []name.Name // the mutual family this type belongs to
	Constructors []name.Name
	IsRec        bool
	IsUnsafe     bool
	IsReflexive  bool
}

// ConstructorVal describes one introduction rule of an inductive family.
type ConstructorVal struct {
	ConstantVal ConstantVal
	Induct      name.Name
	CIdx        int
	NParams     int
	NFields     int
	IsUnsafe    bool
}

// RecursorRule is one constructor's computation rule: rec ... (c args) ⟶ rhs.
type RecursorRule struct {
	Constructor name.Name
	NFields     int
	RHS         expr.Expr
}

// RecursorVal describes the dependent eliminator the inductive compiler
// builds for a family.
type RecursorVal struct {
	ConstantVal ConstantVal
	All         []name.Name
	NParams     int
	NIndices    int
	NMotives    int
	NMinors     int
	Rules       []RecursorRule
	IsK         bool
	IsUnsafe    bool
}

// MajorIdx is the argument position (0-indexed, after params+motives+minors+indices)
// the major premise occupies.
func (r RecursorVal) MajorIdx() int {
	return r.NParams + r.NMotives + r.NMinors + r.NIndices
}

// RuleForConstructor finds the ι-rule belonging to a constructor name.
func (r RecursorVal) RuleForConstructor(c name.Name) (RecursorRule, bool) {
	for _, rule := range r.Rules {
		if rule.Constructor.Equal(c) {
			return rule, true
		}
	}
	return RecursorRule{}, false
}

// ConstantKind discriminates the eight ConstantInfo variants.
type ConstantKind uint8

const (
	KindAxiom ConstantKind = iota
	KindDefinition
	KindTheorem
	KindOpaque
	KindQuot
	KindInductive
	KindConstructor
	KindRecursor
)

// ConstantInfo is the tagged union of everything the environment can bind
// a name to. Dispatch on Kind; each accessor panics if called against the
// wrong tag.
type ConstantInfo struct {
	Kind ConstantKind

	Axiom       AxiomVal
	Definition  DefinitionVal
	Theorem     TheoremVal
	Opaque      OpaqueVal
	Quot        QuotVal
	Inductive   InductiveVal
	Constructor ConstructorVal
	Recursor    RecursorVal
}

func FromAxiom(v AxiomVal) ConstantInfo             { return ConstantInfo{Kind: KindAxiom, Axiom: v} }
func FromDefinition(v DefinitionVal) ConstantInfo   { return ConstantInfo{Kind: KindDefinition, Definition: v} }
func FromTheorem(v TheoremVal) ConstantInfo         { return ConstantInfo{Kind: KindTheorem, Theorem: v} }
func FromOpaque(v OpaqueVal) ConstantInfo           { return ConstantInfo{Kind: KindOpaque, Opaque: v} }
func FromQuot(v QuotVal) ConstantInfo               { return ConstantInfo{Kind: KindQuot, Quot: v} }
func FromInductive(v InductiveVal) ConstantInfo     { return ConstantInfo{Kind: KindInductive, Inductive: v} }
func FromConstructor(v ConstructorVal) ConstantInfo { return ConstantInfo{Kind: KindConstructor, Constructor: v} }
func FromRecursor(v RecursorVal) ConstantInfo       { return ConstantInfo{Kind: KindRecursor, Recursor: v} }

// GetHint returns the reducibility hint of a definition. Panics on any
// other kind — callers check Kind == KindDefinition first.
func (c ConstantInfo) GetHint() ReducibilityHint {
	if c.Kind != KindDefinition {
		panic("env: GetHint called on a non-definition constant")
	}
	return c.Definition.Hint
}

// HasValue reports whether this constant carries a value expression:
// Theorem and Definition always do; Opaque does only when allowOpaque is set.
func (c ConstantInfo) HasValue(allowOpaque bool) bool {
	switch c.Kind {
	case KindTheorem, KindDefinition:
		return true
	case KindOpaque:
		return allowOpaque
	default:
		return false
	}
}

// GetValue returns the constant's value. Panics if HasValue(false) is false.
func (c ConstantInfo) GetValue() expr.Expr {
	switch c.Kind {
	case KindTheorem:
		return c.Theorem.Value
	case KindDefinition:
		return c.Definition.Value
	default:
		panic("env: GetValue called on a constant with no value")
	}
}

// GetConstantVal returns the shared name/lparams/type block of any variant.
func (c ConstantInfo) GetConstantVal() ConstantVal {
	switch c.Kind {
	case KindAxiom:
		return c.Axiom.ConstantVal
	case KindDefinition:
		return c.Definition.ConstantVal
	case KindTheorem:
		return c.Theorem.ConstantVal
	case KindOpaque:
		return c.Opaque.ConstantVal
	case KindQuot:
		return c.Quot.ConstantVal
	case KindInductive:
		return c.Inductive.ConstantVal
	case KindConstructor:
		return c.Constructor.ConstantVal
	case KindRecursor:
		return c.Recursor.ConstantVal
	}
	panic("env: GetConstantVal: unreachable kind")
}

// IsUnsafe reports the constant's safety flag; Theorem, Opaque, and Quot
// are never unsafe.
func (c ConstantInfo) IsUnsafe() bool {
	switch c.Kind {
	case KindAxiom:
		return c.Axiom.IsUnsafe
	case KindDefinition:
		return c.Definition.IsUnsafe
	case KindInductive:
		return c.Inductive.IsUnsafe
	case KindConstructor:
		return c.Constructor.IsUnsafe
	case KindRecursor:
		return c.Recursor.IsUnsafe
	default:
		return false
	}
}
