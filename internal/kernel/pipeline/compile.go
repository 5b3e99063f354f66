package pipeline

import (
	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/convert"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/kernel/inductive"
	"kernelchk/internal/name"
)

// idDeltaName marks the delta-reduced-but-transparent definition: its
// unfolding is forced one further whnf-core step before comparison.
var idDeltaName = name.FromStr("id_delta")

// Compiled is a declaration whose record and reduction rules have been
// installed; what remains is checking its type (and, for definitions, its
// value) — work that is independent across declarations and safe to fan
// out.
type Compiled struct {
	decl Declaration
	// needsCheck is false for quotient and inductive declarations, whose
	// compilation is already fully checking.
	needsCheck bool
}

// Compile builds d's constant record, installs it (and any reduction
// rules) into e, and returns the residual checking obligation. Must run
// serially, in stream order: every name d references has to be present
// before any later declaration compiles.
func Compile(e *env.Env, d Declaration) (*Compiled, error) {
	switch d.Kind {
	case DeclAxiom:
		v := env.AxiomVal{
			ConstantVal: env.ConstantVal{Name: d.Name, LParams: d.LParams, Type: d.Type},
		}
		if err := e.Insert(env.FromAxiom(v)); err != nil {
			return nil, locate(err, d)
		}
		return &Compiled{decl: d, needsCheck: true}, nil

	case DeclDefinition:
		v := env.DefinitionVal{
			ConstantVal: env.ConstantVal{Name: d.Name, LParams: d.LParams, Type: d.Type},
			Value:       d.Value,
			Hint:        env.ReducibilityHint{Kind: env.HintRegular, Height: definitionHeight(e, d.Value)},
			ForceDelta:  d.Name.Equal(idDeltaName),
		}
		if err := e.Insert(env.FromDefinition(v)); err != nil {
			return nil, locate(err, d)
		}
		return &Compiled{decl: d, needsCheck: true}, nil

	case DeclQuot:
		if err := installQuot(e); err != nil {
			return nil, locate(err, d)
		}
		return &Compiled{decl: d}, nil

	case DeclInductive:
		famCtors := make([]inductive.Constructor, len(d.Intros))
		for i, in := range d.Intros {
			famCtors[i] = inductive.Constructor{Name: in.Name, Type: in.Type}
		}
		declar := inductive.Declar{
			LParams:   d.LParams,
			NumParams: d.NumParams,
			Families: []inductive.Family{
				{Name: d.Name, Type: d.Type, Constructors: famCtors},
			},
		}
		if err := inductive.Add(e, declar); err != nil {
			return nil, locate(err, d)
		}
		return &Compiled{decl: d}, nil
	}
	return nil, locate(kerr.Newf(kerr.CodeParseMalformedLine, "unknown declaration kind %d", d.Kind), d)
}

// definitionHeight is 1 + the max height of every constant the value
// mentions; axioms and anything without a regular hint contribute 0.
func definitionHeight(e *env.Env, value expr.Expr) int {
	max := 0
	for _, n := range expr.UniqueConstNames(value) {
		hint, ok := e.GetHint(n)
		if !ok || hint.Kind != env.HintRegular {
			continue
		}
		if hint.Height > max {
			max = hint.Height
		}
	}
	return max + 1
}

// CheckOnly discharges the deferred obligations of a compiled declaration
// against a fresh checker: the declared type must check to a sort under
// distinct universe parameters, and a definition's value must check to a
// type def-eq to the declared one.
func (cm *Compiled) CheckOnly(e *env.Env) error {
	if !cm.needsCheck {
		return nil
	}
	d := cm.decl
	tc := convert.New(e, false)

	if err := env.EnsureNoDupeLParams(d.LParams); err != nil {
		return locate(err, d)
	}
	if d.Type.HasLocals() {
		return locate(kerr.Newf(kerr.CodeTypeHasLocals, "type of %q contains free locals", d.Name), d)
	}
	sort, err := tc.Check(d.Type, d.LParams)
	if err != nil {
		return locate(err, d)
	}
	if _, err := tc.EnsureSort(sort); err != nil {
		return locate(err, d)
	}

	if d.Kind == DeclDefinition {
		valTy, err := tc.Check(d.Value, d.LParams)
		if err != nil {
			return locate(err, d)
		}
		eq, err := tc.IsDefEq(valTy, d.Type)
		if err != nil {
			return locate(err, d)
		}
		if !eq {
			return locate(kerr.Newf(kerr.CodeTypeMismatch, "value of %q does not match its declared type", d.Name), d)
		}
	}
	return nil
}

// AddDeclaration is the serial entry point: compile, insert, and check one
// declaration before the next is looked at.
func AddDeclaration(e *env.Env, d Declaration) error {
	cm, err := Compile(e, d)
	if err != nil {
		return err
	}
	return cm.CheckOnly(e)
}

func locate(err error, d Declaration) error {
	return kerr.WithLocation(err, kerr.Location{
		File:      d.File,
		Line:      d.Line,
		DeclIndex: d.Index,
		DeclName:  d.Name.String(),
	})
}
