package convert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

func newEnv() *env.Env {
	return env.New(NewChecker)
}

func sortAt(n int) expr.Expr {
	l := level.MkZero()
	for i := 0; i < n; i++ {
		l = level.MkSucc(l)
	}
	return expr.MkSort(l)
}

func TestWhnfBeta(t *testing.T) {
	c := New(newEnv(), false)

	// (λ (x : Sort 1), x) Prop  ~>  Prop
	x := expr.Binding{PPName: name.FromStr("x"), Ty: sortAt(1), Style: expr.Default}
	identity := expr.MkLambda(x, expr.MkVar(0))
	applied := expr.MkApp(identity, expr.MkProp())

	w, err := c.Whnf(applied)
	require.NoError(t, err)
	require.True(t, w.Equal(expr.MkProp()))
}

func TestWhnfZeta(t *testing.T) {
	c := New(newEnv(), false)

	// let x : Sort 1 := Prop in x  ~>  Prop
	b := expr.Binding{PPName: name.FromStr("x"), Ty: sortAt(1), Style: expr.Default}
	letE := expr.MkLet(b, expr.MkProp(), expr.MkVar(0))

	w, err := c.Whnf(letE)
	require.NoError(t, err)
	require.True(t, w.Equal(expr.MkProp()))
}

func TestWhnfDeltaUnfoldsDefinition(t *testing.T) {
	e := newEnv()
	myProp := name.FromStr("myProp")
	require.NoError(t, e.AddDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: myProp, Type: sortAt(1)},
		Value:       expr.MkProp(),
		Hint:        env.ReducibilityHint{Kind: env.HintRegular, Height: 1},
	}))

	c := New(e, false)
	w, err := c.Whnf(expr.MkConst(myProp, nil))
	require.NoError(t, err)
	require.True(t, w.Equal(expr.MkProp()))
}

func TestWhnfOpaqueStaysPut(t *testing.T) {
	e := newEnv()
	myProp := name.FromStr("myOpaque")
	require.NoError(t, e.AddDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: myProp, Type: sortAt(1)},
		Value:       expr.MkProp(),
		Hint:        env.ReducibilityHint{Kind: env.HintOpaque},
	}))

	c := New(e, false)
	ref := expr.MkConst(myProp, nil)
	w, err := c.Whnf(ref)
	require.NoError(t, err)
	require.True(t, w.Equal(ref))
}

func TestInferSort(t *testing.T) {
	c := New(newEnv(), false)
	ty, err := c.Check(sortAt(1), nil)
	require.NoError(t, err)
	require.True(t, ty.Equal(sortAt(2)))
}

func TestInferPiFoldsImax(t *testing.T) {
	c := New(newEnv(), false)

	// Π (x : Sort 1), Prop lives in Sort 2 (imax 2 1 = 2).
	b := expr.Binding{PPName: name.FromStr("x"), Ty: sortAt(1), Style: expr.Default}
	pi := expr.MkPi(b, expr.MkProp())
	ty, err := c.Check(pi, nil)
	require.NoError(t, err)
	require.Equal(t, expr.KindSort, ty.Kind())
	require.True(t, ty.SortLevel().EqByAntisymm(sortAt(2).SortLevel()))
}

func TestCheckRejectsUndeclaredUnivParam(t *testing.T) {
	c := New(newEnv(), false)
	u := level.MkParam(name.FromStr("u"))
	_, err := c.Check(expr.MkSort(u), nil)
	require.Error(t, err)

	_, err = c.Check(expr.MkSort(u), []level.Level{u})
	require.NoError(t, err)
}

func TestDefEqReflexiveAndSymmetric(t *testing.T) {
	c := New(newEnv(), false)
	b := expr.Binding{PPName: name.FromStr("x"), Ty: sortAt(1), Style: expr.Default}
	identity := expr.MkLambda(b, expr.MkVar(0))

	eq, err := c.IsDefEq(identity, identity)
	require.NoError(t, err)
	require.True(t, eq)

	applied := expr.MkApp(identity, expr.MkProp())
	eq, err = c.IsDefEq(applied, expr.MkProp())
	require.NoError(t, err)
	require.True(t, eq)
	eq, err = c.IsDefEq(expr.MkProp(), applied)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestDefEqEtaExpansion(t *testing.T) {
	e := newEnv()
	fName := name.FromStr("f")
	fTy := sortAt(1).MkArrow(sortAt(1))
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: fName, Type: fTy}}))

	c := New(e, false)
	f := expr.MkConst(fName, nil)
	b := expr.Binding{PPName: name.FromStr("x"), Ty: sortAt(1), Style: expr.Default}
	etaExpanded := expr.MkLambda(b, expr.MkApp(f, expr.MkVar(0)))

	eq, err := c.IsDefEq(etaExpanded, f)
	require.NoError(t, err)
	require.True(t, eq)
	eq, err = c.IsDefEq(f, etaExpanded)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestProofIrrelevance(t *testing.T) {
	e := newEnv()
	pName := name.FromStr("P")
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: pName, Type: expr.MkProp()}}))
	p := expr.MkConst(pName, nil)

	h1 := name.FromStr("h1")
	h2 := name.FromStr("h2")
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: h1, Type: p}}))
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: h2, Type: p}}))

	c := New(e, false)
	eq, err := c.IsDefEq(expr.MkConst(h1, nil), expr.MkConst(h2, nil))
	require.NoError(t, err)
	require.True(t, eq)
}

func TestProofIrrelevanceDoesNotEquatePropositions(t *testing.T) {
	e := newEnv()
	for _, n := range []string{"P", "Q"} {
		require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: name.FromStr(n), Type: expr.MkProp()}}))
	}

	c := New(e, false)
	eq, err := c.IsDefEq(expr.MkConst(name.FromStr("P"), nil), expr.MkConst(name.FromStr("Q"), nil))
	require.NoError(t, err)
	require.False(t, eq)
}

func TestLazyDeltaPrefersHigherHeight(t *testing.T) {
	e := newEnv()
	base := name.FromStr("base")
	require.NoError(t, e.AddDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: base, Type: sortAt(1)},
		Value:       expr.MkProp(),
		Hint:        env.ReducibilityHint{Kind: env.HintRegular, Height: 1},
	}))
	alias := name.FromStr("alias")
	require.NoError(t, e.AddDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: alias, Type: sortAt(1)},
		Value:       expr.MkConst(base, nil),
		Hint:        env.ReducibilityHint{Kind: env.HintRegular, Height: 2},
	}))

	c := New(e, false)
	eq, err := c.IsDefEq(expr.MkConst(alias, nil), expr.MkConst(base, nil))
	require.NoError(t, err)
	require.True(t, eq)
	eq, err = c.IsDefEq(expr.MkConst(alias, nil), expr.MkProp())
	require.NoError(t, err)
	require.True(t, eq)
}

func TestUniversePolymorphicIdentity(t *testing.T) {
	e := newEnv()
	u := level.MkParam(name.FromStr("u"))
	sortU := expr.MkSort(u)

	// id.{u} : Π (α : Sort u), α → α := λ α x, x
	alpha := expr.MkLocal(name.FromStr("α"), sortU, expr.Implicit)
	x := expr.MkLocal(name.FromStr("x"), alpha, expr.Default)
	idName := name.FromStr("id")
	idTy := expr.FoldPis(alpha.MkArrow(alpha), []expr.Expr{alpha})
	idVal := expr.FoldLambdas(x, []expr.Expr{alpha, x})
	require.NoError(t, e.AddDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: idName, LParams: []level.Level{u}, Type: idTy},
		Value:       idVal,
		Hint:        env.ReducibilityHint{Kind: env.HintRegular, Height: 1},
	}))

	pName := name.FromStr("P")
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: pName, Type: expr.MkProp()}}))
	hName := name.FromStr("h")
	p := expr.MkConst(pName, nil)
	require.NoError(t, e.AddAxiom(env.AxiomVal{ConstantVal: env.ConstantVal{Name: hName, Type: p}}))

	// id (id h) checks at P and whnfs back to h, instantiated at u := 0.
	idAtZero := expr.MkConst(idName, []level.Level{level.MkZero()})
	h := expr.MkConst(hName, nil)
	inner := expr.FoldApps(idAtZero, []expr.Expr{p, h})
	outer := expr.FoldApps(idAtZero, []expr.Expr{p, inner})

	c := New(e, false)
	ty, err := c.Check(outer, nil)
	require.NoError(t, err)
	eq, err := c.IsDefEq(ty, p)
	require.NoError(t, err)
	require.True(t, eq)

	w, err := c.Whnf(outer)
	require.NoError(t, err)
	require.True(t, w.Equal(h))
}
