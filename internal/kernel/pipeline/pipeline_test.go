package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/convert"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/kernel/inductive"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

func newEnv() *env.Env { return env.New(convert.NewChecker) }

func lvl(n int) level.Level {
	l := level.MkZero()
	for i := 0; i < n; i++ {
		l = level.MkSucc(l)
	}
	return l
}

func sortAt(n int) expr.Expr { return expr.MkSort(lvl(n)) }

var (
	natName  = name.FromStr("nat")
	zeroName = natName.ExtendStr("zero")
	succName = natName.ExtendStr("succ")
	addName  = name.FromStr("add")
)

// natProgram is a small end-to-end declaration stream: nat with zero and
// succ, then add by recursion on its second argument.
func natProgram() []Declaration {
	nat := expr.MkConst(natName, nil)
	succ := expr.MkConst(succName, nil)

	natDecl := Declaration{
		Kind: DeclInductive,
		Name: natName,
		Type: sortAt(1),
		Intros: []Intro{
			{Name: zeroName, Type: nat},
			{Name: succName, Type: nat.MkArrow(nat)},
		},
		Index: 0,
	}

	// add := λ m n, nat.rec.{1} (λ _, nat) m (λ k ih, succ ih) n
	recConst := expr.MkConst(inductive.RecName(natName), []level.Level{lvl(1)})
	motive := expr.MkLambda(expr.Binding{PPName: name.Anonymous, Ty: nat, Style: expr.Default}, nat)
	k := expr.MkLocal(name.FromStr("k"), nat, expr.Default)
	ih := expr.MkLocal(name.FromStr("ih"), nat, expr.Default)
	succCase := expr.FoldLambdas(expr.MkApp(succ, ih), []expr.Expr{k, ih})
	m := expr.MkLocal(name.FromStr("m"), nat, expr.Default)
	n := expr.MkLocal(name.FromStr("n"), nat, expr.Default)
	addVal := expr.FoldLambdas(
		expr.FoldApps(recConst, []expr.Expr{motive, m, succCase, n}),
		[]expr.Expr{m, n})

	addDecl := Declaration{
		Kind:  DeclDefinition,
		Name:  addName,
		Type:  nat.MkArrow(nat.MkArrow(nat)),
		Value: addVal,
		Index: 1,
	}

	return []Declaration{natDecl, addDecl}
}

func TestNatAddComputes(t *testing.T) {
	e := newEnv()
	for _, d := range natProgram() {
		require.NoError(t, AddDeclaration(e, d))
	}

	zero := expr.MkConst(zeroName, nil)
	succ := expr.MkConst(succName, nil)
	one := expr.MkApp(succ, zero)
	two := expr.MkApp(succ, one)

	c := convert.New(e, false)
	sum := expr.FoldApps(expr.MkConst(addName, nil), []expr.Expr{one, one})

	w, err := c.Whnf(sum)
	require.NoError(t, err)
	hd, _ := expr.UnfoldAppsRev(w)
	hdName, _ := hd.ConstParts()
	require.True(t, hdName.Equal(succName))

	eq, err := c.IsDefEq(sum, two)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestDefinitionHeightIsStrictlyAboveDependencies(t *testing.T) {
	e := newEnv()
	decls := natProgram()
	for _, d := range decls {
		require.NoError(t, AddDeclaration(e, d))
	}

	nat := expr.MkConst(natName, nil)
	double := Declaration{
		Kind: DeclDefinition,
		Name: name.FromStr("double"),
		Type: nat.MkArrow(nat),
		Value: func() expr.Expr {
			m := expr.MkLocal(name.FromStr("m"), nat, expr.Default)
			body := expr.FoldApps(expr.MkConst(addName, nil), []expr.Expr{m, m})
			return expr.FoldLambdas(body, []expr.Expr{m})
		}(),
		Index: 2,
	}
	require.NoError(t, AddDeclaration(e, double))

	addHint, ok := e.GetHint(addName)
	require.True(t, ok)
	doubleHint, ok := e.GetHint(name.FromStr("double"))
	require.True(t, ok)
	require.Greater(t, doubleHint.Height, addHint.Height)
}

func TestQuotLiftAndIndCompute(t *testing.T) {
	e := newEnv()
	require.NoError(t, AddDeclaration(e, Declaration{Kind: DeclQuot, Name: QuotName}))
	require.True(t, e.QuotInitialized())

	prop := expr.MkProp()
	lA := expr.MkLocal(name.FromStr("A"), sortAt(1), expr.Implicit)
	lR := expr.MkLocal(name.FromStr("R"), lA.MkArrow(lA.MkArrow(prop)), expr.Default)
	lB := expr.MkLocal(name.FromStr("B"), sortAt(1), expr.Implicit)
	lF := expr.MkLocal(name.FromStr("f"), lA.MkArrow(lB), expr.Default)
	lh := expr.MkLocal(name.FromStr("h"), prop, expr.Default)
	la := expr.MkLocal(name.FromStr("a"), lA, expr.Default)

	mk := expr.FoldApps(expr.MkConst(QuotMkName, []level.Level{lvl(1)}), []expr.Expr{lA, lR, la})

	c := convert.New(e, false)

	lift := expr.FoldApps(expr.MkConst(QuotLiftName, []level.Level{lvl(1), lvl(1)}),
		[]expr.Expr{lA, lR, lB, lF, lh, mk})
	w, err := c.Whnf(lift)
	require.NoError(t, err)
	require.True(t, w.Equal(expr.MkApp(lF, la)))

	lB2 := expr.MkLocal(name.FromStr("B"), prop, expr.Implicit)
	ind := expr.FoldApps(expr.MkConst(QuotIndName, []level.Level{lvl(1)}),
		[]expr.Expr{lA, lR, lB2, lh, mk})
	w, err = c.Whnf(ind)
	require.NoError(t, err)
	require.True(t, w.Equal(expr.MkApp(lh, la)))
}

// TestEqRecComputesOnStuckProof is the κ-reduction scenario: eq.rec
// reduces even when the major premise is a stuck variable, because eq is a
// subsingleton in Prop.
func TestEqRecComputesOnStuckProof(t *testing.T) {
	e := newEnv()
	u := level.MkParam(name.FromStr("u"))
	sortU := expr.MkSort(u)
	eqName := name.FromStr("eq")

	alpha := expr.MkLocal(name.FromStr("α"), sortU, expr.Implicit)
	a := expr.MkLocal(name.FromStr("a"), alpha, expr.Default)
	b := expr.MkLocal(name.FromStr("b"), alpha, expr.Default)
	eqTy := expr.FoldPis(expr.MkProp(), []expr.Expr{alpha, a, b})
	eqApp := expr.FoldApps(expr.MkConst(eqName, []level.Level{u}), []expr.Expr{alpha, a, a})
	reflTy := expr.FoldPis(eqApp, []expr.Expr{alpha, a})

	require.NoError(t, AddDeclaration(e, Declaration{
		Kind:      DeclInductive,
		Name:      eqName,
		Type:      eqTy,
		LParams:   []level.Level{u},
		NumParams: 2,
		Intros:    []Intro{{Name: eqName.ExtendStr("refl"), Type: reflTy}},
	}))

	recCI, ok := e.Get(inductive.RecName(eqName))
	require.True(t, ok)
	require.True(t, recCI.Recursor.IsK)

	// Concrete instance at α := P (P : Sort 1), with a stuck proof h : eq P x x.
	pName := name.FromStr("P")
	require.NoError(t, AddDeclaration(e, Declaration{Kind: DeclAxiom, Name: pName, Type: sortAt(1), Index: 1}))
	p := expr.MkConst(pName, nil)
	x := expr.MkLocal(name.FromStr("x"), p, expr.Default)

	motiveTy := p.MkArrow(expr.MkProp())
	motive := expr.MkLocal(name.FromStr("C"), motiveTy, expr.Implicit)
	minor := expr.MkLocal(name.FromStr("m"), expr.MkApp(motive, x), expr.Default)
	hTy := expr.FoldApps(expr.MkConst(eqName, []level.Level{lvl(1)}), []expr.Expr{p, x, x})
	h := expr.MkLocal(name.FromStr("h"), hTy, expr.Default)

	// eq.rec.{0 1} P x C m x h whnfs to m even though h is stuck.
	recApp := expr.FoldApps(expr.MkConst(inductive.RecName(eqName), []level.Level{lvl(0), lvl(1)}),
		[]expr.Expr{p, x, motive, minor, x, h})

	c := convert.New(e, false)
	w, err := c.Whnf(recApp)
	require.NoError(t, err)
	require.True(t, w.Equal(minor))
}

func TestParallelRunMatchesSerial(t *testing.T) {
	serialEnv := newEnv()
	nSerial, err := New(serialEnv, 1).Run(natProgram())
	require.NoError(t, err)

	parallelEnv := newEnv()
	nParallel, err := New(parallelEnv, 4).Run(natProgram())
	require.NoError(t, err)

	require.Equal(t, nSerial, nParallel)
	require.Equal(t, serialEnv.NumDeclars(), parallelEnv.NumDeclars())
}

func TestRunAbortsOnIllTypedDefinition(t *testing.T) {
	decls := natProgram()
	nat := expr.MkConst(natName, nil)
	decls = append(decls, Declaration{
		Kind:  DeclDefinition,
		Name:  name.FromStr("bogus"),
		Type:  nat,
		Value: sortAt(1),
		Index: 2,
	})

	_, err := New(newEnv(), 1).Run(decls)
	require.Error(t, err)

	_, err = New(newEnv(), 4).Run(decls)
	require.Error(t, err)
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	e := newEnv()
	d := Declaration{Kind: DeclAxiom, Name: name.FromStr("A"), Type: sortAt(1)}
	require.NoError(t, AddDeclaration(e, d))
	err := AddDeclaration(e, d)
	require.Error(t, err)
	code, ok := kerr.Code(err)
	require.True(t, ok)
	require.Equal(t, kerr.CodeDuplicateDecl, code)
}

func TestSecondFreshEnvironmentSeesSameOutcome(t *testing.T) {
	run := func() (int, error) { return New(newEnv(), 1).Run(natProgram()) }
	n1, err1 := run()
	n2, err2 := run()
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, n1, n2)
}
