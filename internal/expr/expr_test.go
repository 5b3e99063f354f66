package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

func TestVarBoundAndHasLocals(t *testing.T) {
	v := MkVar(2)
	require.EqualValues(t, 3, v.VarBound())
	require.False(t, v.HasLocals())

	lc := MkLocal(name.FromStr("x"), MkProp(), Default)
	require.True(t, lc.HasLocals())
	require.EqualValues(t, 0, lc.VarBound())
}

func TestAbstractInstantiateRoundTrip(t *testing.T) {
	lc := MkLocal(name.FromStr("x"), MkProp(), Default)
	body := MkApp(lc, lc)

	abstracted := Abstract(body, []Expr{lc})
	require.False(t, abstracted.HasLocals())

	back := Instantiate(abstracted, []Expr{lc})
	require.True(t, back.Equal(body))
}

func TestAbstractNoOpWithoutMatchingLocal(t *testing.T) {
	a := MkLocal(name.FromStr("a"), MkProp(), Default)
	b := MkLocal(name.FromStr("b"), MkProp(), Default)
	e := MkApp(a, a)

	require.True(t, Abstract(e, []Expr{b}).Equal(e))
}

func TestInstantiateNoOpOnClosedTerm(t *testing.T) {
	closed := MkSort(level.MkZero())
	require.True(t, Instantiate(closed, []Expr{closed}).Equal(closed))
}

func TestInterningSharesHandles(t *testing.T) {
	a := MkApp(MkVar(0), MkVar(1))
	b := MkApp(MkVar(0), MkVar(1))
	require.True(t, a.Equal(b))
}

func TestFoldUnfoldApps(t *testing.T) {
	head := MkConst(name.FromStr("f"), nil)
	x := MkVar(0)
	y := MkVar(1)
	applied := FoldApps(head, []Expr{x, y})

	gotHead, args := UnfoldAppsRev(applied)
	require.True(t, gotHead.Equal(head))
	require.Len(t, args, 2)
	require.True(t, args[0].Equal(x))
	require.True(t, args[1].Equal(y))
}

func TestApplyPiAndFoldPis(t *testing.T) {
	alpha := MkLocal(name.FromStr("a"), MkSort(level.MkParam(name.FromStr("u"))), Implicit)
	body := alpha
	pi := ApplyPi(body, alpha)

	require.Equal(t, KindPi, pi.Kind())
	require.False(t, pi.HasLocals())
	require.True(t, FoldPis(body, []Expr{alpha}).Equal(pi))
}

func TestUnfoldPisOpensEachBinder(t *testing.T) {
	u := level.MkParam(name.FromStr("u"))
	dom := MkSort(u)
	pi := MkPi(Binding{PPName: name.FromStr("a"), Ty: dom, Style: Default}, MkVar(0))

	codomain, locals := UnfoldPis(pi)
	require.Len(t, locals, 1)
	require.True(t, codomain.Equal(locals[0]))
}

func TestUniqueConstNames(t *testing.T) {
	f := MkConst(name.FromStr("f"), nil)
	g := MkConst(name.FromStr("g"), nil)
	e := MkApp(f, MkApp(g, f))

	names := UniqueConstNames(e)
	require.Len(t, names, 2)
}

func TestUnivParamsSubset(t *testing.T) {
	u := level.MkParam(name.FromStr("u"))
	v := level.MkParam(name.FromStr("v"))
	sortExpr := MkSort(u)

	require.True(t, UnivParamsSubset(sortExpr, []level.Level{u, v}))
	require.False(t, UnivParamsSubset(sortExpr, []level.Level{v}))
}

func TestShiftLeavesClosedTermsUnchanged(t *testing.T) {
	closed := MkSort(level.MkZero())
	require.True(t, Shift(closed, 3).Equal(closed))
}

func TestShiftIncrementsFreeVar(t *testing.T) {
	v := MkVar(0)
	shifted := Shift(v, 1)
	require.True(t, shifted.Equal(MkVar(1)))
}

func TestInstantiateUnivsNoOpOnIdentitySubst(t *testing.T) {
	u := level.MkParam(name.FromStr("u"))
	e := MkSort(u)
	subst := []level.Subst{{Param: u, Repl: u}}
	require.True(t, InstantiateUnivs(e, subst).Equal(e))
}

func TestInstantiateUnivsSubstitutes(t *testing.T) {
	u := level.MkParam(name.FromStr("u"))
	e := MkSort(u)
	subst := []level.Subst{{Param: u, Repl: level.MkZero()}}
	got := InstantiateUnivs(e, subst)
	require.True(t, got.Equal(MkSort(level.MkZero())))
}
