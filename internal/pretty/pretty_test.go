package pretty

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

func TestExprRendersBindersWithStoredNames(t *testing.T) {
	nat := expr.MkConst(name.FromStr("nat"), nil)
	b := expr.Binding{PPName: name.FromStr("x"), Ty: nat, Style: expr.Default}
	lam := expr.MkLambda(b, expr.MkVar(0))
	require.Equal(t, "λ (x : nat), x", Expr(lam))
}

func TestExprRendersSorts(t *testing.T) {
	require.Equal(t, "Prop", Expr(expr.MkProp()))
	one := level.MkSucc(level.MkZero())
	require.Equal(t, "Sort 1", Expr(expr.MkSort(one)))
}

func TestExprRendersApplicationSpine(t *testing.T) {
	f := expr.MkConst(name.FromStr("f"), nil)
	a := expr.MkConst(name.FromStr("a"), nil)
	app := expr.FoldApps(f, []expr.Expr{a, a})
	require.Equal(t, "f a a", Expr(app))
}

func TestExprRendersUniversePolymorphicConst(t *testing.T) {
	u := level.MkParam(name.FromStr("u"))
	c := expr.MkConst(name.FromStr("id"), []level.Level{u})
	require.Equal(t, "id.{u}", Expr(c))
}

func TestConstantRendersDefinitionWithValue(t *testing.T) {
	nat := expr.MkConst(name.FromStr("nat"), nil)
	ci := env.FromDefinition(env.DefinitionVal{
		ConstantVal: env.ConstantVal{Name: name.FromStr("d"), Type: nat},
		Value:       expr.MkConst(name.FromStr("nat").ExtendStr("zero"), nil),
	})
	out := Constant(ci)
	require.Contains(t, out, "def d : nat")
	require.Contains(t, out, "nat.zero")
}

func TestExprRendersAnonymousBinderAsUnderscore(t *testing.T) {
	nat := expr.MkConst(name.FromStr("nat"), nil)
	arrow := nat.MkArrow(nat)
	require.Equal(t, "Π (_ : nat), nat", Expr(arrow))
}
