package env

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

func TestNewRuleComputesMajorsAndArgsSize(t *testing.T) {
	quotName := name.FromStr("quot.lift")
	f := expr.MkLocal(name.FromStr("f"), expr.MkProp(), expr.Default)
	lhs := expr.FoldApps(expr.MkConst(quotName, nil), []expr.Expr{f, expr.MkVar(0)})
	lhsAbstd := expr.Abstract(lhs, []expr.Expr{f})
	rhs := expr.MkVar(0)

	rule := NewRule(lhsAbstd, rhs, nil)
	require.Equal(t, quotName, rule.LHSConstName)
	require.Equal(t, 2, rule.LHSArgsSize)
	// Both lhs arguments are bare Vars after abstraction, so none is a major.
	require.Empty(t, rule.Majors)
}

func TestApplyReductionSubstitutesVars(t *testing.T) {
	c := name.FromStr("f")
	lhs := expr.MkApp(expr.MkConst(c, nil), expr.MkVar(0))
	rhs := expr.MkVar(0)
	rule := NewRule(lhs, rhs, nil)

	arg := expr.MkSort(level.MkZero())
	redex := expr.MkApp(expr.MkConst(c, nil), arg)

	cache := NewReductionCache()
	result, _, ok := rule.ApplyReduction(redex, cache)
	require.True(t, ok)
	require.True(t, result.Equal(arg))
}

func TestApplyReductionFailsOnShapeMismatch(t *testing.T) {
	c := name.FromStr("f")
	lhs := expr.MkApp(expr.MkConst(c, nil), expr.MkVar(0))
	rhs := expr.MkVar(0)
	rule := NewRule(lhs, rhs, nil)

	other := expr.MkConst(name.FromStr("g"), nil)
	cache := NewReductionCache()
	_, _, ok := rule.ApplyReduction(other, cache)
	require.False(t, ok)
}

func TestReductionMapApplyToMapDispatchesByHead(t *testing.T) {
	c := name.FromStr("f")
	lhs := expr.MkApp(expr.MkConst(c, nil), expr.MkVar(0))
	rhs := expr.MkVar(0)
	rule := NewRule(lhs, rhs, nil)

	m := NewReductionMap()
	m.AddRule(rule)

	arg := expr.MkSort(level.MkZero())
	redex := expr.MkApp(expr.MkConst(c, nil), arg)

	cache := NewReductionCache()
	result, _, ok := m.ApplyToMap(redex, cache)
	require.True(t, ok)
	require.True(t, result.Equal(arg))
}

func TestReductionMapApplyToMapNoRuleRegistered(t *testing.T) {
	m := NewReductionMap()
	cache := NewReductionCache()
	redex := expr.MkApp(expr.MkConst(name.FromStr("g"), nil), expr.MkVar(0))
	_, _, ok := m.ApplyToMap(redex, cache)
	require.False(t, ok)
}

func TestApplyHdTlHandlesExtraArguments(t *testing.T) {
	c := name.FromStr("f")
	lhs := expr.MkApp(expr.MkConst(c, nil), expr.MkVar(0))
	rhs := expr.MkVar(0)
	rule := NewRule(lhs, rhs, nil)

	arg := expr.MkSort(level.MkZero())
	extra := expr.MkSort(level.MkZero())

	cache := NewReductionCache()
	result, _, ok := rule.ApplyHdTl(expr.MkConst(c, nil), []expr.Expr{arg, extra}, cache)
	require.True(t, ok)
	require.True(t, result.Equal(expr.MkApp(arg, extra)))
}
