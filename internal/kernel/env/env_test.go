package env

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

type fakeChecker struct {
	ty    expr.Expr
	defEq bool
	err   error
}

func (f fakeChecker) Check(expr.Expr, []level.Level) (expr.Expr, error) { return f.ty, f.err }
func (f fakeChecker) IsDefEq(a, b expr.Expr) (bool, error) {
	return f.defEq, nil
}

func TestReducibilityHintOrdering(t *testing.T) {
	opaque := ReducibilityHint{Kind: HintOpaque}
	reg5 := ReducibilityHint{Kind: HintRegular, Height: 5}
	reg9 := ReducibilityHint{Kind: HintRegular, Height: 9}
	abbrev := ReducibilityHint{Kind: HintAbbreviation}

	require.Equal(t, -1, opaque.Compare(reg5))
	require.Equal(t, 1, reg9.Compare(reg5))
	require.Equal(t, -1, reg9.Compare(abbrev))
	require.Equal(t, 0, reg5.Compare(reg5))
}

func TestAddAxiomRejectsDuplicate(t *testing.T) {
	sortExpr := expr.MkSort(level.MkZero())
	checker := fakeChecker{ty: sortExpr}
	e := New(func(*Env) TypeChecker { return checker })

	cv := ConstantVal{Name: name.FromStr("A"), Type: sortExpr}
	require.NoError(t, e.AddAxiom(AxiomVal{ConstantVal: cv}))

	err := e.AddAxiom(AxiomVal{ConstantVal: cv})
	require.Error(t, err)
}

func TestAddDefinitionChecksTypeBeforeInsert(t *testing.T) {
	sortExpr := expr.MkSort(level.MkZero())
	checker := fakeChecker{ty: sortExpr, defEq: false}
	e := New(func(*Env) TypeChecker { return checker })

	cv := ConstantVal{Name: name.FromStr("bad"), Type: sortExpr}
	err := e.AddDefinition(DefinitionVal{ConstantVal: cv, Value: sortExpr})
	require.Error(t, err)

	_, ok := e.Get(cv.Name)
	require.False(t, ok)
}

func TestAddDefinitionSucceedsAndRecordsHint(t *testing.T) {
	sortExpr := expr.MkSort(level.MkZero())
	checker := fakeChecker{ty: sortExpr, defEq: true}
	e := New(func(*Env) TypeChecker { return checker })

	cv := ConstantVal{Name: name.FromStr("good"), Type: sortExpr}
	hint := ReducibilityHint{Kind: HintRegular, Height: 1}
	require.NoError(t, e.AddDefinition(DefinitionVal{ConstantVal: cv, Value: sortExpr, Hint: hint}))

	got, ok := e.GetHint(cv.Name)
	require.True(t, ok)
	require.Equal(t, hint, got)
}

func TestEnsureNoDupeLparams(t *testing.T) {
	u := name.FromStr("u")
	require.NoError(t, ensureNoDupeLparams([]name.Name{u}))
	require.Error(t, ensureNoDupeLparams([]name.Name{u, u}))
}

func TestAddInductiveConstantsAtomic(t *testing.T) {
	e := New(nil)
	sortExpr := expr.MkSort(level.MkZero())
	ty := InductiveVal{ConstantVal: ConstantVal{Name: name.FromStr("Nat"), Type: sortExpr}}
	ctor := ConstructorVal{ConstantVal: ConstantVal{Name: name.FromStr("Nat.zero"), Type: sortExpr}, Induct: ty.ConstantVal.Name}
	rec := RecursorVal{ConstantVal: ConstantVal{Name: name.FromStr("Nat.rec"), Type: sortExpr}}

	require.NoError(t, e.AddInductiveConstants(ty, []ConstructorVal{ctor}, rec))

	_, ok := e.Get(name.FromStr("Nat"))
	require.True(t, ok)
	_, ok = e.Get(name.FromStr("Nat.zero"))
	require.True(t, ok)
	_, ok = e.Get(name.FromStr("Nat.rec"))
	require.True(t, ok)
}

func TestConstantInfoAccessorsPanicOnWrongKind(t *testing.T) {
	ci := FromAxiom(AxiomVal{ConstantVal: ConstantVal{Name: name.FromStr("x")}})
	require.Panics(t, func() { ci.GetHint() })
	require.Panics(t, func() { ci.GetValue() })
}

func TestRecursorMajorIdx(t *testing.T) {
	r := RecursorVal{NParams: 1, NMotives: 1, NMinors: 2, NIndices: 0}
	require.Equal(t, 4, r.MajorIdx())
}
