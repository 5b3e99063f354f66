package pipeline

import (
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// Quotient package constant names.
var (
	QuotName     = name.FromStr("quot")
	QuotMkName   = QuotName.ExtendStr("mk")
	QuotLiftName = QuotName.ExtendStr("lift")
	QuotIndName  = QuotName.ExtendStr("ind")
)

// installQuot admits the four hardcoded quotient constants and the two
// quotient computation rules, then flips the environment's
// quot_initialized flag:
//
//	quot      : Π {α : Sort u}, (α → α → Prop) → Sort u
//	quot.mk   : Π {α : Sort u} (r : α → α → Prop), α → @quot α r
//	quot.lift : Π {α : Sort u} (r : α → α → Prop) {β : Sort v} (f : α → β),
//	              (∀ a b, r a b → f a = f b) → @quot α r → β
//	quot.ind  : ∀ {α : Sort u} (r : α → α → Prop) {β : @quot α r → Prop},
//	              (∀ a, β (@quot.mk α r a)) → ∀ q, β q
//
// with `quot.lift f h (quot.mk r a) ⟶ f a` and
// `quot.ind h (quot.mk r a) ⟶ h a`.
func installQuot(e *env.Env) error {
	prop := expr.MkSort(level.MkZero())
	paramU := level.MkParam(name.FromStr("u"))
	paramV := level.MkParam(name.FromStr("v"))
	paramsU := []level.Level{paramU}
	paramsUV := []level.Level{paramU, paramV}
	sortU := expr.MkSort(paramU)
	sortV := expr.MkSort(paramV)

	lA := expr.MkLocal(name.FromStr("A"), sortU, expr.Implicit)
	lB := expr.MkLocal(name.FromStr("B"), sortV, expr.Implicit)
	lR := expr.MkLocal(name.FromStr("R"), lA.MkArrow(lA.MkArrow(prop)), expr.Default)
	lF := expr.MkLocal(name.FromStr("f"), lA.MkArrow(lB), expr.Default)
	la := expr.MkLocal(name.FromStr("a"), lA, expr.Default)
	lb := expr.MkLocal(name.FromStr("b"), lA, expr.Default)

	quotTy := expr.FoldPis(sortU, []expr.Expr{lA, lR})

	quotAR := expr.FoldApps(expr.MkConst(QuotName, paramsU), []expr.Expr{lA, lR})
	quotMkTy := expr.FoldPis(lA.MkArrow(quotAR), []expr.Expr{lA, lR})

	eqConst := expr.MkConst(name.FromStr("eq"), []level.Level{paramV})
	app1 := expr.MkApp(lF, la)
	app2 := expr.MkApp(lF, lb)
	eqApp := expr.FoldApps(eqConst, []expr.Expr{lB, app1, app2})
	sound := expr.FoldPis(expr.FoldApps(lR, []expr.Expr{la, lb}).MkArrow(eqApp), []expr.Expr{la, lb})
	liftTy := expr.FoldPis(sound.MkArrow(quotAR.MkArrow(lB)), []expr.Expr{lA, lR, lB, lF})

	lB2 := expr.MkLocal(name.FromStr("B"), quotAR.MkArrow(prop), expr.Implicit)
	lq := expr.MkLocal(name.FromStr("q"), quotAR, expr.Default)
	mkApp := expr.FoldApps(expr.MkConst(QuotMkName, paramsU), []expr.Expr{lA, lR, la})
	indPi1 := expr.FoldPis(expr.MkApp(lB2, mkApp), []expr.Expr{la})
	indPi2 := expr.FoldPis(expr.MkApp(lB2, lq), []expr.Expr{lq})
	indTy := expr.FoldPis(indPi1.MkArrow(indPi2), []expr.Expr{lA, lR, lB2})

	constants := []env.QuotVal{
		{ConstantVal: env.ConstantVal{Name: QuotName, LParams: paramsU, Type: quotTy}},
		{ConstantVal: env.ConstantVal{Name: QuotMkName, LParams: paramsU, Type: quotMkTy}},
		{ConstantVal: env.ConstantVal{Name: QuotIndName, LParams: paramsU, Type: indTy}},
		{ConstantVal: env.ConstantVal{Name: QuotLiftName, LParams: paramsUV, Type: liftTy}},
	}
	for _, qv := range constants {
		if err := e.AddQuot(qv); err != nil {
			return err
		}
	}

	lh := expr.MkLocal(name.FromStr("h"), sound, expr.Default)
	liftLHS := expr.FoldApps(expr.MkConst(QuotLiftName, paramsUV),
		[]expr.Expr{lA, lR, lB, lF, lh, mkApp})
	e.Reduction().AddRule(env.NewNondefRule(
		[]expr.Expr{lA, lR, lB, lF, lh, la}, liftLHS, expr.MkApp(lF, la), nil))

	lhInd := expr.MkLocal(name.FromStr("h"), indPi1, expr.Default)
	indLHS := expr.FoldApps(expr.MkConst(QuotIndName, paramsU),
		[]expr.Expr{lA, lR, lB2, lhInd, mkApp})
	e.Reduction().AddRule(env.NewNondefRule(
		[]expr.Expr{lA, lR, lB2, lhInd, la}, indLHS, expr.MkApp(lhInd, la), nil))

	e.InitQuot()
	return nil
}
