package convert

import (
	"math"

	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/name"
)

// Whnf reduces e to weak-head normal form under c's environment, binding a
// fresh per-goroutine shard for the call.
func (c *Checker) Whnf(e expr.Expr) (expr.Expr, error) {
	s := c.shard()
	return c.whnf(s, e)
}

// whnf is whnf-core (beta, zeta, iota-quot, iota-rec) interleaved with delta
// unfolding: compute a whnf-core head, try to delta-unfold it, and loop
// while delta fires.
func (c *Checker) whnf(s *shard, e expr.Expr) (expr.Expr, error) {
	if cached, ok := s.whnfCache[e]; ok {
		return cached, nil
	}
	r, err := c.whnfUncached(s, e)
	if err != nil {
		return expr.Expr{}, err
	}
	s.whnfCache[e] = r
	return r, nil
}

func (c *Checker) whnfUncached(s *shard, e expr.Expr) (expr.Expr, error) {
	cur := e
	for {
		core, err := c.whnfCore(s, cur)
		if err != nil {
			return expr.Expr{}, err
		}
		unfolded, did, err := c.tryDelta(s, core)
		if err != nil {
			return expr.Expr{}, err
		}
		if !did {
			return core, nil
		}
		cur = unfolded
	}
}

// whnfCore applies beta, zeta, and the iota rules (quotient and recursor
// computation) repeatedly, never unfolding a plain definition.
func (c *Checker) whnfCore(s *shard, e expr.Expr) (expr.Expr, error) {
	if cached, ok := s.whnfCoreCache[e]; ok {
		return cached, nil
	}
	r, err := c.whnfCoreUncached(s, e)
	if err != nil {
		return expr.Expr{}, err
	}
	s.whnfCoreCache[e] = r
	return r, nil
}

func (c *Checker) whnfCoreUncached(s *shard, e expr.Expr) (expr.Expr, error) {
	switch e.Kind() {
	case expr.KindLet:
		instd := expr.Instantiate(e.BinderBody(), []expr.Expr{e.LetVal()})
		return c.whnfCore(s, instd)

	case expr.KindApp:
		fn, apps := expr.UnfoldAppsRev(e)
		coreFn, err := c.whnfCore(s, fn)
		if err != nil {
			return expr.Expr{}, err
		}

		if coreFn.Kind() == expr.KindLambda {
			cur := coreFn
			i := 0
			for cur.Kind() == expr.KindLambda && i < len(apps) {
				cur = expr.Instantiate(cur.BinderBody(), []expr.Expr{apps[i]})
				i++
			}
			rebuilt := expr.FoldApps(cur, apps[i:])
			return c.whnfCore(s, rebuilt)
		}

		reduced, ok, err := c.tryIota(s, coreFn, apps)
		if err != nil {
			return expr.Expr{}, err
		}
		if ok {
			return c.whnfCore(s, reduced)
		}

		return expr.FoldApps(coreFn, apps), nil

	default:
		return e, nil
	}
}

// tryIota attempts the quotient and recursor computation rules registered
// under hd's name, forcing every major-premise argument to whnf first (the
// rules are strict in those positions) and, for a K-marked recursor whose
// major is stuck, falling back to the subsingleton (kappa) reduction.
func (c *Checker) tryIota(s *shard, hd expr.Expr, apps []expr.Expr) (expr.Expr, bool, error) {
	if hd.Kind() != expr.KindConst {
		return expr.Expr{}, false, nil
	}
	n, _ := hd.ConstParts()

	majors, hasRule := c.env.Reduction().GetMajorPremises(n)
	if !hasRule {
		return expr.Expr{}, false, nil
	}

	reducedArgs := append([]expr.Expr(nil), apps...)
	for _, idx := range majors {
		if idx >= len(reducedArgs) {
			return expr.Expr{}, false, nil
		}
		w, err := c.whnf(s, reducedArgs[idx])
		if err != nil {
			return expr.Expr{}, false, err
		}
		reducedArgs[idx] = w
	}

	if reduced, constraints, ok := c.env.Reduction().ApplyToMap(expr.FoldApps(hd, reducedArgs), s.reductionCache); ok {
		satisfied, err := c.checkConstraints(s, constraints)
		if err != nil {
			return expr.Expr{}, false, err
		}
		if satisfied {
			return reduced, true, nil
		}
		return expr.Expr{}, false, nil
	}

	return c.tryKappa(s, n, hd, reducedArgs)
}

// tryKappa fabricates a nullary constructor application of a K-marked
// recursor's sole zero-field constructor, and — if the major's type whnfs
// to the expected inductive family and the fabricated application has a
// def-eq type — substitutes it for the stuck major and retries the
// ordinary iota rule. This is what makes eq.rec reduce on a stuck proof of
// eq.refl's type.
func (c *Checker) tryKappa(s *shard, n name.Name, hd expr.Expr, args []expr.Expr) (expr.Expr, bool, error) {
	ci, ok := c.env.Get(n)
	if !ok || ci.Kind != env.KindRecursor || !ci.Recursor.IsK || len(ci.Recursor.Rules) == 0 || len(ci.Recursor.All) == 0 {
		return expr.Expr{}, false, nil
	}
	majorIdx := ci.Recursor.MajorIdx()
	if majorIdx >= len(args) {
		return expr.Expr{}, false, nil
	}
	nparams := ci.Recursor.NParams

	majorTy, err := c.inferTypeCore(s, args[majorIdx], true)
	if err != nil {
		return expr.Expr{}, false, err
	}
	appTy, err := c.whnf(s, majorTy)
	if err != nil {
		return expr.Expr{}, false, err
	}
	tyHd, tyArgs := expr.UnfoldAppsRev(appTy)
	if tyHd.Kind() != expr.KindConst {
		return expr.Expr{}, false, nil
	}
	tyName, tyLevels := tyHd.ConstParts()
	if !tyName.Equal(ci.Recursor.All[0]) || nparams > len(tyArgs) {
		return expr.Expr{}, false, nil
	}

	rule := ci.Recursor.Rules[0]
	fabricated := expr.FoldApps(expr.MkConst(rule.Constructor, tyLevels), tyArgs[:nparams])

	fabTy, err := c.inferTypeCore(s, fabricated, true)
	if err != nil {
		return expr.Expr{}, false, err
	}
	eq, err := c.isDefEq(s, appTy, fabTy)
	if err != nil {
		return expr.Expr{}, false, err
	}
	if !eq {
		return expr.Expr{}, false, nil
	}

	substituted := append([]expr.Expr(nil), args...)
	substituted[majorIdx] = fabricated
	reduced, constraints, ok := c.env.Reduction().ApplyToMap(expr.FoldApps(hd, substituted), s.reductionCache)
	if !ok {
		return expr.Expr{}, false, nil
	}
	satisfied, err := c.checkConstraints(s, constraints)
	if err != nil {
		return expr.Expr{}, false, err
	}
	if !satisfied {
		return expr.Expr{}, false, nil
	}
	return reduced, true, nil
}

func (c *Checker) checkConstraints(s *shard, constraints []env.ExprPair) (bool, error) {
	for _, p := range constraints {
		eq, err := c.isDefEq(s, p.A, p.B)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

// tryDelta attempts a single definition-unfolding step at e's head,
// returning the unfolded term and true if e's head is a non-opaque
// definition. The id_delta transparency marker is honored by running
// whnf-core once more over the unfolded value alone before refolding the
// arguments back on.
func (c *Checker) tryDelta(s *shard, e expr.Expr) (expr.Expr, bool, error) {
	hd, apps := expr.UnfoldAppsRev(e)
	if hd.Kind() != expr.KindConst {
		return expr.Expr{}, false, nil
	}
	n, lvls := hd.ConstParts()
	ci, ok := c.env.Get(n)
	if !ok || ci.Kind != env.KindDefinition {
		return expr.Expr{}, false, nil
	}
	if ci.Definition.Hint.Kind == env.HintOpaque {
		return expr.Expr{}, false, nil
	}

	cv := ci.GetConstantVal()
	substs := instantiateLparamSubsts(cv.LParams, lvls)
	val := expr.InstantiateUnivs(ci.Definition.Value, substs)

	if ci.Definition.ForceDelta {
		forced, err := c.whnfCore(s, val)
		if err != nil {
			return expr.Expr{}, false, err
		}
		val = forced
	}

	return expr.FoldApps(val, apps), true, nil
}

// deltaHeight reports whether e's head is delta-unfoldable and, if so, the
// height lazy-delta's tie-break should compare it by. An abbreviation hint
// is always preferred over a regular definition regardless of height.
func (c *Checker) deltaHeight(e expr.Expr) (bool, int) {
	hd, _ := expr.UnfoldAppsRev(e)
	if hd.Kind() != expr.KindConst {
		return false, 0
	}
	n, _ := hd.ConstParts()
	ci, ok := c.env.Get(n)
	if !ok || ci.Kind != env.KindDefinition {
		return false, 0
	}
	switch ci.Definition.Hint.Kind {
	case env.HintOpaque:
		return false, 0
	case env.HintAbbreviation:
		return true, math.MaxInt32
	default:
		return true, ci.Definition.Hint.Height
	}
}
