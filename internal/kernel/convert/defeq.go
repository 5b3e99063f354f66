package convert

import (
	"kernelchk/internal/expr"
)

// isDefEq is the memoized entry point used by every site in this package
// that needs definitional equality; the underlying cache is symmetric, with
// the reverse pair checked as a fallback before recomputing.
func (c *Checker) isDefEq(s *shard, a, b expr.Expr) (bool, error) {
	if a.Equal(b) {
		return true, nil
	}
	key := eqKey{a: a, b: b}
	if v, ok := s.eqCache[key]; ok {
		return v, nil
	}
	if v, ok := s.eqCache[eqKey{a: b, b: a}]; ok {
		return v, nil
	}
	result, err := c.isDefEqCore(s, a, b)
	if err != nil {
		return false, err
	}
	s.eqCache[key] = result
	return result, nil
}

// isDefEqCore runs the full equality algorithm: proof irrelevance, a
// whnf-core structural comparison, and — if that doesn't resolve things —
// lazy delta-unfolding.
func (c *Checker) isDefEqCore(s *shard, a, b expr.Expr) (bool, error) {
	if irrel, err := c.tryProofIrrel(s, a, b); err != nil {
		return false, err
	} else if irrel {
		return true, nil
	}

	wa, err := c.whnfCore(s, a)
	if err != nil {
		return false, err
	}
	wb, err := c.whnfCore(s, b)
	if err != nil {
		return false, err
	}

	if wa.Equal(wb) {
		return true, nil
	}

	if eq, handled, err := c.quickStructuralEq(s, wa, wb); err != nil {
		return false, err
	} else if handled {
		return eq, nil
	}

	return c.lazyDeltaDefEq(s, wa, wb)
}

// tryProofIrrel applies proof irrelevance: two proofs of the same
// proposition are equal regardless of their values. A term is a proof when
// its type's type whnfs to Sort 0.
func (c *Checker) tryProofIrrel(s *shard, a, b expr.Expr) (bool, error) {
	ta, ok, err := c.propositionType(s, a)
	if err != nil || !ok {
		return false, nil
	}
	tb, ok, err := c.propositionType(s, b)
	if err != nil || !ok {
		return false, nil
	}
	return c.isDefEq(s, ta, tb)
}

// propositionType infers e's type and reports whether that type is a
// proposition (lives in Sort 0).
func (c *Checker) propositionType(s *shard, e expr.Expr) (expr.Expr, bool, error) {
	ty, err := c.inferTypeCore(s, e, true)
	if err != nil {
		return expr.Expr{}, false, err
	}
	tyTy, err := c.inferTypeCore(s, ty, true)
	if err != nil {
		return expr.Expr{}, false, err
	}
	w, err := c.whnf(s, tyTy)
	if err != nil {
		return expr.Expr{}, false, err
	}
	if w.Kind() != expr.KindSort || !w.SortLevel().IsZero() {
		return expr.Expr{}, false, nil
	}
	return ty, true, nil
}

// quickStructuralEq resolves the shapes whnf-core alone can distinguish
// conclusively without delta: Sort/Sort, Pi/Pi, Lambda/Lambda, and the
// Lambda/non-Lambda eta-expansion case. Anything else (in particular a
// stuck application or bare constant/local head) is left unhandled so the
// caller can fall through to lazy delta.
func (c *Checker) quickStructuralEq(s *shard, wa, wb expr.Expr) (bool, bool, error) {
	switch {
	case wa.Kind() == expr.KindSort && wb.Kind() == expr.KindSort:
		return wa.SortLevel().EqByAntisymm(wb.SortLevel()), true, nil
	case wa.Kind() == expr.KindPi && wb.Kind() == expr.KindPi:
		return c.isDefEqBinder(s, wa, wb, true)
	case wa.Kind() == expr.KindLambda && wb.Kind() == expr.KindLambda:
		return c.isDefEqBinder(s, wa, wb, false)
	case wa.Kind() == expr.KindLambda && wb.Kind() != expr.KindLambda:
		eq, err := c.isDefEqEta(s, wa, wb)
		return eq, true, err
	case wb.Kind() == expr.KindLambda && wa.Kind() != expr.KindLambda:
		eq, err := c.isDefEqEta(s, wb, wa)
		return eq, true, err
	default:
		return false, false, nil
	}
}

// isDefEqBinder compares two Pi or two Lambda nodes: domains must be
// def-eq, then both bodies are opened under one freshly shared local and
// compared.
func (c *Checker) isDefEqBinder(s *shard, a, b expr.Expr, _ bool) (bool, bool, error) {
	da := a.BinderDomain()
	db := b.BinderDomain()
	domEq, err := c.isDefEq(s, da.Ty, db.Ty)
	if err != nil {
		return false, true, err
	}
	if !domEq {
		return false, true, nil
	}
	local := da.AsLocal()
	ba := expr.Instantiate(a.BinderBody(), []expr.Expr{local})
	bb := expr.Instantiate(b.BinderBody(), []expr.Expr{local})
	eq, err := c.isDefEq(s, ba, bb)
	return eq, true, err
}

// isDefEqEta compares a real Lambda against a non-Lambda term by
// eta-expanding the latter as λ(dom), (other dom.Var0) and recursing.
func (c *Checker) isDefEqEta(s *shard, lam, other expr.Expr) (bool, error) {
	dom := lam.BinderDomain()
	expanded := expr.MkLambda(dom, expr.MkApp(expr.Shift(other, 1), expr.MkVar(0)))
	return c.isDefEq(s, lam, expanded)
}

// headEqual compares two whnf-core'd, non-application heads: Sort, Const
// (names and levels), Local (serials), and Var (indices). Anything else is
// left unhandled.
func (c *Checker) headEqual(fa, fb expr.Expr) (bool, bool) {
	switch {
	case fa.Kind() == expr.KindSort && fb.Kind() == expr.KindSort:
		return fa.SortLevel().EqByAntisymm(fb.SortLevel()), true
	case fa.Kind() == expr.KindConst && fb.Kind() == expr.KindConst:
		na, la := fa.ConstParts()
		nb, lb := fb.ConstParts()
		if !na.Equal(nb) || len(la) != len(lb) {
			return false, true
		}
		for i := range la {
			if !la[i].EqByAntisymm(lb[i]) {
				return false, true
			}
		}
		return true, true
	case fa.Kind() == expr.KindLocal && fb.Kind() == expr.KindLocal:
		return fa.Serial() == fb.Serial(), true
	case fa.Kind() == expr.KindVar && fb.Kind() == expr.KindVar:
		return fa.VarIdx() == fb.VarIdx(), true
	default:
		return false, false
	}
}

// headSpineEq decomposes a and b into head+argument spines and requires
// the heads to match (via headEqual) and every argument pair to be def-eq.
func (c *Checker) headSpineEq(s *shard, a, b expr.Expr) (bool, bool, error) {
	fa, argsA := expr.UnfoldAppsRev(a)
	fb, argsB := expr.UnfoldAppsRev(b)

	headEq, handled := c.headEqual(fa, fb)
	if !handled || !headEq {
		return false, true, nil
	}
	if len(argsA) != len(argsB) {
		return false, true, nil
	}
	for i := range argsA {
		eq, err := c.isDefEq(s, argsA[i], argsB[i])
		if err != nil {
			return false, true, err
		}
		if !eq {
			return false, true, nil
		}
	}
	return true, true, nil
}

// lazyDeltaDefEq is the last resort: repeatedly unfold the
// higher-height delta-unfoldable side, re-checking the quick structural
// cases after each step, until neither side can be unfolded further — at
// which point a final head/spine comparison is definitive. When both sides
// share a head constant at equal height, a spine comparison is tried before
// unfolding (the failure cache records a losing attempt so it isn't retried
// after further rounds produce the same stuck shape).
func (c *Checker) lazyDeltaDefEq(s *shard, a, b expr.Expr) (bool, error) {
	for {
		aUnfoldable, aHeight := c.deltaHeight(a)
		bUnfoldable, bHeight := c.deltaHeight(b)

		if !aUnfoldable && !bUnfoldable {
			eq, _, err := c.headSpineEq(s, a, b)
			if err != nil {
				return false, err
			}
			return eq, nil
		}

		if aUnfoldable && bUnfoldable && sameDeltaHead(a, b) && aHeight == bHeight {
			key := eqKey{a: a, b: b}
			if !s.failureCache[key] {
				eq, handled, err := c.headSpineEq(s, a, b)
				if err != nil {
					return false, err
				}
				if handled && eq {
					return true, nil
				}
				s.failureCache[key] = true
			}
		}

		var next expr.Expr
		var err error
		if aUnfoldable && (!bUnfoldable || aHeight >= bHeight) {
			next, err = c.deltaUnfoldOnce(s, a)
			if err != nil {
				return false, err
			}
			a, err = c.whnfCore(s, next)
		} else {
			next, err = c.deltaUnfoldOnce(s, b)
			if err != nil {
				return false, err
			}
			b, err = c.whnfCore(s, next)
		}
		if err != nil {
			return false, err
		}

		if a.Equal(b) {
			return true, nil
		}
		if eq, handled, err := c.quickStructuralEq(s, a, b); err != nil {
			return false, err
		} else if handled {
			return eq, nil
		}
	}
}

func sameDeltaHead(a, b expr.Expr) bool {
	fa, _ := expr.UnfoldAppsRev(a)
	fb, _ := expr.UnfoldAppsRev(b)
	if fa.Kind() != expr.KindConst || fb.Kind() != expr.KindConst {
		return false
	}
	na, _ := fa.ConstParts()
	nb, _ := fb.ConstParts()
	return na.Equal(nb)
}

// deltaUnfoldOnce unfolds exactly one delta step at e's head, honoring the
// id_delta force-one-further-step marker the same way whnf's tryDelta does.
func (c *Checker) deltaUnfoldOnce(s *shard, e expr.Expr) (expr.Expr, error) {
	unfolded, ok, err := c.tryDelta(s, e)
	if err != nil {
		return expr.Expr{}, err
	}
	if !ok {
		return e, nil
	}
	return unfolded, nil
}
