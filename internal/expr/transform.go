package expr

import "kernelchk/internal/level"

// offsetCache memoizes abstract/instantiate results keyed by (expr, binder
// offset): the same subexpression maps to different results at different
// binder depths, so a single expr->expr map would be unsound.
type offsetCache struct {
	byOffset []map[Expr]Expr
}

func newOffsetCache() *offsetCache {
	return &offsetCache{byOffset: make([]map[Expr]Expr, 0, 8)}
}

func (c *offsetCache) get(e Expr, offset int) (Expr, bool) {
	if offset >= len(c.byOffset) || c.byOffset[offset] == nil {
		return Expr{}, false
	}
	v, ok := c.byOffset[offset][e]
	return v, ok
}

func (c *offsetCache) put(e, result Expr, offset int) {
	for len(c.byOffset) <= offset {
		c.byOffset = append(c.byOffset, nil)
	}
	if c.byOffset[offset] == nil {
		c.byOffset[offset] = make(map[Expr]Expr, 32)
	}
	c.byOffset[offset][e] = result
}

// Abstract replaces every Local in e whose serial matches one of locals
// with Var(i+offset), i being locals' position and offset the number of
// binders traversed so far. A no-op when e has no Local anywhere.
func Abstract(e Expr, locals []Expr) Expr {
	if !e.HasLocals() {
		return e
	}
	cache := newOffsetCache()
	return abstractCore(e, 0, locals, cache)
}

func abstractCore(e Expr, offset int, locals []Expr, cache *offsetCache) Expr {
	if !e.HasLocals() {
		return e
	}
	if cached, ok := cache.get(e, offset); ok {
		return cached
	}
	if e.Kind() == KindLocal {
		serial := e.Serial()
		for i, lc := range locals {
			if lc.Serial() == serial {
				return MkVar(uint64(i + offset))
			}
		}
		return e
	}

	var result Expr
	switch e.Kind() {
	case KindApp:
		f, a := e.AppParts()
		result = MkApp(abstractCore(f, offset, locals, cache), abstractCore(a, offset, locals, cache))
	case KindLambda:
		dom := e.BinderDomain()
		newDomTy := abstractCore(dom.Ty, offset, locals, cache)
		newBody := abstractCore(e.BinderBody(), offset+1, locals, cache)
		result = MkLambda(dom.swapTy(newDomTy), newBody)
	case KindPi:
		dom := e.BinderDomain()
		newDomTy := abstractCore(dom.Ty, offset, locals, cache)
		newBody := abstractCore(e.BinderBody(), offset+1, locals, cache)
		result = MkPi(dom.swapTy(newDomTy), newBody)
	case KindLet:
		dom := e.BinderDomain()
		newDomTy := abstractCore(dom.Ty, offset, locals, cache)
		newVal := abstractCore(e.LetVal(), offset, locals, cache)
		newBody := abstractCore(e.BinderBody(), offset+1, locals, cache)
		result = MkLet(dom.swapTy(newDomTy), newVal, newBody)
	default:
		panic("expr: abstractCore: illegal node with has_locals set")
	}
	cache.put(e, result, offset)
	return result
}

// Instantiate replaces Var(i) at binder depth d with es[i-d] when
// d <= i < d+len(es); other variables are left untouched.
func Instantiate(e Expr, es []Expr) Expr {
	cache := newOffsetCache()
	return instantiateCore(e, 0, es, cache)
}

func instantiateCore(e Expr, offset int, es []Expr, cache *offsetCache) Expr {
	if int(e.VarBound()) <= offset {
		return e
	}
	if cached, ok := cache.get(e, offset); ok {
		return cached
	}
	if e.Kind() == KindVar {
		idx := int(e.node.varIdx)
		if offset <= idx && idx < offset+len(es) {
			return es[idx-offset]
		}
		return e
	}

	var result Expr
	switch e.Kind() {
	case KindApp:
		f, a := e.AppParts()
		result = MkApp(instantiateCore(f, offset, es, cache), instantiateCore(a, offset, es, cache))
	case KindLambda:
		dom := e.BinderDomain()
		newDomTy := instantiateCore(dom.Ty, offset, es, cache)
		newBody := instantiateCore(e.BinderBody(), offset+1, es, cache)
		result = MkLambda(dom.swapTy(newDomTy), newBody)
	case KindPi:
		dom := e.BinderDomain()
		newDomTy := instantiateCore(dom.Ty, offset, es, cache)
		newBody := instantiateCore(e.BinderBody(), offset+1, es, cache)
		result = MkPi(dom.swapTy(newDomTy), newBody)
	case KindLet:
		dom := e.BinderDomain()
		newDomTy := instantiateCore(dom.Ty, offset, es, cache)
		newVal := instantiateCore(e.LetVal(), offset, es, cache)
		newBody := instantiateCore(e.BinderBody(), offset+1, es, cache)
		result = MkLet(dom.swapTy(newDomTy), newVal, newBody)
	default:
		panic("expr: instantiateCore: illegal node with var_bound set")
	}
	cache.put(e, result, offset)
	return result
}

// InstantiateUnivs substitutes universe parameters inside every Sort and
// Const level list; a no-op when substs has no actual (param, replacement)
// difference.
func InstantiateUnivs(e Expr, substs []level.Subst) Expr {
	nontrivial := false
	for _, s := range substs {
		if !s.Param.Equal(s.Repl) {
			nontrivial = true
			break
		}
	}
	if !nontrivial {
		return e
	}

	switch e.Kind() {
	case KindApp:
		f, a := e.AppParts()
		return MkApp(InstantiateUnivs(f, substs), InstantiateUnivs(a, substs))
	case KindLambda:
		dom := e.BinderDomain()
		return MkLambda(dom.swapTy(InstantiateUnivs(dom.Ty, substs)), InstantiateUnivs(e.BinderBody(), substs))
	case KindPi:
		dom := e.BinderDomain()
		return MkPi(dom.swapTy(InstantiateUnivs(dom.Ty, substs)), InstantiateUnivs(e.BinderBody(), substs))
	case KindLet:
		dom := e.BinderDomain()
		return MkLet(dom.swapTy(InstantiateUnivs(dom.Ty, substs)), InstantiateUnivs(e.LetVal(), substs), InstantiateUnivs(e.BinderBody(), substs))
	case KindLocal:
		b := e.LcBinding()
		newTy := InstantiateUnivs(b.Ty, substs)
		return b.swapTy(newTy).AsLocal()
	case KindVar:
		return e
	case KindSort:
		return MkSort(e.SortLevel().InstantiateLvl(substs))
	case KindConst:
		n, lvls := e.ConstParts()
		newLvls := make([]level.Level, len(lvls))
		for i, l := range lvls {
			newLvls[i] = l.InstantiateLvl(substs)
		}
		return MkConst(n, newLvls)
	}
	panic("expr: InstantiateUnivs: unreachable kind")
}

// FoldApps builds App(...App(App(e, apps[0]), apps[1])..., apps[n-1]).
func FoldApps(e Expr, apps []Expr) Expr {
	acc := e
	for _, a := range apps {
		acc = MkApp(acc, a)
	}
	return acc
}

// UnfoldApps spine-decomposes a left-nested application chain, returning
// the head and its arguments last-first (args[0] is the outermost
// argument, closest to the root).
func UnfoldApps(e Expr) (Expr, []Expr) {
	var acc []Expr
	fn := e
	for fn.Kind() == KindApp {
		f, a := fn.AppParts()
		acc = append(acc, a)
		fn = f
	}
	return fn, acc
}

// UnfoldAppsRev is UnfoldApps with the argument list reversed to
// left-to-right (args[0] is the innermost argument, closest to the head).
func UnfoldAppsRev(e Expr) (Expr, []Expr) {
	fn, acc := UnfoldApps(e)
	for i, j := 0, len(acc)-1; i < j; i, j = i+1, j-1 {
		acc[i], acc[j] = acc[j], acc[i]
	}
	return fn, acc
}

// ApplyPi builds Π(domain), Abstract(e, [domain]); domain must be a Local.
func ApplyPi(e, domain Expr) Expr {
	if !domain.IsLocal() {
		panic("expr: ApplyPi: domain is not a Local")
	}
	abstracted := Abstract(e, []Expr{domain})
	return MkPi(domain.LcBinding(), abstracted)
}

// FoldPis wraps e in nested Pis over doms, innermost (doms[len-1]) first.
func FoldPis(e Expr, doms []Expr) Expr {
	acc := e
	for i := len(doms) - 1; i >= 0; i-- {
		acc = ApplyPi(acc, doms[i])
	}
	return acc
}

// UnfoldPis repeatedly opens a Pi spine with fresh Locals, returning the
// final codomain and the Locals introduced, outermost first.
func UnfoldPis(e Expr) (Expr, []Expr) {
	var binders []Expr
	cur := e
	for cur.Kind() == KindPi {
		dom := cur.BinderDomain()
		local := dom.AsLocal()
		cur = Instantiate(cur.BinderBody(), []Expr{local})
		binders = append(binders, local)
	}
	return cur, binders
}

// ApplyLambda builds λ(domain), Abstract(e, [domain]); domain must be a Local.
func ApplyLambda(e, domain Expr) Expr {
	if !domain.IsLocal() {
		panic("expr: ApplyLambda: domain is not a Local")
	}
	abstracted := Abstract(e, []Expr{domain})
	return MkLambda(domain.LcBinding(), abstracted)
}

// FoldLambdas wraps e in nested Lambdas over doms, innermost (doms[len-1]) first.
func FoldLambdas(e Expr, doms []Expr) Expr {
	acc := e
	for i := len(doms) - 1; i >= 0; i-- {
		acc = ApplyLambda(acc, doms[i])
	}
	return acc
}
