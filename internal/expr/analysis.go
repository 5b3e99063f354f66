package expr

import (
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// UniqueConstNames collects every distinct constant name occurring anywhere
// in e. Used only to compute a definition's height: the height of a
// definition is 1 + the max height of every constant its value mentions.
func UniqueConstNames(e Expr) []name.Name {
	seen := map[Expr]bool{}
	names := map[name.Name]bool{}
	var order []name.Name
	var walk func(Expr)
	walk = func(cur Expr) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		switch cur.Kind() {
		case KindApp:
			f, a := cur.AppParts()
			walk(f)
			walk(a)
		case KindLambda, KindPi:
			walk(cur.BinderDomain().Ty)
			walk(cur.BinderBody())
		case KindLet:
			walk(cur.BinderDomain().Ty)
			walk(cur.LetVal())
			walk(cur.BinderBody())
		case KindConst:
			n, _ := cur.ConstParts()
			if !names[n] {
				names[n] = true
				order = append(order, n)
			}
		}
	}
	walk(e)
	return order
}

// UnivParamsSubset reports whether every universe parameter occurring in e
// (inside a Sort or a Const's level list) is a member of declared — the
// check that a declaration's listed universe parameters actually cover
// everything its type mentions.
func UnivParamsSubset(e Expr, declared []level.Level) bool {
	declaredSet := map[level.Level]bool{}
	for _, l := range declared {
		declaredSet[l] = true
	}

	ok := true
	var walk func(Expr)
	walk = func(cur Expr) {
		if !ok {
			return
		}
		switch cur.Kind() {
		case KindApp:
			f, a := cur.AppParts()
			walk(f)
			walk(a)
		case KindLambda, KindPi:
			walk(cur.BinderDomain().Ty)
			walk(cur.BinderBody())
		case KindLet:
			walk(cur.BinderDomain().Ty)
			walk(cur.LetVal())
			walk(cur.BinderBody())
		case KindSort:
			for _, p := range level.UniqueUnivParams(cur.SortLevel()) {
				if !declaredSet[p] {
					ok = false
					return
				}
			}
		case KindConst:
			_, lvls := cur.ConstParts()
			for _, l := range lvls {
				for _, p := range level.UniqueUnivParams(l) {
					if !declaredSet[p] {
						ok = false
						return
					}
				}
			}
		}
	}
	walk(e)
	return ok
}

// Shift increases every free Var's index by delta, leaving bound variables
// (those below the binder depth reached during the walk) untouched. Used
// only to build the wrapped side of an eta-expansion: the non-lambda side
// of a Lam-vs-non-Lam comparison is rewritten to
// Lam(dom, App(Shift(e, 1), Var(0))).
func Shift(e Expr, delta int) Expr {
	return shiftCore(e, delta, 0)
}

func shiftCore(e Expr, delta, cutoff int) Expr {
	if int(e.VarBound()) <= cutoff {
		return e
	}
	switch e.Kind() {
	case KindVar:
		idx := int(e.node.varIdx)
		if idx >= cutoff {
			return MkVar(uint64(idx + delta))
		}
		return e
	case KindApp:
		f, a := e.AppParts()
		return MkApp(shiftCore(f, delta, cutoff), shiftCore(a, delta, cutoff))
	case KindLambda:
		dom := e.BinderDomain()
		return MkLambda(dom.swapTy(shiftCore(dom.Ty, delta, cutoff)), shiftCore(e.BinderBody(), delta, cutoff+1))
	case KindPi:
		dom := e.BinderDomain()
		return MkPi(dom.swapTy(shiftCore(dom.Ty, delta, cutoff)), shiftCore(e.BinderBody(), delta, cutoff+1))
	case KindLet:
		dom := e.BinderDomain()
		return MkLet(dom.swapTy(shiftCore(dom.Ty, delta, cutoff)), shiftCore(e.LetVal(), delta, cutoff), shiftCore(e.BinderBody(), delta, cutoff+1))
	default:
		return e
	}
}
