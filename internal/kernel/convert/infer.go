package convert

import (
	"fmt"

	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// checkLevel rejects a level mentioning a parameter name the current
// declaration's lparams list never bound.
func checkLevel(declared []level.Level, l level.Level) error {
	declaredSet := make(map[level.Level]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}
	for _, p := range level.UniqueUnivParams(l) {
		if !declaredSet[p] {
			return kerr.Newf(kerr.CodeUnknownUnivParam, "undeclared universe parameter %s", p.ParamName())
		}
	}
	return nil
}

func (c *Checker) inferTypeCore(s *shard, e expr.Expr, inferOnly bool) (expr.Expr, error) {
	if cached, ok := s.inferCache[e]; ok {
		return cached, nil
	}

	var result expr.Expr
	var err error

	switch e.Kind() {
	case expr.KindSort:
		lvl := e.SortLevel()
		if !inferOnly {
			if cerr := checkLevel(s.lparams, lvl); cerr != nil {
				return expr.Expr{}, cerr
			}
		}
		result = expr.MkSort(level.MkSucc(lvl))
	case expr.KindLocal:
		result = e.LcBinding().Ty
	case expr.KindConst:
		n, lvls := e.ConstParts()
		result, err = c.inferConst(s, n, lvls, inferOnly)
	case expr.KindApp:
		result, err = c.inferApps(s, e, inferOnly)
	case expr.KindLambda:
		result, err = c.inferLambda(s, e, inferOnly)
	case expr.KindPi:
		var u level.Level
		u, err = c.inferPi(s, e)
		if err == nil {
			result = expr.MkSort(u)
		}
	case expr.KindLet:
		dom := e.BinderDomain()
		result, err = c.inferLet(s, dom, e.LetVal(), e.BinderBody(), inferOnly)
	default:
		err = kerr.Newf(kerr.CodeExpectedSort, "infer_type_core: unexpected node kind %v", e.Kind())
	}
	if err != nil {
		return expr.Expr{}, err
	}

	s.inferCache[e] = result
	return result, nil
}

func (c *Checker) inferConst(s *shard, n name.Name, lvls []level.Level, inferOnly bool) (expr.Expr, error) {
	ci, ok := c.env.Get(n)
	if !ok {
		return expr.Expr{}, kerr.Newf(kerr.CodeUnknownUnivParam, "unknown constant %s", n)
	}
	cv := ci.GetConstantVal()
	if len(lvls) != len(cv.LParams) {
		return expr.Expr{}, kerr.Newf(kerr.CodeParamArityMismatch, "constant %s expects %d universe arguments, got %d", cv.Name, len(cv.LParams), len(lvls))
	}
	if !inferOnly {
		if c.safeOnly && ci.IsUnsafe() {
			return expr.Expr{}, kerr.Newf(kerr.CodeTypeMismatch, "cannot check unsafe constant %s in safe-only mode", cv.Name)
		}
		for _, l := range lvls {
			if cerr := checkLevel(s.lparams, l); cerr != nil {
				return expr.Expr{}, cerr
			}
		}
	}
	substs := instantiateLparamSubsts(cv.LParams, lvls)
	return expr.InstantiateUnivs(cv.Type, substs), nil
}

func instantiateLparamSubsts(formal, actual []level.Level) []level.Subst {
	n := len(formal)
	if len(actual) < n {
		n = len(actual)
	}
	substs := make([]level.Subst, n)
	for i := 0; i < n; i++ {
		substs[i] = level.Subst{Param: formal[i], Repl: actual[i]}
	}
	return substs
}

func (c *Checker) inferApps(s *shard, term expr.Expr, inferOnly bool) (expr.Expr, error) {
	fn, apps := expr.UnfoldAppsRev(term)
	acc, err := c.inferTypeCore(s, fn, inferOnly)
	if err != nil {
		return expr.Expr{}, err
	}

	var context []expr.Expr
	for i := 0; i < len(apps); i++ {
		elem := apps[i]
		if acc.Kind() == expr.KindPi {
			dom := acc.BinderDomain()
			if !inferOnly {
				newDomTy := expr.Instantiate(dom.Ty, reversed(context))
				if err := c.checkType(s, elem, newDomTy); err != nil {
					return expr.Expr{}, err
				}
			}
			context = append(context, elem)
			acc = acc.BinderBody()
		} else {
			instd := expr.Instantiate(acc, reversed(context))
			whnfd, werr := c.whnf(s, instd)
			if werr != nil {
				return expr.Expr{}, werr
			}
			if whnfd.Kind() != expr.KindPi {
				return expr.Expr{}, kerr.New(kerr.CodeExpectedPi, "infer_apps: applied term is not a function")
			}
			context = nil
			acc = whnfd
			i--
		}
	}
	return expr.Instantiate(acc, reversed(context)), nil
}

func reversed(es []expr.Expr) []expr.Expr {
	out := make([]expr.Expr, len(es))
	for i, e := range es {
		out[len(es)-1-i] = e
	}
	return out
}

func (c *Checker) inferPi(s *shard, term expr.Expr) (level.Level, error) {
	var locals []expr.Expr
	var universes []level.Level
	cur := term
	for cur.Kind() == expr.KindPi {
		dom := cur.BinderDomain()
		newDomTy := expr.Instantiate(dom.Ty, reversed(locals))
		domUniv, err := c.inferUniverseOfType(s, newDomTy)
		if err != nil {
			return level.Level{}, err
		}
		universes = append(universes, domUniv)
		local := expr.Binding{PPName: dom.PPName, Ty: newDomTy, Style: dom.Style}.AsLocal()
		locals = append(locals, local)
		cur = expr.Instantiate(cur.BinderBody(), []expr.Expr{local})
	}

	instd := cur
	inferred, err := c.inferUniverseOfType(s, instd)
	if err != nil {
		return level.Level{}, err
	}
	for i := len(universes) - 1; i >= 0; i-- {
		inferred = level.MkIMax(universes[i], inferred)
	}
	return inferred, nil
}

func (c *Checker) inferUniverseOfType(s *shard, term expr.Expr) (level.Level, error) {
	inferred, err := c.inferTypeCore(s, term, false)
	if err != nil {
		return level.Level{}, err
	}
	w, err := c.whnf(s, inferred)
	if err != nil {
		return level.Level{}, err
	}
	if w.Kind() != expr.KindSort {
		return level.Level{}, kerr.New(kerr.CodeExpectedSort, "infer_universe_of_type: inferred type does not reduce to a sort")
	}
	return w.SortLevel(), nil
}

func (c *Checker) inferLambda(s *shard, term expr.Expr, inferOnly bool) (expr.Expr, error) {
	var domains []expr.Binding
	var locals []expr.Expr
	cur := term
	for cur.Kind() == expr.KindLambda {
		dom := cur.BinderDomain()
		domains = append(domains, dom)
		newDomTy := expr.Instantiate(dom.Ty, reversed(locals))
		if !inferOnly {
			if _, err := c.inferUniverseOfType(s, newDomTy); err != nil {
				return expr.Expr{}, err
			}
		}
		local := expr.Binding{PPName: dom.PPName, Ty: newDomTy, Style: dom.Style}.AsLocal()
		locals = append(locals, local)
		cur = expr.Instantiate(cur.BinderBody(), []expr.Expr{local})
	}

	instd := cur
	inferred, err := c.inferTypeCore(s, instd, inferOnly)
	if err != nil {
		return expr.Expr{}, err
	}
	abstrd := expr.Abstract(inferred, reversed(locals))
	for i := len(domains) - 1; i >= 0; i-- {
		abstrd = expr.MkPi(domains[i], abstrd)
	}
	return abstrd, nil
}

func (c *Checker) inferLet(s *shard, dom expr.Binding, val, body expr.Expr, inferOnly bool) (expr.Expr, error) {
	if !inferOnly {
		if _, err := c.inferUniverseOfType(s, dom.Ty); err != nil {
			return expr.Expr{}, err
		}
		infd, err := c.inferTypeCore(s, val, inferOnly)
		if err != nil {
			return expr.Expr{}, err
		}
		eq, err := c.isDefEq(s, infd, dom.Ty)
		if err != nil {
			return expr.Expr{}, err
		}
		if !eq {
			return expr.Expr{}, kerr.New(kerr.CodeTypeMismatch, "let-bound value does not match its declared type")
		}
	}
	instdBody := expr.Instantiate(body, []expr.Expr{val})
	return c.inferTypeCore(s, instdBody, inferOnly)
}

// checkType infers e's type and requires it be def-eq to ty.
func (c *Checker) checkType(s *shard, e, ty expr.Expr) error {
	inferred, err := c.inferTypeCore(s, e, false)
	if err != nil {
		return err
	}
	eq, err := c.isDefEq(s, ty, inferred)
	if err != nil {
		return err
	}
	if !eq {
		return kerr.New(kerr.CodeTypeMismatch, "check_type: value does not match expected type")
	}
	return nil
}

func (c *Checker) ensureSort(s *shard, e expr.Expr) (expr.Expr, error) {
	if e.Kind() == expr.KindSort {
		return e, nil
	}
	w, err := c.whnf(s, e)
	if err != nil {
		return expr.Expr{}, err
	}
	if w.Kind() != expr.KindSort {
		return expr.Expr{}, kerr.New(kerr.CodeExpectedSort, fmt.Sprintf("ensure_sort: expected a sort, got kind %v", w.Kind()))
	}
	return w, nil
}

func (c *Checker) ensurePi(s *shard, e expr.Expr) (expr.Expr, error) {
	if e.Kind() == expr.KindPi {
		return e, nil
	}
	w, err := c.whnf(s, e)
	if err != nil {
		return expr.Expr{}, err
	}
	if w.Kind() != expr.KindPi {
		return expr.Expr{}, kerr.New(kerr.CodeExpectedPi, fmt.Sprintf("ensure_pi: expected a pi, got kind %v", w.Kind()))
	}
	return w, nil
}
