// Package inductive compiles an inductive family into its environment
// footprint: the type former, the introduction rules, the dependent
// recursor, and the recursor's ι (and, for subsingletons, κ) computation
// rules.
//
// Compilation runs against a fork of the environment so that a failure
// partway through — a positivity violation found after the type former was
// already admitted — never leaves a half-declared family behind; only a
// fully compiled family is committed to the real environment, in one
// atomic batch.
package inductive

import (
	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/convert"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// Constructor is one introduction rule as parsed: a name and a closed type
// whose outer Pis restate the family parameters.
type Constructor struct {
	Name name.Name
	Type expr.Expr
}

// Family is a single type former of a (potentially mutual) block.
type Family struct {
	Name         name.Name
	Type         expr.Expr
	Constructors []Constructor
}

// Declar is a full inductive declaration. Families is a list so the data
// model already covers the mutual case; Add currently accepts only
// singleton blocks.
type Declar struct {
	LParams   []level.Level
	NumParams int
	Families  []Family
	IsUnsafe  bool
}

// Add compiles d and, on success, commits the type former, constructors,
// recursor, and ι-rules to target. On any error target is unchanged.
func Add(target *env.Env, d Declar) error {
	if len(d.Families) != 1 {
		return kerr.Newf(kerr.CodeUnsupportedMutual, "mutual inductive blocks are not supported (got %d types)", len(d.Families))
	}

	c := &compiler{
		declar:  d,
		scratch: target.Fork(),
		levels:  append([]level.Level(nil), d.LParams...),
	}
	c.tc = convert.New(c.scratch, false)

	if err := c.run(); err != nil {
		return err
	}

	if err := target.AddInductiveConstants(c.indVals[0], c.ctorVals, c.recVals[0]); err != nil {
		return err
	}
	for _, rule := range c.rules {
		target.Reduction().AddRule(rule)
	}
	return nil
}

// recInfo accumulates, per family, the pieces the recursor type and rules
// are assembled from: the index locals, the motive, the major premise, and
// the minor premises contributed by each constructor.
type recInfo struct {
	motive  expr.Expr
	minors  []expr.Expr
	indices []expr.Expr
	major   expr.Expr
}

type compiler struct {
	declar  Declar
	scratch *env.Env
	tc      *convert.Checker

	levels      []level.Level
	nindices    []int
	resultLevel level.Level
	isNotZero   bool
	useDepElim  bool
	params      []expr.Expr
	indConsts   []expr.Expr
	elimLevel   level.Level
	kTarget     bool
	recInfos    []recInfo

	indVals  []env.InductiveVal
	ctorVals []env.ConstructorVal
	recVals  []env.RecursorVal
	rules    []env.ReductionRule
}

func (c *compiler) run() error {
	if err := c.checkInductiveTypes(); err != nil {
		return err
	}
	if err := c.declareInductiveTypes(); err != nil {
		return err
	}
	if err := c.checkConstructors(); err != nil {
		return err
	}
	if err := c.declareConstructors(); err != nil {
		return err
	}
	if err := c.initElimLevel(); err != nil {
		return err
	}
	c.initKTarget()
	if err := c.mkRecInfos(); err != nil {
		return err
	}
	return c.declareRecursors()
}

func (c *compiler) nparams() int { return c.declar.NumParams }

func (c *compiler) paramType(i int) expr.Expr {
	return c.params[i].LcBinding().Ty
}

// occursFamily reports whether any constant named after one of the block's
// families appears anywhere in e.
func (c *compiler) occursFamily(e expr.Expr) bool {
	found := false
	var walk func(expr.Expr)
	walk = func(cur expr.Expr) {
		if found {
			return
		}
		switch cur.Kind() {
		case expr.KindConst:
			n, _ := cur.ConstParts()
			for _, fam := range c.declar.Families {
				if n.Equal(fam.Name) {
					found = true
					return
				}
			}
		case expr.KindApp:
			f, a := cur.AppParts()
			walk(f)
			walk(a)
		case expr.KindLambda, expr.KindPi:
			walk(cur.BinderDomain().Ty)
			walk(cur.BinderBody())
		case expr.KindLet:
			walk(cur.BinderDomain().Ty)
			walk(cur.LetVal())
			walk(cur.BinderBody())
		case expr.KindLocal:
			walk(cur.LcBinding().Ty)
		}
	}
	walk(e)
	return found
}

// checkInductiveTypes strips and records the shared parameter telescope,
// counts each family's indices, and pins the family's result level. Every
// family in a mutual block must agree on parameters and result level.
func (c *compiler) checkInductiveTypes() error {
	for idx, fam := range c.declar.Families {
		baseType := fam.Type
		if baseType.HasLocals() {
			return kerr.Newf(kerr.CodeTypeHasLocals, "type of inductive %q contains free locals", fam.Name)
		}
		if _, err := c.tc.Check(baseType, c.declar.LParams); err != nil {
			return err
		}

		nindices := 0
		i := 0
		for baseType.Kind() == expr.KindPi {
			dom := baseType.BinderDomain()
			if i < c.nparams() {
				if idx == 0 {
					param := dom.AsLocal()
					c.params = append(c.params, param)
					baseType = expr.Instantiate(baseType.BinderBody(), []expr.Expr{param})
				} else {
					eq, err := c.tc.IsDefEq(dom.Ty, c.paramType(i))
					if err != nil {
						return err
					}
					if !eq {
						return kerr.Newf(kerr.CodeParamArityMismatch, "mutual inductive %q does not share the block's parameters", fam.Name)
					}
					baseType = expr.Instantiate(baseType.BinderBody(), []expr.Expr{c.params[i]})
				}
			} else {
				index := dom.AsLocal()
				baseType = expr.Instantiate(baseType.BinderBody(), []expr.Expr{index})
				nindices++
			}
			i++
		}
		if i < c.nparams() {
			return kerr.Newf(kerr.CodeParamArityMismatch, "inductive %q declares %d parameters but its type has only %d binders", fam.Name, c.nparams(), i)
		}
		c.nindices = append(c.nindices, nindices)

		sort, err := c.tc.EnsureSort(baseType)
		if err != nil {
			return err
		}
		resultLevel := sort.SortLevel()
		c.useDepElim = resultLevel.MaybeNonzero()

		if idx == 0 {
			c.resultLevel = resultLevel
			c.isNotZero = resultLevel.IsNonzero()
		} else if !resultLevel.EqByAntisymm(c.resultLevel) {
			return kerr.Newf(kerr.CodeBadConstructorUniverse, "mutual inductive %q lives in a different universe than the block", fam.Name)
		}

		c.indConsts = append(c.indConsts, expr.MkConst(fam.Name, c.levels))
	}
	return nil
}

func (c *compiler) allNames() []name.Name {
	names := make([]name.Name, len(c.declar.Families))
	for i, fam := range c.declar.Families {
		names[i] = fam.Name
	}
	return names
}

// isRec reports whether any constructor takes an argument whose type
// mentions the block — the family recurses into itself.
func (c *compiler) isRec() bool {
	for _, fam := range c.declar.Families {
		for _, ctor := range fam.Constructors {
			cursor := ctor.Type
			for cursor.Kind() == expr.KindPi {
				if c.occursFamily(cursor.BinderDomain().Ty) {
					return true
				}
				cursor = cursor.BinderBody()
			}
		}
	}
	return false
}

// isReflexive reports whether some constructor takes a function-valued
// argument returning a member of the block.
func (c *compiler) isReflexive() bool {
	for _, fam := range c.declar.Families {
		for _, ctor := range fam.Constructors {
			cursor := ctor.Type
			for cursor.Kind() == expr.KindPi {
				dom := cursor.BinderDomain()
				if dom.Ty.Kind() == expr.KindPi {
					codomain := dom.Ty
					for codomain.Kind() == expr.KindPi {
						codomain = codomain.BinderBody()
					}
					hd, _ := expr.UnfoldAppsRev(codomain)
					if c.occursFamily(hd) {
						return true
					}
				}
				local := dom.AsLocal()
				cursor = expr.Instantiate(cursor.BinderBody(), []expr.Expr{local})
			}
		}
	}
	return false
}

func (c *compiler) declareInductiveTypes() error {
	isRec := c.isRec()
	isReflexive := c.isReflexive()
	all := c.allNames()

	for idx, fam := range c.declar.Families {
		ctorNames := make([]name.Name, len(fam.Constructors))
		for i, ctor := range fam.Constructors {
			ctorNames[i] = ctor.Name
		}
		v := env.InductiveVal{
			ConstantVal: env.ConstantVal{Name: fam.Name, LParams: c.declar.LParams, Type: fam.Type},
			NParams:     c.nparams(),
			NIndices:    c.nindices[idx],
			All:         all,
			Constructors: ctorNames,
			IsRec:       isRec,
			IsUnsafe:    c.declar.IsUnsafe,
			IsReflexive: isReflexive,
		}
		c.indVals = append(c.indVals, v)
		if err := c.scratch.Insert(env.FromInductive(v)); err != nil {
			return err
		}
	}
	return nil
}

// isValidIndApp reports whether t is exactly the idx-th family applied to
// the block's parameters followed by a full complement of indices.
func (c *compiler) isValidIndApp(t expr.Expr, idx int) bool {
	hd, args := expr.UnfoldAppsRev(t)
	if !hd.Equal(c.indConsts[idx]) {
		return false
	}
	if len(args) != c.nparams()+c.nindices[idx] {
		return false
	}
	for i := 0; i < c.nparams(); i++ {
		if !c.params[i].Equal(args[i]) {
			return false
		}
	}
	return true
}

func (c *compiler) validIndAppIdx(t expr.Expr) (int, bool) {
	for idx := range c.declar.Families {
		if c.isValidIndApp(t, idx) {
			return idx, true
		}
	}
	return 0, false
}

// isRecArgument reports whether an argument type, after stripping its own
// Pi telescope, lands in one of the block's families (a recursive
// occurrence), returning that family's position.
func (c *compiler) isRecArgument(t expr.Expr) (int, bool, error) {
	cursor, err := c.tc.Whnf(t)
	if err != nil {
		return 0, false, err
	}
	for cursor.Kind() == expr.KindPi {
		local := cursor.BinderDomain().AsLocal()
		instd := expr.Instantiate(cursor.BinderBody(), []expr.Expr{local})
		cursor, err = c.tc.Whnf(instd)
		if err != nil {
			return 0, false, err
		}
	}
	idx, ok := c.validIndAppIdx(cursor)
	return idx, ok, nil
}

// checkPositivity walks into a constructor argument's type and rejects any
// occurrence of the block inside the domain of a Pi.
func (c *compiler) checkPositivity(t expr.Expr, ctorName name.Name) error {
	w, err := c.tc.Whnf(t)
	if err != nil {
		return err
	}
	if !c.occursFamily(w) {
		return nil
	}
	if w.Kind() == expr.KindPi {
		dom := w.BinderDomain()
		if c.occursFamily(dom.Ty) {
			return kerr.Newf(kerr.CodeNotPositive, "constructor %q has a non-positive occurrence of the inductive type", ctorName)
		}
		local := dom.AsLocal()
		return c.checkPositivity(expr.Instantiate(w.BinderBody(), []expr.Expr{local}), ctorName)
	}
	if _, ok := c.validIndAppIdx(w); ok {
		return nil
	}
	return kerr.Newf(kerr.CodeNotPositive, "constructor %q applies the inductive type to the wrong parameters", ctorName)
}

func (c *compiler) checkConstructors() error {
	for idx, fam := range c.declar.Families {
		for _, ctor := range fam.Constructors {
			t := ctor.Type
			if t.HasVars() || t.HasLocals() {
				return kerr.Newf(kerr.CodeTypeHasLocals, "type of constructor %q is not closed", ctor.Name)
			}
			if _, err := c.tc.Check(t, c.declar.LParams); err != nil {
				return err
			}

			i := 0
			for t.Kind() == expr.KindPi {
				dom := t.BinderDomain()
				if i < c.nparams() {
					eq, err := c.tc.IsDefEq(dom.Ty, c.paramType(i))
					if err != nil {
						return err
					}
					if !eq {
						return kerr.Newf(kerr.CodeParamArityMismatch, "constructor %q does not restate the family parameters", ctor.Name)
					}
					t = expr.Instantiate(t.BinderBody(), []expr.Expr{c.params[i]})
				} else {
					s, err := c.tc.InferUniverseOfType(dom.Ty)
					if err != nil {
						return err
					}
					if !(s.Leq(c.resultLevel) || c.resultLevel.IsZero()) {
						return kerr.Newf(kerr.CodeBadConstructorUniverse, "argument %d of constructor %q lives in a universe above its family", i, ctor.Name)
					}
					if !c.declar.IsUnsafe {
						if err := c.checkPositivity(dom.Ty, ctor.Name); err != nil {
							return err
						}
					}
					local := dom.AsLocal()
					t = expr.Instantiate(t.BinderBody(), []expr.Expr{local})
				}
				i++
			}

			if !c.isValidIndApp(t, idx) {
				return kerr.Newf(kerr.CodeBadConstructorCodomain, "constructor %q does not construct its own family", ctor.Name)
			}
		}
	}
	return nil
}

func (c *compiler) declareConstructors() error {
	for _, fam := range c.declar.Families {
		for cidx, ctor := range fam.Constructors {
			arity := 0
			it := ctor.Type
			for it.Kind() == expr.KindPi {
				it = it.BinderBody()
				arity++
			}
			v := env.ConstructorVal{
				ConstantVal: env.ConstantVal{Name: ctor.Name, LParams: c.declar.LParams, Type: ctor.Type},
				Induct:      fam.Name,
				CIdx:        cidx,
				NParams:     c.nparams(),
				NFields:     arity - c.nparams(),
				IsUnsafe:    c.declar.IsUnsafe,
			}
			c.ctorVals = append(c.ctorVals, v)
			if err := c.scratch.Insert(env.FromConstructor(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// elimOnlyAtUniverseZero decides whether large elimination must be
// forbidden: a possibly-Prop family escapes the restriction only when it
// has a single constructor whose every non-proof argument reappears as an
// index of the codomain.
func (c *compiler) elimOnlyAtUniverseZero() (bool, error) {
	if c.isNotZero {
		return false, nil
	}
	if len(c.declar.Families) > 1 {
		return true, nil
	}
	ctors := c.declar.Families[0].Constructors
	if len(ctors) > 1 {
		return true, nil
	}
	if len(ctors) == 0 {
		return false, nil
	}

	cnstrType := ctors[0].Type
	i := 0
	var toCheck []expr.Expr
	for cnstrType.Kind() == expr.KindPi {
		dom := cnstrType.BinderDomain()
		fvar := dom.AsLocal()
		if i >= c.nparams() {
			s, err := c.tc.InferUniverseOfType(fvar.LcBinding().Ty)
			if err != nil {
				return false, err
			}
			if !s.IsZero() {
				toCheck = append(toCheck, fvar)
			}
		}
		cnstrType = expr.Instantiate(cnstrType.BinderBody(), []expr.Expr{fvar})
		i++
	}

	_, resultArgs := expr.UnfoldAppsRev(cnstrType)
	for _, arg := range toCheck {
		found := false
		for _, resArg := range resultArgs {
			if resArg.Equal(arg) {
				found = true
				break
			}
		}
		if !found {
			return true, nil
		}
	}
	return false, nil
}

func (c *compiler) initElimLevel() error {
	only0, err := c.elimOnlyAtUniverseZero()
	if err != nil {
		return err
	}
	if only0 {
		c.elimLevel = level.MkZero()
		return nil
	}

	n := name.FromStr("u")
	counter := uint64(1)
	for c.clashesWithLParam(n) {
		n = name.FromStr("u").ExtendNum(counter)
		counter++
	}
	c.elimLevel = level.MkParam(n)
	return nil
}

func (c *compiler) clashesWithLParam(n name.Name) bool {
	for _, l := range c.declar.LParams {
		if l.IsParam() && l.ParamName().Equal(n) {
			return true
		}
	}
	return false
}

// initKTarget marks the recursor for κ-reduction: a single-family,
// single-constructor Prop whose constructor has no fields beyond the
// parameters.
func (c *compiler) initKTarget() {
	c.kTarget = len(c.declar.Families) == 1 &&
		c.resultLevel.IsZero() &&
		len(c.declar.Families[0].Constructors) == 1
	if !c.kTarget {
		return
	}

	it := c.declar.Families[0].Constructors[0].Type
	i := 0
	for it.Kind() == expr.KindPi {
		if i < c.nparams() {
			it = it.BinderBody()
		} else {
			c.kTarget = false
			return
		}
		i++
	}
}

// getIIndices decomposes a family application into the owning family's
// position and its index arguments (everything after the parameters).
func (c *compiler) getIIndices(t expr.Expr) (int, []expr.Expr, error) {
	idx, ok := c.validIndAppIdx(t)
	if !ok {
		return 0, nil, kerr.Newf(kerr.CodeBadConstructorCodomain, "expected an application of the inductive family, got %s", t)
	}
	_, allArgs := expr.UnfoldAppsRev(t)
	return idx, allArgs[c.nparams():], nil
}

// mkRecInfos builds, per family, the index locals, major premise, and
// motive, then one minor premise per constructor.
func (c *compiler) mkRecInfos() error {
	for dIdx, fam := range c.declar.Families {
		var info recInfo

		t := fam.Type
		i := 0
		for t.Kind() == expr.KindPi {
			if i < c.nparams() {
				t = expr.Instantiate(t.BinderBody(), []expr.Expr{c.params[i]})
			} else {
				index := t.BinderDomain().AsLocal()
				info.indices = append(info.indices, index)
				t = expr.Instantiate(t.BinderBody(), []expr.Expr{index})
			}
			i++
		}

		majorTy := expr.FoldApps(c.indConsts[dIdx], append(append([]expr.Expr(nil), c.params...), info.indices...))
		info.major = expr.MkLocal(name.FromStr("t"), majorTy, expr.Default)

		motiveBase := expr.MkSort(c.elimLevel)
		var motiveTy expr.Expr
		if c.useDepElim {
			motiveTy = expr.FoldPis(expr.FoldPis(motiveBase, []expr.Expr{info.major}), info.indices)
		} else {
			motiveTy = expr.FoldPis(motiveBase, info.indices)
		}

		motiveName := name.FromStr("C")
		if len(c.declar.Families) > 1 {
			motiveName = motiveName.ExtendNum(uint64(dIdx + 1))
		}
		info.motive = expr.MkLocal(motiveName, motiveTy, expr.Implicit)
		c.recInfos = append(c.recInfos, info)
	}

	minorIdx := 1
	for dIdx, fam := range c.declar.Families {
		for _, ctor := range fam.Constructors {
			bU, u, err := c.splitCtorFields(ctor)
			if err != nil {
				return err
			}

			t := c.ctorCodomain(ctor, bU)
			itIdx, itIndices, err := c.getIIndices(t)
			if err != nil {
				return err
			}

			motiveApp := expr.FoldApps(c.recInfos[itIdx].motive, itIndices)
			if c.useDepElim {
				rhs := expr.FoldApps(expr.MkConst(ctor.Name, c.levels), append(append([]expr.Expr(nil), c.params...), bU...))
				motiveApp = expr.MkApp(motiveApp, rhs)
			}

			var v []expr.Expr
			for i, ui := range u {
				xs, uiCodomain, err := c.openRecArg(ui)
				if err != nil {
					return err
				}
				itIdx2, itIndices2, err := c.getIIndices(uiCodomain)
				if err != nil {
					return err
				}
				cBase := expr.FoldApps(c.recInfos[itIdx2].motive, itIndices2)
				if c.useDepElim {
					cBase = expr.MkApp(cBase, expr.FoldApps(ui, xs))
				}
				viTy := expr.FoldPis(cBase, xs)
				vi := expr.MkLocal(name.FromStr("v").ExtendNum(uint64(i)), viTy, expr.Default)
				v = append(v, vi)
			}

			minorTy := expr.FoldPis(expr.FoldPis(motiveApp, v), bU)
			minor := expr.MkLocal(name.FromStr("m").ExtendNum(uint64(minorIdx)), minorTy, expr.Default)
			c.recInfos[dIdx].minors = append(c.recInfos[dIdx].minors, minor)
			minorIdx++
		}
	}
	return nil
}

// splitCtorFields opens a constructor's field telescope (after the shared
// parameters) into locals, also returning the subset that is recursive.
func (c *compiler) splitCtorFields(ctor Constructor) (bU, u []expr.Expr, err error) {
	t := ctor.Type
	i := 0
	for t.Kind() == expr.KindPi {
		dom := t.BinderDomain()
		if i < c.nparams() {
			t = expr.Instantiate(t.BinderBody(), []expr.Expr{c.params[i]})
		} else {
			l := dom.AsLocal()
			bU = append(bU, l)
			_, rec, rerr := c.isRecArgument(dom.Ty)
			if rerr != nil {
				return nil, nil, rerr
			}
			if rec {
				u = append(u, l)
			}
			t = expr.Instantiate(t.BinderBody(), []expr.Expr{l})
		}
		i++
	}
	return bU, u, nil
}

// ctorCodomain re-walks a constructor type substituting the already-opened
// field locals, yielding the family application the constructor lands in.
func (c *compiler) ctorCodomain(ctor Constructor, bU []expr.Expr) expr.Expr {
	t := ctor.Type
	i := 0
	fieldIdx := 0
	for t.Kind() == expr.KindPi {
		if i < c.nparams() {
			t = expr.Instantiate(t.BinderBody(), []expr.Expr{c.params[i]})
		} else {
			t = expr.Instantiate(t.BinderBody(), []expr.Expr{bU[fieldIdx]})
			fieldIdx++
		}
		i++
	}
	return t
}

// openRecArg strips a recursive argument's own Pi telescope into fresh
// locals, returning them with the family application underneath.
func (c *compiler) openRecArg(ui expr.Expr) ([]expr.Expr, expr.Expr, error) {
	infd, err := c.tc.InferOnly(ui)
	if err != nil {
		return nil, expr.Expr{}, err
	}
	uiTy, err := c.tc.Whnf(infd)
	if err != nil {
		return nil, expr.Expr{}, err
	}
	var xs []expr.Expr
	for uiTy.Kind() == expr.KindPi {
		x := uiTy.BinderDomain().AsLocal()
		xs = append(xs, x)
		instd := expr.Instantiate(uiTy.BinderBody(), []expr.Expr{x})
		uiTy, err = c.tc.Whnf(instd)
		if err != nil {
			return nil, expr.Expr{}, err
		}
	}
	return xs, uiTy, nil
}

// recLevels returns the recursor's universe arguments: the elimination
// level first when it is a fresh parameter, then the family's own.
func (c *compiler) recLevels() []level.Level {
	if c.elimLevel.IsParam() {
		return append([]level.Level{c.elimLevel}, c.levels...)
	}
	return append([]level.Level(nil), c.levels...)
}

func (c *compiler) collectMotives() []expr.Expr {
	var out []expr.Expr
	for _, info := range c.recInfos {
		out = append(out, info.motive)
	}
	return out
}

func (c *compiler) collectMinors() []expr.Expr {
	var out []expr.Expr
	for _, info := range c.recInfos {
		out = append(out, info.minors...)
	}
	return out
}

// RecName derives the recursor's name from its family's.
func RecName(n name.Name) name.Name { return n.ExtendStr("rec") }

// mkRecRules builds one ι-rule per constructor: both the RecursorVal's
// bookkeeping entry and the pattern rule whnf matches against. The major
// position in the pattern is the constructor application itself, so it is
// automatically recorded as a strict (major) argument.
func (c *compiler) mkRecRules(dIdx, minorIdx int, motives, minors []expr.Expr) ([]env.RecursorRule, []env.ReductionRule, error) {
	fam := c.declar.Families[dIdx]
	lvls := c.recLevels()
	var recRules []env.RecursorRule
	var mapRules []env.ReductionRule

	for _, ctor := range fam.Constructors {
		bU, u, err := c.splitCtorFields(ctor)
		if err != nil {
			return nil, nil, err
		}

		var v []expr.Expr
		for _, ui := range u {
			xs, uiCodomain, err := c.openRecArg(ui)
			if err != nil {
				return nil, nil, err
			}
			itIdx, itIndices, err := c.getIIndices(uiCodomain)
			if err != nil {
				return nil, nil, err
			}
			recAppLHS := expr.FoldApps(expr.MkConst(RecName(c.declar.Families[itIdx].Name), lvls),
				concat(c.params, motives, minors, itIndices))
			recApp := expr.MkApp(recAppLHS, expr.FoldApps(ui, xs))
			v = append(v, expr.FoldLambdas(recApp, xs))
		}

		rhs := expr.FoldApps(minors[minorIdx], append(append([]expr.Expr(nil), bU...), v...))

		compRHS := expr.FoldLambdas(rhs, bU)
		compRHS = expr.FoldLambdas(compRHS, minors)
		compRHS = expr.FoldLambdas(compRHS, motives)
		compRHS = expr.FoldLambdas(compRHS, c.params)
		recRules = append(recRules, env.RecursorRule{
			Constructor: ctor.Name,
			NFields:     len(bU),
			RHS:         compRHS,
		})

		ctorApp := expr.FoldApps(expr.MkConst(ctor.Name, c.levels), concat(c.params, bU))
		lhs := expr.FoldApps(expr.MkConst(RecName(fam.Name), lvls),
			append(concat(c.params, motives, minors, c.recInfos[dIdx].indices), ctorApp))
		ruleLocals := concat(c.params, motives, minors, c.recInfos[dIdx].indices, bU)
		mapRules = append(mapRules, env.NewNondefRule(ruleLocals, lhs, rhs, nil))

		minorIdx++
	}
	return recRules, mapRules, nil
}

func concat(groups ...[]expr.Expr) []expr.Expr {
	var out []expr.Expr
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func (c *compiler) declareRecursors() error {
	motives := c.collectMotives()
	minors := c.collectMinors()
	all := c.allNames()

	minorIdx := 0
	for dIdx, fam := range c.declar.Families {
		info := c.recInfos[dIdx]

		motiveApp := expr.FoldApps(info.motive, info.indices)
		if c.useDepElim {
			motiveApp = expr.MkApp(motiveApp, info.major)
		}

		recTy := expr.FoldPis(motiveApp, []expr.Expr{info.major})
		recTy = expr.FoldPis(recTy, info.indices)
		recTy = expr.FoldPis(recTy, minors)
		recTy = expr.FoldPis(recTy, motives)
		recTy = expr.FoldPis(recTy, c.params)

		recRules, mapRules, err := c.mkRecRules(dIdx, minorIdx, motives, minors)
		if err != nil {
			return err
		}
		minorIdx += len(fam.Constructors)

		v := env.RecursorVal{
			ConstantVal: env.ConstantVal{Name: RecName(fam.Name), LParams: c.recLevels(), Type: recTy},
			All:         all,
			NParams:     c.nparams(),
			NIndices:    c.nindices[dIdx],
			NMotives:    len(motives),
			NMinors:     len(minors),
			Rules:       recRules,
			IsK:         c.kTarget,
			IsUnsafe:    c.declar.IsUnsafe,
		}
		c.recVals = append(c.recVals, v)
		if err := c.scratch.Insert(env.FromRecursor(v)); err != nil {
			return err
		}
		c.rules = append(c.rules, mapRules...)
	}
	return nil
}
