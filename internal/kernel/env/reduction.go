package env

import (
	"hash/maphash"
	"sync"

	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// LevelSubst pairs a formal universe parameter with the level it maps to
// while applying a reduction rule's instantiate_ps step.
type LevelSubst = level.Subst

// ReductionRule is a single ι/δ computation rule: lhs reduces to rhs once
// its free variables (abstracted to Vars) and universe parameters are
// substituted from the redex actually encountered. Quotient and inductive
// computation rules are both represented this way, built via NewNondefRule;
// plain definition unfolding never goes through this path (whnf's delta
// step just substitutes a definition's value directly).
type ReductionRule struct {
	LHSConstName name.Name
	LHS          expr.Expr
	RHS          expr.Expr
	// DefEqConstraints are extra obligations the caller must additionally
	// discharge for the reduction to be sound (used by recursor K-rules).
	DefEqConstraints []ExprPair
	LHSVarBound      int
	LHSArgsSize      int
	// Majors holds, in left-to-right argument order, the positions of
	// LHS arguments that are not themselves bare Vars — i.e. the
	// positions apply_hd_tl must actually pattern-match against rather
	// than treat as a free substitution slot.
	Majors []int
	Digest uint64
}

// ExprPair is a pair of expressions that must additionally be def-eq for a
// reduction to apply (used by the κ/K-style recursor rule).
type ExprPair struct {
	A, B expr.Expr
}

var reductionDigestSeed = maphash.MakeSeed()

// NewRule builds a ReductionRule from an already-closed (no Locals) lhs/rhs
// pair, e.g. the quotient package's hardcoded computation rule.
func NewRule(lhs, rhs expr.Expr, defEqConstraints []ExprPair) ReductionRule {
	if lhs.HasLocals() || rhs.HasLocals() {
		panic("env: NewRule: lhs/rhs must have no locals")
	}
	if rhs.VarBound() > lhs.VarBound() {
		panic("env: NewRule: rhs var_bound exceeds lhs var_bound")
	}

	head, lhsArgs := expr.UnfoldAppsRev(lhs)
	constName, _ := head.ConstParts()

	var majors []int
	for idx, arg := range lhsArgs {
		if arg.Kind() != expr.KindVar {
			majors = append(majors, idx)
		}
	}

	var h maphash.Hash
	h.SetSeed(reductionDigestSeed)
	var buf [16]byte
	putUint64(buf[0:8], lhs.Digest())
	putUint64(buf[8:16], rhs.Digest())
	h.Write(buf[:])

	return ReductionRule{
		LHSConstName:     constName,
		LHS:              lhs,
		RHS:              rhs,
		DefEqConstraints: defEqConstraints,
		LHSVarBound:      int(lhs.VarBound()),
		LHSArgsSize:      len(lhsArgs),
		Majors:           majors,
		Digest:           h.Sum64(),
	}
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// NewNondefRule abstracts locals out of lhs, rhs, and every constraint pair
// before delegating to NewRule — the path inductive and quotient installers
// use to turn an open computation rule (stated over fresh Locals) into a
// closed one keyed by de Bruijn Vars.
func NewNondefRule(locals []expr.Expr, lhs, rhs expr.Expr, defEqConstraints []ExprPair) ReductionRule {
	lhsA := expr.Abstract(lhs, locals)
	rhsA := expr.Abstract(rhs, locals)
	constraintsA := make([]ExprPair, len(defEqConstraints))
	for i, p := range defEqConstraints {
		constraintsA[i] = ExprPair{A: expr.Abstract(p.A, locals), B: expr.Abstract(p.B, locals)}
	}
	return NewRule(lhsA, rhsA, constraintsA)
}

// CollectSubsts walks lhs (self.LHS as the pattern) against a candidate
// redex e2 in lockstep, recording which Var index binds to which
// subexpression and which Const universe-level lists must line up. Returns
// false the moment the pattern and the redex diverge in shape.
func (r ReductionRule) CollectSubsts(lhs, e2 expr.Expr, varSubs []expr.Expr, univSubs []LevelSubst) ([]expr.Expr, []LevelSubst, bool) {
	switch lhs.Kind() {
	case expr.KindApp:
		if e2.Kind() != expr.KindApp {
			return varSubs, univSubs, false
		}
		lf, la := lhs.AppParts()
		rf, ra := e2.AppParts()
		var ok bool
		varSubs, univSubs, ok = r.CollectSubsts(lf, rf, varSubs, univSubs)
		if !ok {
			return varSubs, univSubs, false
		}
		return r.CollectSubsts(la, ra, varSubs, univSubs)
	case expr.KindConst:
		if e2.Kind() != expr.KindConst {
			return varSubs, univSubs, false
		}
		n1, lvls1 := lhs.ConstParts()
		n2, lvls2 := e2.ConstParts()
		if !n1.Equal(n2) {
			return varSubs, univSubs, false
		}
		n := len(lvls1)
		if len(lvls2) < n {
			n = len(lvls2)
		}
		for i := 0; i < n; i++ {
			univSubs = append(univSubs, LevelSubst{Param: lvls1[i], Repl: lvls2[i]})
		}
		return varSubs, univSubs, true
	case expr.KindVar:
		idx := int(lhs.VarIdx())
		for len(varSubs) <= idx {
			varSubs = append(varSubs, e2)
		}
		varSubs[idx] = e2
		return varSubs, univSubs, true
	default:
		return varSubs, univSubs, false
	}
}

// ApplyReduction attempts to fire the rule against e, the whole redex
// (already assembled, e.g. by ApplyHdTl). Returns the reduced term and any
// extra def-eq obligations, or ok=false if the pattern doesn't match.
func (r ReductionRule) ApplyReduction(e expr.Expr, cache *ReductionCache) (expr.Expr, []ExprPair, bool) {
	varSubs, univSubs, matched := r.CollectSubsts(r.LHS, e, nil, nil)
	if !matched {
		return expr.Expr{}, nil, false
	}

	cached := cache.lookup(r, univSubs)
	if cached == (expr.Expr{}) {
		cached = expr.InstantiateUnivs(r.RHS, univSubs)
		cache.store(r, univSubs, cached)
	}

	if r.LHSVarBound == 0 {
		return cached, r.DefEqConstraints, true
	}

	instantiated := expr.Instantiate(cached, varSubs)
	instConstraints := make([]ExprPair, len(r.DefEqConstraints))
	for i, p := range r.DefEqConstraints {
		instConstraints[i] = ExprPair{
			A: expr.Instantiate(p.A, varSubs),
			B: expr.Instantiate(p.B, varSubs),
		}
	}
	return instantiated, instConstraints, true
}

// ApplyHdTl matches the rule against a spine already decomposed into a head
// and left-to-right arguments, consuming only as many leading arguments as
// the rule's lhs needs and re-applying any remainder after reduction.
func (r ReductionRule) ApplyHdTl(hd expr.Expr, apps []expr.Expr, cache *ReductionCache) (expr.Expr, []ExprPair, bool) {
	if len(apps) < r.LHSArgsSize {
		return expr.Expr{}, nil, false
	}
	consumed, rest := apps[:r.LHSArgsSize], apps[r.LHSArgsSize:]
	applied := expr.FoldApps(hd, consumed)
	reduced, constraints, ok := r.ApplyReduction(applied, cache)
	if !ok {
		return expr.Expr{}, nil, false
	}
	return expr.FoldApps(reduced, rest), constraints, true
}

// reductionCacheKey is a ReductionRule's digest paired with the concrete
// universe substitution it was fired with; repeated firings of the same
// rule under the same substitution reuse rather than recompute instantiate_ps.
type reductionCacheKey struct {
	digest   uint64
	substKey string
}

// ReductionCache memoizes RHS.instantiate_ps(univSubs) per (rule, univSubs)
// pair, avoiding repeated universe substitution when the same rule fires
// against many structurally-identical redexes across a checking run.
type ReductionCache struct {
	mu    sync.Mutex
	inner map[reductionCacheKey]expr.Expr
}

func NewReductionCache() *ReductionCache {
	return &ReductionCache{inner: make(map[reductionCacheKey]expr.Expr)}
}

func substKeyOf(substs []LevelSubst) string {
	var b []byte
	for _, s := range substs {
		b = append(b, []byte(s.Param.String())...)
		b = append(b, '\x00')
		b = append(b, []byte(s.Repl.String())...)
		b = append(b, '\x01')
	}
	return string(b)
}

func (c *ReductionCache) lookup(r ReductionRule, substs []LevelSubst) expr.Expr {
	key := reductionCacheKey{digest: r.Digest, substKey: substKeyOf(substs)}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner[key]
}

func (c *ReductionCache) store(r ReductionRule, substs []LevelSubst, v expr.Expr) {
	key := reductionCacheKey{digest: r.Digest, substKey: substKeyOf(substs)}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner[key] = v
}

// ReductionMap indexes every ι-rule (quotient and inductive alike) by the
// head constant name they fire on, plus the major-premise argument
// positions whnf needs to know which argument to reduce to whnf before
// attempting a match.
type ReductionMap struct {
	mu            sync.RWMutex
	rules         map[name.Name][]ReductionRule
	majorPremises map[name.Name][]int
}

func NewReductionMap() *ReductionMap {
	return &ReductionMap{
		rules:         make(map[name.Name][]ReductionRule),
		majorPremises: make(map[name.Name][]int),
	}
}

// GetValue returns the unconditional unfolding of a bare constant (a rule
// whose lhs is the Const by itself, as the quotient package's non-computation
// aliases are not — this only ever matches Quot's trivial cases if present).
func (m *ReductionMap) GetValue(n name.Name) (expr.Expr, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules[n] {
		if r.LHS.Kind() == expr.KindConst {
			return r.RHS, true
		}
	}
	return expr.Expr{}, false
}

// ApplyToMap decomposes e's application spine and tries every rule
// registered under the head constant, in registration order, until one
// fires.
func (m *ReductionMap) ApplyToMap(e expr.Expr, cache *ReductionCache) (expr.Expr, []ExprPair, bool) {
	hd, apps := expr.UnfoldAppsRev(e)
	if hd.Kind() != expr.KindConst {
		return expr.Expr{}, nil, false
	}
	n, _ := hd.ConstParts()

	m.mu.RLock()
	rules := append([]ReductionRule(nil), m.rules[n]...)
	m.mu.RUnlock()
	if rules == nil {
		return expr.Expr{}, nil, false
	}
	for _, r := range rules {
		if reduced, constraints, ok := r.ApplyHdTl(hd, apps, cache); ok {
			return reduced, constraints, true
		}
	}
	return expr.Expr{}, nil, false
}

// AddRule registers a new rule under its lhs head constant, accumulating
// major-premise positions for constants that already have rules.
func (m *ReductionMap) AddRule(rule ReductionRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rule.LHSConstName
	m.rules[key] = append(m.rules[key], rule)
	m.majorPremises[key] = append(m.majorPremises[key], rule.Majors...)
}

// Clone copies the map into an independent instance, used when forking the
// environment for a scratch compilation.
func (m *ReductionMap) Clone() *ReductionMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := NewReductionMap()
	for k, v := range m.rules {
		out.rules[k] = append([]ReductionRule(nil), v...)
	}
	for k, v := range m.majorPremises {
		out.majorPremises[k] = append([]int(nil), v...)
	}
	return out
}

// GetMajorPremises returns the major-premise argument positions registered
// for a constant, if any rule has been added for it.
func (m *ReductionMap) GetMajorPremises(n name.Name) ([]int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.majorPremises[n]
	return v, ok
}
