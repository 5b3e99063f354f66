// Package convert implements the kernel's conversion core: type inference,
// weak-head normal form reduction, and definitional equality. Every cache
// here is sharded per goroutine (keyed by goid.Get()) rather than behind a
// shared lock — correctness never depends on one goroutine observing
// another's cache, only on the append-only environment underneath.
package convert

import (
	"sync"

	"github.com/petermattis/goid"

	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/level"
)

// Checker is the shared, goroutine-safe conversion engine bound to one
// environment. A single instance is handed to every checker worker; each
// worker's traffic lands in its own shard.
type Checker struct {
	env      *env.Env
	safeOnly bool

	shardsMu sync.Mutex
	shards   map[int64]*shard
}

// eqKey is an unordered-looking but order-sensitive pair used as a
// def-eq/failure cache key. Expr is already a comparable interned handle.
type eqKey struct{ a, b expr.Expr }

type shard struct {
	lparams       []level.Level
	inferCache    map[expr.Expr]expr.Expr
	eqCache       map[eqKey]bool
	whnfCache     map[expr.Expr]expr.Expr
	whnfCoreCache map[expr.Expr]expr.Expr
	failureCache  map[eqKey]bool
	lcCache       map[expr.Expr][]expr.Expr
	reductionCache *env.ReductionCache
}

func newShard() *shard {
	return &shard{
		inferCache:    make(map[expr.Expr]expr.Expr, 1000),
		eqCache:       make(map[eqKey]bool, 1000),
		whnfCache:     make(map[expr.Expr]expr.Expr, 1000),
		whnfCoreCache: make(map[expr.Expr]expr.Expr, 100),
		failureCache:  make(map[eqKey]bool, 500),
		lcCache:       make(map[expr.Expr][]expr.Expr),
		reductionCache: env.NewReductionCache(),
	}
}

// New builds a Checker bound to e. safeOnly forbids admitting a value that
// references an unsafe constant.
func New(e *env.Env, safeOnly bool) *Checker {
	return &Checker{env: e, safeOnly: safeOnly, shards: make(map[int64]*shard)}
}

// NewChecker adapts New to env.NewCheckerFunc, letting env.Env build a
// fresh binding without importing convert (which would cycle).
func NewChecker(e *env.Env) env.TypeChecker { return New(e, false) }

func (c *Checker) shard() *shard {
	id := goid.Get()
	c.shardsMu.Lock()
	s, ok := c.shards[id]
	if !ok {
		s = newShard()
		c.shards[id] = s
	}
	c.shardsMu.Unlock()
	return s
}

// Check infers value's type under the given declared universe parameters,
// recording them so nested infer calls flag any parameter the term
// mentions but never declares.
func (c *Checker) Check(value expr.Expr, lparams []level.Level) (expr.Expr, error) {
	s := c.shard()
	s.lparams = lparams
	return c.inferTypeCore(s, value, false)
}

// IsDefEq decides whether two terms are definitionally equal.
func (c *Checker) IsDefEq(a, b expr.Expr) (bool, error) {
	s := c.shard()
	return c.isDefEq(s, a, b)
}

// InferOnly infers e's type without discharging any checking obligations
// along the way (no domain/codomain matching, no universe-parameter
// scoping) — the inductive compiler uses this while walking an
// already-type-correct constructor telescope. A Pi is the exception: its
// domains and body are inferred in full checking mode.
func (c *Checker) InferOnly(e expr.Expr) (expr.Expr, error) {
	s := c.shard()
	return c.inferTypeCore(s, e, true)
}

// EnsureSort whnf's e and requires the result to be a Sort.
func (c *Checker) EnsureSort(e expr.Expr) (expr.Expr, error) {
	s := c.shard()
	return c.ensureSort(s, e)
}

// EnsurePi whnf's e and requires the result to be a Pi.
func (c *Checker) EnsurePi(e expr.Expr) (expr.Expr, error) {
	s := c.shard()
	return c.ensurePi(s, e)
}

// InferUniverseOfType infers e's type and requires it whnf to a Sort,
// returning that sort's level.
func (c *Checker) InferUniverseOfType(e expr.Expr) (level.Level, error) {
	s := c.shard()
	return c.inferUniverseOfType(s, e)
}

// CheckType infers e's type and requires it be def-eq to ty.
func (c *Checker) CheckType(e, ty expr.Expr) error {
	s := c.shard()
	return c.checkType(s, e, ty)
}
