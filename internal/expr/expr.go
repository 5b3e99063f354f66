// Package expr implements the hash-consed expression DAG: the term
// representation shared by every stage of the kernel. Every node carries a
// cache record (structural digest, de Bruijn var-bound, has-locals flag)
// computed bottom-up at construction, so equality and hashing are O(1)
// amortized and structural sharing is pervasive.
package expr

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"sync"

	"kernelchk/internal/kernel/common"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// Kind discriminates the eight expression node shapes.
type Kind uint8

const (
	KindVar Kind = iota
	KindSort
	KindConst
	KindLocal
	KindApp
	KindLambda
	KindPi
	KindLet
)

// BinderStyle records how a binder should be pretty-printed; the kernel
// treats all four identically during checking.
type BinderStyle uint8

const (
	Default BinderStyle = iota
	Implicit
	StrictImplicit
	InstImplicit
)

// Binding names and types a Pi/Lambda/Let binder, or backs a Local's own
// declared type.
type Binding struct {
	PPName name.Name
	Ty     Expr
	Style  BinderStyle
}

func (b Binding) swapTy(other Expr) Binding {
	return Binding{PPName: b.PPName, Ty: other, Style: b.Style}
}

// SwapName rebuilds b with a new pretty-printing name, keeping type and style.
func (b Binding) SwapName(n name.Name) Binding {
	return Binding{PPName: n, Ty: b.Ty, Style: b.Style}
}

// Cache is the structural metadata computed once per node and reused by
// every algorithm that would otherwise have to re-walk the subtree.
type Cache struct {
	Digest     uint64
	VarBound   uint32
	HasLocals  bool
}

// Expr is an immutable, hash-consed handle to an expression node.
//
// The zero value is not valid; construct expressions with the Mk*
// functions below.
type Expr struct {
	node *exprNode
}

type exprNode struct {
	kind  Kind
	cache Cache

	// KindVar
	varIdx uint64

	// KindSort
	sortLevel level.Level

	// KindConst
	constName   name.Name
	constLevels []level.Level

	// KindLocal
	serial  uint64
	binding Binding

	// KindApp
	appFn, appArg Expr

	// KindLambda, KindPi
	dom  Binding
	body Expr

	// KindLet
	letVal Expr
}

var hashSeed = maphash.MakeSeed()

const (
	lambdaHashSalt uint64 = 402653189
	piHashSalt     uint64 = 1610612741
	propHashSalt   uint64 = 786433
)

func hashString(s string) uint64 {
	return maphash.String(hashSeed, s)
}

func hashMix(parts ...uint64) uint64 {
	buf := make([]byte, 8*len(parts))
	for i, p := range parts {
		binary.LittleEndian.PutUint64(buf[i*8:], p)
	}
	return maphash.Bytes(hashSeed, buf)
}

func bindingDigest(b Binding) uint64 {
	return hashMix(hashString(b.PPName.String()), b.Ty.cache().Digest, uint64(b.Style))
}

func (e Expr) cache() Cache {
	if e.node == nil {
		panic("expr: nil handle")
	}
	return e.node.cache
}

// Digest returns e's precomputed structural hash.
func (e Expr) Digest() uint64 { return e.cache().Digest }

// VarBound returns the smallest n such that every free Var in e (at binder
// depth 0) has index < n; 0 means e has no free de Bruijn variable.
func (e Expr) VarBound() uint32 { return e.cache().VarBound }

// HasLocals reports whether any Local occurs anywhere in e.
func (e Expr) HasLocals() bool { return e.cache().HasLocals }

// HasVars reports whether e has any free de Bruijn variable at depth 0.
func (e Expr) HasVars() bool { return e.VarBound() > 0 }

// Kind reports e's node shape.
func (e Expr) Kind() Kind { return e.node.kind }

// Equal reports structural (here, pointer, since interned) equality.
func (e Expr) Equal(other Expr) bool { return e.node == other.node }

// IsLocal reports whether e is a Local node.
func (e Expr) IsLocal() bool { return e.node.kind == KindLocal }

// --- hash-cons table ---
//
// Nodes are interned by digest bucket: structurally equal subtrees always
// share one *exprNode, so Equal is pointer comparison and the fast path of
// def_eq's "pointer or structural equality" step is free. Two handles can
// share a digest without being structurally equal (a hash collision); the
// bucket is scanned and compared structurally to resolve that, exactly as
// the data model requires.

var (
	internMu sync.Mutex
	buckets  = map[uint64][]*exprNode{}
)

func internNode(n *exprNode) Expr {
	internMu.Lock()
	defer internMu.Unlock()

	bucket := buckets[n.cache.Digest]
	for _, existing := range bucket {
		if structurallyEqual(existing, n) {
			return Expr{node: existing}
		}
	}
	buckets[n.cache.Digest] = append(bucket, n)
	return Expr{node: n}
}

func structurallyEqual(a, b *exprNode) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindVar:
		return a.varIdx == b.varIdx
	case KindSort:
		return a.sortLevel.Equal(b.sortLevel)
	case KindConst:
		if !a.constName.Equal(b.constName) || len(a.constLevels) != len(b.constLevels) {
			return false
		}
		for i := range a.constLevels {
			if !a.constLevels[i].Equal(b.constLevels[i]) {
				return false
			}
		}
		return true
	case KindLocal:
		return a.serial == b.serial
	case KindApp:
		return a.appFn.Equal(b.appFn) && a.appArg.Equal(b.appArg)
	case KindLambda, KindPi:
		return bindingEqual(a.dom, b.dom) && a.body.Equal(b.body)
	case KindLet:
		return bindingEqual(a.dom, b.dom) && a.letVal.Equal(b.letVal) && a.body.Equal(b.body)
	}
	return false
}

func bindingEqual(a, b Binding) bool {
	return a.PPName.Equal(b.PPName) && a.Ty.Equal(b.Ty) && a.Style == b.Style
}

// --- constructors ---

// MkProp is the distinguished Sort 0 constant.
func MkProp() Expr {
	return MkSort(level.MkZero())
}

func intern(n *exprNode) Expr { return internNode(n) }

// MkVar builds the de Bruijn variable with index idx.
func MkVar(idx uint64) Expr {
	return intern(&exprNode{
		kind:   KindVar,
		cache:  Cache{Digest: hashMix(uint64(KindVar), idx), VarBound: uint32(idx) + 1, HasLocals: false},
		varIdx: idx,
	})
}

// MkApp builds the application f a.
func MkApp(f, a Expr) Expr {
	return intern(&exprNode{
		kind: KindApp,
		cache: Cache{
			Digest:    hashMix(uint64(KindApp), f.Digest(), a.Digest()),
			VarBound:  common.Max2(f.VarBound(), a.VarBound()),
			HasLocals: f.HasLocals() || a.HasLocals(),
		},
		appFn: f, appArg: a,
	})
}

// MkSort builds Sort l.
func MkSort(l level.Level) Expr {
	return intern(&exprNode{
		kind:      KindSort,
		cache:     Cache{Digest: hashMix(uint64(KindSort), l.Hash()), VarBound: 0, HasLocals: false},
		sortLevel: l,
	})
}

// MkConst builds a universe-polymorphic constant reference.
func MkConst(n name.Name, levels []level.Level) Expr {
	parts := make([]uint64, 0, len(levels)+2)
	parts = append(parts, uint64(KindConst), hashString(n.String()))
	for _, l := range levels {
		parts = append(parts, l.Hash())
	}
	return intern(&exprNode{
		kind:        KindConst,
		cache:       Cache{Digest: hashMix(parts...), VarBound: 0, HasLocals: false},
		constName:   n,
		constLevels: levels,
	})
}

// MkLambda builds λ(domain), body.
func MkLambda(domain Binding, body Expr) Expr {
	return intern(&exprNode{
		kind: KindLambda,
		cache: Cache{
			Digest:    hashMix(lambdaHashSalt, bindingDigest(domain), body.Digest()),
			VarBound:  common.Max2(domain.Ty.VarBound(), common.SafeSubOne(body.VarBound())),
			HasLocals: domain.Ty.HasLocals() || body.HasLocals(),
		},
		dom: domain, body: body,
	})
}

// MkPi builds Π(domain), body.
func MkPi(domain Binding, body Expr) Expr {
	return intern(&exprNode{
		kind: KindPi,
		cache: Cache{
			Digest:    hashMix(piHashSalt, bindingDigest(domain), body.Digest()),
			VarBound:  common.Max2(domain.Ty.VarBound(), common.SafeSubOne(body.VarBound())),
			HasLocals: domain.Ty.HasLocals() || body.HasLocals(),
		},
		dom: domain, body: body,
	})
}

// MkLet builds `let domain := val in body`.
func MkLet(domain Binding, val, body Expr) Expr {
	return intern(&exprNode{
		kind: KindLet,
		cache: Cache{
			Digest: hashMix(uint64(KindLet), bindingDigest(domain), val.Digest(), body.Digest()),
			VarBound: common.Max3(
				domain.Ty.VarBound(),
				val.VarBound(),
				common.SafeSubOne(body.VarBound()),
			),
			HasLocals: domain.Ty.HasLocals() || body.HasLocals() || val.HasLocals(),
		},
		dom: domain, letVal: val, body: body,
	})
}

var (
	localSerialMu sync.Mutex
	localSerial   uint64
)

func nextSerial() uint64 {
	localSerialMu.Lock()
	defer localSerialMu.Unlock()
	localSerial++
	return localSerial
}

// MkLocal builds a fresh free variable with a globally unique serial. Every
// call (as opposed to copying an existing Expr value) yields a new serial,
// so two Locals are the same free variable iff their handles are Equal.
func MkLocal(n name.Name, ty Expr, style BinderStyle) Expr {
	b := Binding{PPName: n, Ty: ty, Style: style}
	serial := nextSerial()
	return intern(&exprNode{
		kind:    KindLocal,
		cache:   Cache{Digest: hashMix(serial, bindingDigest(b)), VarBound: 0, HasLocals: true},
		serial:  serial,
		binding: b,
	})
}

// AsLocal promotes a Binding directly to a fresh Local expression.
func (b Binding) AsLocal() Expr {
	serial := nextSerial()
	return intern(&exprNode{
		kind:    KindLocal,
		cache:   Cache{Digest: hashMix(serial, bindingDigest(b)), VarBound: 0, HasLocals: true},
		serial:  serial,
		binding: b,
	})
}

// LcBinding returns the Binding of a Local node. Panics if e is not Local.
func (e Expr) LcBinding() Binding {
	if e.node.kind != KindLocal {
		panic("expr: LcBinding on non-Local")
	}
	return e.node.binding
}

// Serial returns a Local's unique serial. Panics if e is not Local.
func (e Expr) Serial() uint64 {
	if e.node.kind != KindLocal {
		panic("expr: Serial on non-Local")
	}
	return e.node.serial
}

// SwapLocalBindingName rebuilds a Local with a different pretty-printing
// name, keeping its serial (so it remains the same free variable) — used
// only by the printer to recover user-facing binder names.
func (e Expr) SwapLocalBindingName(n name.Name) Expr {
	if e.node.kind != KindLocal {
		panic("expr: SwapLocalBindingName on non-Local")
	}
	newBinding := e.node.binding.SwapName(n)
	return intern(&exprNode{
		kind:    KindLocal,
		cache:   Cache{Digest: hashMix(e.node.serial, bindingDigest(e.node.binding)), VarBound: 0, HasLocals: true},
		serial:  e.node.serial,
		binding: newBinding,
	})
}

// MkArrow builds the non-dependent Pi e -> other, using the anonymous
// binder name.
func (e Expr) MkArrow(other Expr) Expr {
	b := Binding{PPName: name.Anonymous, Ty: e, Style: Default}
	return MkPi(b, other)
}

// App/Pi/Lambda/Let component accessors, used throughout convert and
// inductive. Each panics if called on the wrong Kind — callers always
// dispatch on Kind first.

func (e Expr) AppParts() (Expr, Expr) {
	if e.node.kind != KindApp {
		panic("expr: AppParts on non-App")
	}
	return e.node.appFn, e.node.appArg
}

// VarIdx returns a Var node's de Bruijn index.
func (e Expr) VarIdx() uint64 {
	if e.node.kind != KindVar {
		panic("expr: VarIdx on non-Var")
	}
	return e.node.varIdx
}

func (e Expr) SortLevel() level.Level {
	if e.node.kind != KindSort {
		panic("expr: SortLevel on non-Sort")
	}
	return e.node.sortLevel
}

func (e Expr) ConstParts() (name.Name, []level.Level) {
	if e.node.kind != KindConst {
		panic("expr: ConstParts on non-Const")
	}
	return e.node.constName, e.node.constLevels
}

func (e Expr) BinderDomain() Binding {
	switch e.node.kind {
	case KindLambda, KindPi, KindLet:
		return e.node.dom
	}
	panic("expr: BinderDomain on non-binder")
}

func (e Expr) BinderBody() Expr {
	switch e.node.kind {
	case KindLambda, KindPi, KindLet:
		return e.node.body
	}
	panic("expr: BinderBody on non-binder")
}

func (e Expr) LetVal() Expr {
	if e.node.kind != KindLet {
		panic("expr: LetVal on non-Let")
	}
	return e.node.letVal
}

// BinderIsPi reports whether e is a Pi (true) or Lambda (false). Panics
// otherwise — used only by the printer, which already knows it is looking
// at a binder.
func (e Expr) BinderIsPi() bool {
	switch e.node.kind {
	case KindPi:
		return true
	case KindLambda:
		return false
	}
	panic("expr: BinderIsPi on non-binder")
}

func (e Expr) String() string {
	switch e.node.kind {
	case KindVar:
		return fmt.Sprintf("#%d", e.node.varIdx)
	case KindSort:
		return fmt.Sprintf("Sort(%s)", e.node.sortLevel)
	case KindConst:
		return fmt.Sprintf("%s", e.node.constName)
	case KindLocal:
		return fmt.Sprintf("%s", e.node.binding.PPName)
	case KindApp:
		return fmt.Sprintf("(%s %s)", e.node.appFn, e.node.appArg)
	case KindLambda:
		return fmt.Sprintf("(λ %s, %s)", e.node.dom.PPName, e.node.body)
	case KindPi:
		return fmt.Sprintf("(Π %s, %s)", e.node.dom.PPName, e.node.body)
	case KindLet:
		return fmt.Sprintf("let %s := %s in %s", e.node.dom.PPName, e.node.letVal, e.node.body)
	}
	return "?"
}
