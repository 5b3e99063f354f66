// Package level implements the universe-level algebra: an immutable tree
// over zero, successor, max, imax, and named parameters, with the
// antisymmetric partial order the kernel uses to check universe
// constraints.
package level

import (
	"fmt"
	"hash/maphash"
	"sync"

	"kernelchk/internal/name"
)

var hashSeed = maphash.MakeSeed()

// Kind discriminates the five level node shapes.
type Kind uint8

const (
	Zero Kind = iota
	Succ
	Max
	IMax
	Param
)

// Level is an immutable, interned universe-level expression. Interning
// gives structural equality as pointer equality, which the conversion
// core leans on heavily (see LeqCore's IMax/IMax shortcut).
type Level struct {
	node *node
}

type node struct {
	kind    Kind
	a, b    *node // Succ uses a only; Max/IMax use both
	param   name.Name
}

var (
	internMu sync.Mutex
	interned = map[node]*node{}
)

func intern(n node) Level {
	internMu.Lock()
	defer internMu.Unlock()
	if existing, ok := interned[n]; ok {
		return Level{node: existing}
	}
	stored := n
	p := &stored
	interned[n] = p
	return Level{node: p}
}

// MkZero builds the level 0.
func MkZero() Level { return intern(node{kind: Zero}) }

// MkSucc builds succ(l).
func MkSucc(l Level) Level { return intern(node{kind: Succ, a: l.node}) }

// MkMax builds max(lhs, rhs).
func MkMax(lhs, rhs Level) Level { return intern(node{kind: Max, a: lhs.node, b: rhs.node}) }

// MkIMax builds imax(lhs, rhs).
func MkIMax(lhs, rhs Level) Level { return intern(node{kind: IMax, a: lhs.node, b: rhs.node}) }

// MkParam builds a universe parameter named n.
func MkParam(n name.Name) Level { return intern(node{kind: Param, param: n}) }

// Kind reports the node's shape.
func (l Level) Kind() Kind { return l.node.kind }

// Equal reports structural (pointer, since interned) equality.
func (l Level) Equal(other Level) bool { return l.node == other.node }

// SuccOf returns the Succ child. It does not check l's kind; on a node
// without a child the result holds no node.
func (l Level) SuccOf() Level { return Level{node: l.node.a} }

// MaxParts returns the two children of a Max or IMax node.
func (l Level) MaxParts() (Level, Level) { return Level{node: l.node.a}, Level{node: l.node.b} }

// ParamName returns the parameter name, or Anonymous if l is not a Param
// node.
func (l Level) ParamName() name.Name { return l.node.param }

// IsParam reports whether l is a bare parameter node.
func (l Level) IsParam() bool { return l.node.kind == Param }

// IsAnyMax reports whether l is a Max or IMax node.
func (l Level) IsAnyMax() bool { return l.node.kind == Max || l.node.kind == IMax }

// Combining joins two levels the way Succ distributes over Succ, used by
// Simplify to collapse imax(a, succ b) into max(a, succ b) without
// re-introducing a redundant Max node when both sides are successors.
func (l Level) Combining(other Level) Level {
	switch {
	case l.node.kind == Zero:
		return other
	case other.node.kind == Zero:
		return l
	case l.node.kind == Succ && other.node.kind == Succ:
		return MkSucc(l.SuccOf().Combining(other.SuccOf()))
	default:
		return MkMax(l, other)
	}
}

// Simplify normalizes imax nodes, collapsing imax(a, 0) to 0 and
// imax(a, succ b) to max(a, succ b) via Combining. Zero and Param are
// already normal; Succ/Max simplify their children structurally.
func (l Level) Simplify() Level {
	switch l.node.kind {
	case Zero, Param:
		return l
	case Succ:
		return MkSucc(l.SuccOf().Simplify())
	case Max:
		a, b := l.MaxParts()
		return MkMax(a.Simplify(), b.Simplify())
	case IMax:
		a, b := l.MaxParts()
		bPrime := b.Simplify()
		switch bPrime.node.kind {
		case Zero:
			return MkZero()
		case Succ:
			return a.Simplify().Combining(bPrime)
		default:
			return MkIMax(a.Simplify(), bPrime)
		}
	}
	panic("level: unreachable kind in Simplify")
}

// Subst is one (param level, replacement level) pair for InstantiateLvl.
type Subst struct {
	Param Level
	Repl  Level
}

// InstantiateLvl substitutes each Param node found in substs with its
// paired replacement, leaving unmatched params and all other shapes
// structurally rebuilt (interning collapses the rebuild back to the
// original handle when nothing changed underneath).
func (l Level) InstantiateLvl(substs []Subst) Level {
	switch l.node.kind {
	case Zero:
		return l
	case Succ:
		return MkSucc(l.SuccOf().InstantiateLvl(substs))
	case Max:
		a, b := l.MaxParts()
		return MkMax(a.InstantiateLvl(substs), b.InstantiateLvl(substs))
	case IMax:
		a, b := l.MaxParts()
		return MkIMax(a.InstantiateLvl(substs), b.InstantiateLvl(substs))
	case Param:
		for _, s := range substs {
			if s.Param.Equal(l) {
				return s.Repl
			}
		}
		return l
	}
	panic("level: unreachable kind in InstantiateLvl")
}

// EnsureIMaxLeq handles the "right side of an IMax is a parameter" case of
// LeqCore: case-split self (the parameter) into 0 and succ(self), and
// require lhs <= rhs under both substitutions.
func (l Level) EnsureIMaxLeq(lhs, rhs Level, diff int) bool {
	if !l.IsParam() {
		panic("level: EnsureIMaxLeq called on a non-Param level")
	}
	zeroMap := []Subst{{Param: l, Repl: MkZero()}}
	nonzeroMap := []Subst{{Param: l, Repl: MkSucc(l)}}

	branch := func(substs []Subst) bool {
		leftPrime := lhs.InstantiateLvl(substs).Simplify()
		rightPrime := rhs.InstantiateLvl(substs).Simplify()
		return leftPrime.LeqCore(rightPrime, diff)
	}

	return branch(zeroMap) && branch(nonzeroMap)
}

// LeqCore is the case-by-case inductive analysis behind Leq; diff tracks
// the net number of Succ layers peeled from either side so far.
func (l Level) LeqCore(other Level, diff int) bool {
	lk, rk := l.node.kind, other.node.kind

	switch {
	case lk == Zero && diff >= 0:
		return true
	case rk == Zero && diff < 0:
		return false
	case lk == Param && rk == Param:
		return l.ParamName().Equal(other.ParamName()) && diff >= 0
	case lk == Param && rk == Zero:
		return false
	case lk == Zero && rk == Param:
		return diff >= 0

	case lk == Succ:
		return l.SuccOf().LeqCore(other, diff-1)
	case rk == Succ:
		return l.LeqCore(other.SuccOf(), diff+1)

	case lk == Max:
		a, b := l.MaxParts()
		return a.LeqCore(other, diff) && b.LeqCore(other, diff)

	case lk == Param && rk == Max:
		x, y := other.MaxParts()
		return l.LeqCore(x, diff) || l.LeqCore(y, diff)

	case lk == Zero && rk == Max:
		x, y := other.MaxParts()
		return l.LeqCore(x, diff) || l.LeqCore(y, diff)
	}

	if lk == IMax && rk == IMax {
		a, b := l.MaxParts()
		x, y := other.MaxParts()
		if a.Equal(x) && b.Equal(y) {
			return true
		}
	}

	if lk == IMax {
		_, b := l.MaxParts()
		if b.IsParam() {
			return b.EnsureIMaxLeq(l, other, diff)
		}
	}
	if rk == IMax {
		_, y := other.MaxParts()
		if y.IsParam() {
			return y.EnsureIMaxLeq(l, other, diff)
		}
	}

	if lk == IMax {
		a, b := l.MaxParts()
		if b.IsAnyMax() {
			switch b.node.kind {
			case IMax:
				x, y := b.MaxParts()
				newMax := MkMax(MkIMax(a, y), MkIMax(x, y))
				return newMax.LeqCore(other, diff)
			case Max:
				x, y := b.MaxParts()
				newMax := MkMax(MkIMax(a, x), MkIMax(a, y)).Simplify()
				return newMax.LeqCore(other, diff)
			}
		}
	}
	if rk == IMax {
		x, y := other.MaxParts()
		if y.IsAnyMax() {
			switch y.node.kind {
			case IMax:
				j, k := y.MaxParts()
				newMax := MkMax(MkIMax(x, k), MkIMax(j, k))
				return l.LeqCore(newMax, diff)
			case Max:
				j, k := y.MaxParts()
				newMax := MkMax(MkIMax(x, j), MkIMax(x, k)).Simplify()
				return l.LeqCore(newMax, diff)
			}
		}
	}

	panic(fmt.Sprintf("level: LeqCore: unreachable case (%v, %v)", l, other))
}

// Leq is the entry point for lhs <= rhs under the kernel's universe order.
func (l Level) Leq(other Level) bool {
	return l.Simplify().LeqCore(other.Simplify(), 0)
}

// EqByAntisymm decides level equality via Leq in both directions.
func (l Level) EqByAntisymm(other Level) bool {
	a := l.Simplify()
	b := other.Simplify()
	return a.LeqCore(b, 0) && b.LeqCore(a, 0)
}

// IsZero reports whether l is provably the zero level.
func (l Level) IsZero() bool { return l.Leq(MkZero()) }

// IsNonzero reports whether l is provably at least succ(0).
func (l Level) IsNonzero() bool { return MkSucc(MkZero()).Leq(l) }

// MaybeZero reports whether l is not provably nonzero.
func (l Level) MaybeZero() bool { return !l.IsNonzero() }

// MaybeNonzero reports whether l is not provably zero.
func (l Level) MaybeNonzero() bool { return !l.IsZero() }

// ToOffset peels leading Succ layers, returning their count and the
// remaining inner level.
func (l Level) ToOffset() (int, Level) {
	succs := 0
	inner := l
	for inner.node.kind == Succ {
		succs++
		inner = inner.SuccOf()
	}
	return succs, inner
}

// UniqueUnivParams collects the distinct Param nodes occurring in l.
func UniqueUnivParams(l Level) []Level {
	seen := map[*node]bool{}
	var acc []Level
	var walk func(Level)
	walk = func(cur Level) {
		switch cur.node.kind {
		case Zero:
		case Succ:
			walk(cur.SuccOf())
		case Max, IMax:
			a, b := cur.MaxParts()
			walk(a)
			walk(b)
		case Param:
			if !seen[cur.node] {
				seen[cur.node] = true
				acc = append(acc, cur)
			}
		}
	}
	walk(l)
	return acc
}

// Hash computes a digest for l, used by expr's Sort node to fold a level
// into an expression's cached structural digest. Levels are small and
// rarely rebuilt at checking time, so this walks the tree on every call
// rather than caching a digest field the way Expr does.
func (l Level) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	var walk func(Level)
	walk = func(cur Level) {
		switch cur.node.kind {
		case Zero:
			h.WriteByte(0)
		case Succ:
			h.WriteByte(1)
			walk(cur.SuccOf())
		case Max:
			h.WriteByte(2)
			a, b := cur.MaxParts()
			walk(a)
			walk(b)
		case IMax:
			h.WriteByte(3)
			a, b := cur.MaxParts()
			walk(a)
			walk(b)
		case Param:
			h.WriteByte(4)
			h.WriteString(cur.ParamName().String())
		}
	}
	walk(l)
	return h.Sum64()
}

// String renders a level in N / N+inner / max / imax / param notation for
// diagnostics.
func (l Level) String() string {
	switch l.node.kind {
	case Zero:
		return "0"
	case Succ:
		succs, inner := l.ToOffset()
		if inner.IsZero() {
			return fmt.Sprintf("%d", succs)
		}
		return fmt.Sprintf("%d+%s", succs, inner)
	case Max:
		a, b := l.MaxParts()
		return fmt.Sprintf("max(%s, %s)", a, b)
	case IMax:
		a, b := l.MaxParts()
		return fmt.Sprintf("imax(%s, %s)", a, b)
	case Param:
		return l.ParamName().String()
	}
	return "?"
}
