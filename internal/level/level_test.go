package level

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernelchk/internal/name"
)

func TestZeroLeqZero(t *testing.T) {
	require.True(t, MkZero().Leq(MkZero()))
}

func TestSuccMonotone(t *testing.T) {
	u := MkParam(name.FromStr("u"))
	require.True(t, u.Leq(MkSucc(u)))
	require.False(t, MkSucc(u).Leq(u))
}

func TestImaxCollapsesToZeroOnZeroParam(t *testing.T) {
	// imax(u, 0) simplifies to 0 regardless of u.
	u := MkParam(name.FromStr("u"))
	imax := MkIMax(u, MkZero())
	require.True(t, imax.Simplify().Equal(MkZero()))
}

func TestImaxOnSuccCollapsesToMax(t *testing.T) {
	u := MkParam(name.FromStr("u"))
	v := MkParam(name.FromStr("v"))
	imax := MkIMax(u, MkSucc(v))
	got := imax.Simplify()
	want := MkMax(u, MkSucc(v))
	require.True(t, got.Equal(want))
}

func TestMaxSymmetricUnderLeq(t *testing.T) {
	u := MkParam(name.FromStr("u"))
	v := MkParam(name.FromStr("v"))
	m1 := MkMax(u, v)
	m2 := MkMax(v, u)
	require.True(t, m1.EqByAntisymm(m2))
}

func TestParamImaxCaseSplit(t *testing.T) {
	// imax(succ 0, p) <= max(succ 0, p) should hold for any parameter p,
	// exercising EnsureIMaxLeq's zero/succ case split.
	p := MkParam(name.FromStr("p"))
	lhs := MkIMax(MkSucc(MkZero()), p)
	rhs := MkMax(MkSucc(MkZero()), p)
	require.True(t, lhs.Leq(rhs))
}

func TestIsZeroAndIsNonzero(t *testing.T) {
	require.True(t, MkZero().IsZero())
	require.False(t, MkZero().IsNonzero())
	require.True(t, MkSucc(MkZero()).IsNonzero())
}

func TestToOffset(t *testing.T) {
	u := MkParam(name.FromStr("u"))
	l := MkSucc(MkSucc(u))
	n, inner := l.ToOffset()
	require.Equal(t, 2, n)
	require.True(t, inner.Equal(u))
}

func TestUniqueUnivParams(t *testing.T) {
	u := MkParam(name.FromStr("u"))
	v := MkParam(name.FromStr("v"))
	l := MkIMax(MkMax(u, v), u)
	params := UniqueUnivParams(l)
	require.Len(t, params, 2)
}
