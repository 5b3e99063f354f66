package exportfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/pipeline"
	"kernelchk/internal/name"
)

// natExport is a hand-written export of nat with an axiomatized successor
// chain, exercising every table kind and the main commands.
const natExport = `
1 #NS 0 nat
1 #US 0
0 #ES 1
#AX 1 0
2 #NS 1 zero
1 #EC 1
#AX 2 1
3 #NS 1 succ
2 #EP #BD 0 1 1
#AX 3 2
#QUOT
`

func TestParseAxiomStream(t *testing.T) {
	p := NewParser("test.export")
	decls, err := p.ParseAll(strings.NewReader(natExport))
	require.NoError(t, err)
	require.Len(t, decls, 4)

	natName := name.FromStr("nat")
	require.Equal(t, pipeline.DeclAxiom, decls[0].Kind)
	require.True(t, decls[0].Name.Equal(natName))
	require.Equal(t, expr.KindSort, decls[0].Type.Kind())

	require.True(t, decls[1].Name.Equal(natName.ExtendStr("zero")))
	require.Equal(t, expr.KindConst, decls[1].Type.Kind())

	require.True(t, decls[2].Name.Equal(natName.ExtendStr("succ")))
	require.Equal(t, expr.KindPi, decls[2].Type.Kind())

	require.Equal(t, pipeline.DeclQuot, decls[3].Kind)

	// Declarations carry their stream order and source lines.
	for i, d := range decls {
		require.Equal(t, i, d.Index)
	}
	require.Equal(t, "test.export", decls[0].File)
}

func TestParseDefinitionWithUParams(t *testing.T) {
	src := `
1 #NS 0 u
1 #UP 1
0 #ES 1
2 #NS 0 id
1 #EV 0
2 #EL #BD 0 0 1
3 #EP #BD 0 0 0
#DEF 2 3 2 1
`
	p := NewParser("id.export")
	decls, err := p.ParseAll(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, decls, 1)

	d := decls[0]
	require.Equal(t, pipeline.DeclDefinition, d.Kind)
	require.True(t, d.Name.Equal(name.FromStr("id")))
	require.Len(t, d.LParams, 1)
	require.True(t, d.LParams[0].IsParam())
	require.Equal(t, expr.KindLambda, d.Value.Kind())
	require.Equal(t, expr.KindPi, d.Type.Kind())
}

func TestParseInductiveCommand(t *testing.T) {
	src := `
1 #NS 0 nat
2 #NS 1 zero
3 #NS 1 succ
1 #US 0
0 #ES 1
1 #EC 1
2 #EP #BD 0 1 1
#IND 0 1 0 2 2 1 3 2
`
	p := NewParser("nat.export")
	decls, err := p.ParseAll(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, decls, 1)

	d := decls[0]
	require.Equal(t, pipeline.DeclInductive, d.Kind)
	require.Equal(t, 0, d.NumParams)
	require.Len(t, d.Intros, 2)
	require.True(t, d.Intros[0].Name.Equal(name.FromStr("nat").ExtendStr("zero")))
	require.True(t, d.Intros[1].Name.Equal(name.FromStr("nat").ExtendStr("succ")))
	require.Equal(t, expr.KindPi, d.Intros[1].Type.Kind())
	require.Empty(t, d.LParams)
}

func TestParseNotationIsRecordedNotEmitted(t *testing.T) {
	src := `
1 #NS 0 add
#INFIX 1 65 +
`
	p := NewParser("n.export")
	decls, err := p.ParseAll(strings.NewReader(src))
	require.NoError(t, err)
	require.Empty(t, decls)
	require.Len(t, p.Notations(), 1)
	require.Equal(t, Infix, p.Notations()[0].Kind)
	require.Equal(t, "+", p.Notations()[0].Symbol)
	require.Equal(t, 65, p.Notations()[0].Priority)
}

func TestOutOfRangeReferenceAborts(t *testing.T) {
	p := NewParser("bad.export")
	_, err := p.ParseAll(strings.NewReader("1 #NS 7 foo\n"))
	require.Error(t, err)
	code, ok := kerr.Code(err)
	require.True(t, ok)
	require.Equal(t, kerr.CodeParseBadTableRef, code)
}

func TestOutOfOrderTableRowAborts(t *testing.T) {
	p := NewParser("bad.export")
	_, err := p.ParseAll(strings.NewReader("3 #NS 0 foo\n"))
	require.Error(t, err)
	code, ok := kerr.Code(err)
	require.True(t, ok)
	require.Equal(t, kerr.CodeParseBadTableRef, code)
}

func TestUnknownCommandAborts(t *testing.T) {
	p := NewParser("bad.export")
	_, err := p.ParseAll(strings.NewReader("#WHAT 1 2\n"))
	require.Error(t, err)
}

func TestMissingOperandAborts(t *testing.T) {
	p := NewParser("bad.export")
	_, err := p.ParseAll(strings.NewReader("1 #US\n"))
	require.Error(t, err)
}

func TestBinderStylesRoundTrip(t *testing.T) {
	src := `
1 #NS 0 x
1 #US 0
0 #ES 1
1 #EP #BI 1 0 0
2 #EP #BS 1 0 0
3 #EP #BC 1 0 0
`
	p := NewParser("b.export")
	_, err := p.ParseAll(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, expr.Implicit, p.exprs[1].BinderDomain().Style)
	require.Equal(t, expr.StrictImplicit, p.exprs[2].BinderDomain().Style)
	require.Equal(t, expr.InstImplicit, p.exprs[3].BinderDomain().Style)
}
