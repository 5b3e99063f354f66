// Package exportfmt parses the line-oriented export format: three index
// tables (names, universe levels, expressions) grown strictly one entry at
// a time, interleaved with declaration commands that reference them.
package exportfmt

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ExportLexer tokenizes one line of the export format. Everything is
// whitespace-separated; tags start with '#', integers are table indices or
// literals, and any other run of non-space characters is a word (a name
// segment or a notation symbol).
var ExportLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Tag", Pattern: `#[A-Z]+`},
		{Name: "Int", Pattern: `[0-9]+`},
		{Name: "Word", Pattern: `[^ \t\r\n]+`},
	},
})

// Line is one parsed line: exactly one command or table entry.
type Line struct {
	Pos lexer.Position

	Axiom      *AxiomCmd      `  @@`
	Definition *DefinitionCmd `| @@`
	Quotient   *QuotCmd       `| @@`
	Inductive  *InductiveCmd  `| @@`
	Notation   *NotationCmd   `| @@`
	Entry      *TableEntry    `| @@`
}

// AxiomCmd is `#AX name type uparams…` (all operands are table indices).
type AxiomCmd struct {
	Name    int   `"#AX" @Int`
	Type    int   `@Int`
	UParams []int `@Int*`
}

// DefinitionCmd is `#DEF name type value uparams…`.
type DefinitionCmd struct {
	Name    int   `"#DEF" @Int`
	Type    int   `@Int`
	Value   int   `@Int`
	UParams []int `@Int*`
}

// QuotCmd is the bare `#QUOT` marker.
type QuotCmd struct {
	Tok string `@"#QUOT"`
}

// InductiveCmd is `#IND nparams name type nintros (iname itype)×nintros
// uparams…`; the trailing run of indices is split after parsing since its
// shape depends on NumIntros.
type InductiveCmd struct {
	NumParams int   `"#IND" @Int`
	Name      int   `@Int`
	Type      int   `@Int`
	NumIntros int   `@Int`
	Rest      []int `@Int*`
}

// NotationCmd is `#PREFIX|#INFIX|#POSTFIX name prio symbol`. The parser
// records notation lines; the kernel and the printer never use them.
type NotationCmd struct {
	Kind     string   `@("#PREFIX" | "#INFIX" | "#POSTFIX")`
	Name     int      `@Int`
	Priority int      `@Int`
	Symbol   []string `@(Word | Int | Tag)+`
}

// TableEntry is `idx #<tag> operands…`: one fresh row of the names,
// levels, or expressions table. Binder captures the `#BD|#BI|#BS|#BC`
// style marker carried by lambda and pi rows.
type TableEntry struct {
	Index  int      `@Int`
	Tag    string   `@Tag`
	Binder string   `@("#BD" | "#BI" | "#BS" | "#BC")?`
	Args   []string `@(Int | Word)*`
}

var lineParser = participle.MustBuild[Line](
	participle.Lexer(ExportLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
