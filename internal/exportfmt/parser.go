package exportfmt

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/pipeline"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// NotationKind distinguishes the three notation commands.
type NotationKind uint8

const (
	Prefix NotationKind = iota
	Infix
	Postfix
)

// Notation is a pretty-printing hint attached to a constant; the checker
// itself never consults it.
type Notation struct {
	Kind     NotationKind
	Name     name.Name
	Priority int
	Symbol   string
}

// Parser interprets export lines in order, growing the three tables and
// emitting declarations. Tables only ever append: a new row's index must
// be exactly one past the previous, and every reference must resolve to an
// existing row.
type Parser struct {
	file    string
	lineNum int

	names  []name.Name
	levels []level.Level
	exprs  []expr.Expr

	notations []Notation
	declIndex int
}

// NewParser builds a parser for one export file. Row 0 of the names table
// is the anonymous name and row 0 of the levels table is level zero, as
// the format requires; the expressions table starts empty.
func NewParser(file string) *Parser {
	return &Parser{
		file:   file,
		names:  []name.Name{name.Anonymous},
		levels: []level.Level{level.MkZero()},
	}
}

// Notations returns the notation commands seen so far.
func (p *Parser) Notations() []Notation { return p.notations }

// ParseFile reads and interprets a whole export file.
func ParseFile(path string) ([]pipeline.Declaration, []Notation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	p := NewParser(path)
	decls, err := p.ParseAll(f)
	return decls, p.notations, err
}

// ParseAll consumes r line by line, returning every declaration in stream
// order. The first malformed line aborts with its line number.
func (p *Parser) ParseAll(r io.Reader) ([]pipeline.Declaration, error) {
	var decls []pipeline.Declaration
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		p.lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		d, err := p.ParseLine(text)
		if err != nil {
			return nil, err
		}
		if d != nil {
			decls = append(decls, *d)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return decls, nil
}

// ParseLine interprets one line, returning a declaration when the line is
// a command that produces one (nil for table entries and notation).
func (p *Parser) ParseLine(text string) (*pipeline.Declaration, error) {
	line, err := lineParser.ParseString(p.file, text)
	if err != nil {
		return nil, p.errf(kerr.CodeParseMalformedLine, "malformed line: %v", err)
	}

	switch {
	case line.Entry != nil:
		return nil, p.tableEntry(line.Entry)
	case line.Axiom != nil:
		return p.axiom(line.Axiom)
	case line.Definition != nil:
		return p.definition(line.Definition)
	case line.Quotient != nil:
		d := p.newDecl(pipeline.DeclQuot)
		d.Name = pipeline.QuotName
		return d, nil
	case line.Inductive != nil:
		return p.inductive(line.Inductive)
	case line.Notation != nil:
		return nil, p.notation(line.Notation)
	}
	return nil, p.errf(kerr.CodeParseMalformedLine, "unrecognized line %q", text)
}

func (p *Parser) errf(code, format string, args ...interface{}) error {
	err := kerr.Newf(code, format, args...)
	return kerr.WithLocation(err, kerr.Location{File: p.file, Line: p.lineNum})
}

func (p *Parser) newDecl(kind pipeline.DeclKind) *pipeline.Declaration {
	d := &pipeline.Declaration{
		Kind:  kind,
		Index: p.declIndex,
		File:  p.file,
		Line:  p.lineNum,
	}
	p.declIndex++
	return d
}

// --- table lookups, all bounds-checked ---

func (p *Parser) getName(idx int) (name.Name, error) {
	if idx < 0 || idx >= len(p.names) {
		return name.Name{}, p.errf(kerr.CodeParseBadTableRef, "name reference %d out of range (table has %d rows)", idx, len(p.names))
	}
	return p.names[idx], nil
}

func (p *Parser) getLevel(idx int) (level.Level, error) {
	if idx < 0 || idx >= len(p.levels) {
		return level.Level{}, p.errf(kerr.CodeParseBadTableRef, "level reference %d out of range (table has %d rows)", idx, len(p.levels))
	}
	return p.levels[idx], nil
}

func (p *Parser) getExpr(idx int) (expr.Expr, error) {
	if idx < 0 || idx >= len(p.exprs) {
		return expr.Expr{}, p.errf(kerr.CodeParseBadTableRef, "expression reference %d out of range (table has %d rows)", idx, len(p.exprs))
	}
	return p.exprs[idx], nil
}

func (p *Parser) getUParams(idxs []int) ([]level.Level, error) {
	params := make([]level.Level, len(idxs))
	for i, idx := range idxs {
		n, err := p.getName(idx)
		if err != nil {
			return nil, err
		}
		params[i] = level.MkParam(n)
	}
	return params, nil
}

// args is a cursor over a table entry's operand strings.
type args struct {
	p     *Parser
	items []string
	pos   int
}

func (a *args) next() (string, error) {
	if a.pos >= len(a.items) {
		return "", a.p.errf(kerr.CodeParseMalformedLine, "line ended before all operands were read")
	}
	s := a.items[a.pos]
	a.pos++
	return s, nil
}

func (a *args) nextInt() (int, error) {
	s, err := a.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, a.p.errf(kerr.CodeParseExpectedInt, "expected an integer, got %q", s)
	}
	return v, nil
}

func (a *args) nextUint64() (uint64, error) {
	s, err := a.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, a.p.errf(kerr.CodeParseExpectedInt, "expected an integer, got %q", s)
	}
	return v, nil
}

func (a *args) nextName() (name.Name, error) {
	idx, err := a.nextInt()
	if err != nil {
		return name.Name{}, err
	}
	return a.p.getName(idx)
}

func (a *args) nextLevel() (level.Level, error) {
	idx, err := a.nextInt()
	if err != nil {
		return level.Level{}, err
	}
	return a.p.getLevel(idx)
}

func (a *args) nextExpr() (expr.Expr, error) {
	idx, err := a.nextInt()
	if err != nil {
		return expr.Expr{}, err
	}
	return a.p.getExpr(idx)
}

// rest concatenates all remaining operands; name segments are whatever the
// exporter wrote between the separators.
func (a *args) rest() string {
	s := strings.Join(a.items[a.pos:], "")
	a.pos = len(a.items)
	return s
}

func (a *args) restLevels() ([]level.Level, error) {
	var out []level.Level
	for a.pos < len(a.items) {
		l, err := a.nextLevel()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// --- table entries ---

func (p *Parser) tableEntry(e *TableEntry) error {
	a := &args{p: p, items: e.Args}
	switch e.Tag {
	case "#NS", "#NI":
		n, err := p.makeName(e.Tag, a)
		if err != nil {
			return err
		}
		return appendStrict(p, &p.names, n, e.Index)
	case "#US", "#UM", "#UIM", "#UP":
		l, err := p.makeLevel(e.Tag, a)
		if err != nil {
			return err
		}
		return appendStrict(p, &p.levels, l, e.Index)
	case "#EV", "#ES", "#EC", "#EA", "#EL", "#EP", "#EZ":
		x, err := p.makeExpr(e.Tag, e.Binder, a)
		if err != nil {
			return err
		}
		return appendStrict(p, &p.exprs, x, e.Index)
	}
	return p.errf(kerr.CodeParseMalformedLine, "unknown table tag %q", e.Tag)
}

// appendStrict enforces the format's append-only discipline: a fresh row's
// index is exactly the table's current length.
func appendStrict[T any](p *Parser, table *[]T, v T, idx int) error {
	if idx != len(*table) {
		return p.errf(kerr.CodeParseBadTableRef, "table row %d out of order (next free row is %d)", idx, len(*table))
	}
	*table = append(*table, v)
	return nil
}

func (p *Parser) makeName(tag string, a *args) (name.Name, error) {
	prefix, err := a.nextName()
	if err != nil {
		return name.Name{}, err
	}
	if tag == "#NS" {
		return prefix.ExtendStr(a.rest()), nil
	}
	num, err := a.nextUint64()
	if err != nil {
		return name.Name{}, err
	}
	return prefix.ExtendNum(num), nil
}

func (p *Parser) makeLevel(tag string, a *args) (level.Level, error) {
	switch tag {
	case "#US":
		l, err := a.nextLevel()
		if err != nil {
			return level.Level{}, err
		}
		return level.MkSucc(l), nil
	case "#UM", "#UIM":
		lhs, err := a.nextLevel()
		if err != nil {
			return level.Level{}, err
		}
		rhs, err := a.nextLevel()
		if err != nil {
			return level.Level{}, err
		}
		if tag == "#UM" {
			return level.MkMax(lhs, rhs), nil
		}
		return level.MkIMax(lhs, rhs), nil
	default: // #UP
		n, err := a.nextName()
		if err != nil {
			return level.Level{}, err
		}
		return level.MkParam(n), nil
	}
}

func binderStyle(marker string) expr.BinderStyle {
	switch marker {
	case "#BI":
		return expr.Implicit
	case "#BS":
		return expr.StrictImplicit
	case "#BC":
		return expr.InstImplicit
	default:
		return expr.Default
	}
}

func (p *Parser) makeExpr(tag, binder string, a *args) (expr.Expr, error) {
	switch tag {
	case "#EV":
		idx, err := a.nextUint64()
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.MkVar(idx), nil
	case "#ES":
		l, err := a.nextLevel()
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.MkSort(l), nil
	case "#EC":
		n, err := a.nextName()
		if err != nil {
			return expr.Expr{}, err
		}
		lvls, err := a.restLevels()
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.MkConst(n, lvls), nil
	case "#EA":
		f, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		arg, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.MkApp(f, arg), nil
	case "#EL", "#EP":
		if binder == "" {
			return expr.Expr{}, p.errf(kerr.CodeParseMalformedLine, "%s row is missing its binder-style marker", tag)
		}
		n, err := a.nextName()
		if err != nil {
			return expr.Expr{}, err
		}
		dom, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		body, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		b := expr.Binding{PPName: n, Ty: dom, Style: binderStyle(binder)}
		if tag == "#EL" {
			return expr.MkLambda(b, body), nil
		}
		return expr.MkPi(b, body), nil
	default: // #EZ
		n, err := a.nextName()
		if err != nil {
			return expr.Expr{}, err
		}
		ty, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		val, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		body, err := a.nextExpr()
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.MkLet(expr.Binding{PPName: n, Ty: ty, Style: expr.Default}, val, body), nil
	}
}

// --- declaration commands ---

func (p *Parser) axiom(cmd *AxiomCmd) (*pipeline.Declaration, error) {
	n, err := p.getName(cmd.Name)
	if err != nil {
		return nil, err
	}
	ty, err := p.getExpr(cmd.Type)
	if err != nil {
		return nil, err
	}
	uparams, err := p.getUParams(cmd.UParams)
	if err != nil {
		return nil, err
	}
	d := p.newDecl(pipeline.DeclAxiom)
	d.Name = n
	d.Type = ty
	d.LParams = uparams
	return d, nil
}

func (p *Parser) definition(cmd *DefinitionCmd) (*pipeline.Declaration, error) {
	n, err := p.getName(cmd.Name)
	if err != nil {
		return nil, err
	}
	ty, err := p.getExpr(cmd.Type)
	if err != nil {
		return nil, err
	}
	val, err := p.getExpr(cmd.Value)
	if err != nil {
		return nil, err
	}
	uparams, err := p.getUParams(cmd.UParams)
	if err != nil {
		return nil, err
	}
	d := p.newDecl(pipeline.DeclDefinition)
	d.Name = n
	d.Type = ty
	d.Value = val
	d.LParams = uparams
	return d, nil
}

func (p *Parser) inductive(cmd *InductiveCmd) (*pipeline.Declaration, error) {
	n, err := p.getName(cmd.Name)
	if err != nil {
		return nil, err
	}
	ty, err := p.getExpr(cmd.Type)
	if err != nil {
		return nil, err
	}
	if len(cmd.Rest) < 2*cmd.NumIntros {
		return nil, p.errf(kerr.CodeParseMalformedLine, "#IND declares %d constructors but lists only %d operands", cmd.NumIntros, len(cmd.Rest))
	}

	intros := make([]pipeline.Intro, cmd.NumIntros)
	for i := 0; i < cmd.NumIntros; i++ {
		iname, err := p.getName(cmd.Rest[2*i])
		if err != nil {
			return nil, err
		}
		itype, err := p.getExpr(cmd.Rest[2*i+1])
		if err != nil {
			return nil, err
		}
		intros[i] = pipeline.Intro{Name: iname, Type: itype}
	}
	uparams, err := p.getUParams(cmd.Rest[2*cmd.NumIntros:])
	if err != nil {
		return nil, err
	}

	d := p.newDecl(pipeline.DeclInductive)
	d.Name = n
	d.Type = ty
	d.LParams = uparams
	d.NumParams = cmd.NumParams
	d.Intros = intros
	return d, nil
}

func (p *Parser) notation(cmd *NotationCmd) error {
	n, err := p.getName(cmd.Name)
	if err != nil {
		return err
	}
	kind := Prefix
	switch cmd.Kind {
	case "#INFIX":
		kind = Infix
	case "#POSTFIX":
		kind = Postfix
	}
	p.notations = append(p.notations, Notation{
		Kind:     kind,
		Name:     n,
		Priority: cmd.Priority,
		Symbol:   strings.Join(cmd.Symbol, " "),
	})
	return nil
}
