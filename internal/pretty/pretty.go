// Package pretty renders expressions for --print output. It is a
// convenience renderer only: binder names come straight from the stored
// bindings, applications are fully parenthesized, and notation priorities
// are not consulted.
package pretty

import (
	"fmt"
	"strings"

	"kernelchk/internal/expr"
	"kernelchk/internal/kernel/env"
	"kernelchk/internal/name"
)

// Expr renders e with de Bruijn variables resolved against the binders
// opened above them.
func Expr(e expr.Expr) string {
	var b strings.Builder
	writeExpr(&b, e, nil, false)
	return b.String()
}

// Constant renders one declaration the way --print surfaces it: name,
// universe parameters, type, and a definition's value.
func Constant(ci env.ConstantInfo) string {
	cv := ci.GetConstantVal()
	var b strings.Builder

	switch ci.Kind {
	case env.KindAxiom:
		b.WriteString("axiom ")
	case env.KindDefinition:
		b.WriteString("def ")
	case env.KindTheorem:
		b.WriteString("theorem ")
	case env.KindOpaque:
		b.WriteString("opaque ")
	case env.KindQuot:
		b.WriteString("quot ")
	case env.KindInductive:
		b.WriteString("inductive ")
	case env.KindConstructor:
		b.WriteString("constructor ")
	case env.KindRecursor:
		b.WriteString("recursor ")
	}

	b.WriteString(cv.Name.String())
	if len(cv.LParams) > 0 {
		parts := make([]string, len(cv.LParams))
		for i, l := range cv.LParams {
			parts[i] = l.String()
		}
		fmt.Fprintf(&b, ".{%s}", strings.Join(parts, " "))
	}
	b.WriteString(" : ")
	b.WriteString(Expr(cv.Type))

	if ci.HasValue(false) {
		b.WriteString(" :=\n  ")
		b.WriteString(Expr(ci.GetValue()))
	}
	return b.String()
}

// binderName falls back to an underscore for anonymous binders so output
// never shows an empty name.
func binderName(n name.Name) string {
	if n.IsAnonymous() {
		return "_"
	}
	return n.String()
}

func writeExpr(b *strings.Builder, e expr.Expr, ctx []name.Name, parens bool) {
	switch e.Kind() {
	case expr.KindVar:
		idx := int(e.VarIdx())
		if idx < len(ctx) {
			b.WriteString(binderName(ctx[len(ctx)-1-idx]))
		} else {
			fmt.Fprintf(b, "#%d", idx)
		}
	case expr.KindSort:
		lvl := e.SortLevel()
		if lvl.IsZero() {
			b.WriteString("Prop")
		} else {
			fmt.Fprintf(b, "Sort %s", lvl)
		}
	case expr.KindConst:
		n, lvls := e.ConstParts()
		b.WriteString(n.String())
		if len(lvls) > 0 {
			parts := make([]string, len(lvls))
			for i, l := range lvls {
				parts[i] = l.String()
			}
			fmt.Fprintf(b, ".{%s}", strings.Join(parts, " "))
		}
	case expr.KindLocal:
		b.WriteString(binderName(e.LcBinding().PPName))
	case expr.KindApp:
		if parens {
			b.WriteByte('(')
		}
		f, a := e.AppParts()
		writeExpr(b, f, ctx, f.Kind() != expr.KindApp)
		b.WriteByte(' ')
		writeExpr(b, a, ctx, true)
		if parens {
			b.WriteByte(')')
		}
	case expr.KindLambda, expr.KindPi:
		if parens {
			b.WriteByte('(')
		}
		head := "λ"
		if e.BinderIsPi() {
			head = "Π"
		}
		dom := e.BinderDomain()
		fmt.Fprintf(b, "%s (%s : ", head, binderName(dom.PPName))
		writeExpr(b, dom.Ty, ctx, false)
		b.WriteString("), ")
		writeExpr(b, e.BinderBody(), append(ctx, dom.PPName), false)
		if parens {
			b.WriteByte(')')
		}
	case expr.KindLet:
		if parens {
			b.WriteByte('(')
		}
		dom := e.BinderDomain()
		fmt.Fprintf(b, "let %s : ", binderName(dom.PPName))
		writeExpr(b, dom.Ty, ctx, false)
		b.WriteString(" := ")
		writeExpr(b, e.LetVal(), ctx, false)
		b.WriteString(" in ")
		writeExpr(b, e.BinderBody(), append(ctx, dom.PPName), false)
		if parens {
			b.WriteByte(')')
		}
	}
}
