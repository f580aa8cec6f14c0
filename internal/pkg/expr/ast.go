package expr

import (
	"math"
	"regexp"

	"github.com/docuflow/docuflow/internal/pkg/flatten"
)

// Expr is a compiled calculated-field expression. Compilation happens once
// at contract-load time; evaluation is pure and safe to repeat across
// documents and workers.
type Expr interface {
	Eval(ctx *flatten.Context) Value
}

// Literal is a number or quoted string from the expression source.
type Literal struct {
	Val Value
}

func (l *Literal) Eval(*flatten.Context) Value { return l.Val }

// FieldRef resolves a dotted element.attribute path against the document
// context, case-insensitively, first occurrence wins. A missing path is
// absent, not an error.
type FieldRef struct {
	Path string
}

func (f *FieldRef) Eval(ctx *flatten.Context) Value {
	raw, ok := ctx.Lookup(f.Path)
	if !ok {
		return Absent()
	}
	return String(raw)
}

// Binary is an arithmetic operation. An absent operand makes the whole
// result absent, and that propagates through nesting. Division and modulo
// by zero are absent, never a panic.
type Binary struct {
	Op   string
	L, R Expr
}

func (b *Binary) Eval(ctx *flatten.Context) Value {
	l, lok := b.L.Eval(ctx).AsNumber()
	r, rok := b.R.Eval(ctx).AsNumber()
	if !lok || !rok {
		return Absent()
	}
	switch b.Op {
	case "+":
		return Number(l + r)
	case "-":
		return Number(l - r)
	case "*":
		return Number(l * r)
	case "/":
		if r == 0 {
			return Absent()
		}
		return Number(l / r)
	case "//":
		if r == 0 {
			return Absent()
		}
		return Number(math.Floor(l / r))
	case "%":
		if r == 0 {
			return Absent()
		}
		return Number(math.Mod(l, r))
	case "**":
		return Number(math.Pow(l, r))
	}
	return Absent()
}

// Negate is unary minus.
type Negate struct {
	X Expr
}

func (n *Negate) Eval(ctx *flatten.Context) Value {
	f, ok := n.X.Eval(ctx).AsNumber()
	if !ok {
		return Absent()
	}
	return Number(-f)
}

// Compare coerces both sides numerically first and falls back to
// lexicographic string comparison. A comparison against an absent operand
// is false.
type Compare struct {
	Op   string
	L, R Expr
}

func (c *Compare) Eval(ctx *flatten.Context) Value {
	l := c.L.Eval(ctx)
	r := c.R.Eval(ctx)
	if l.IsAbsent() || r.IsAbsent() {
		return Bool(false)
	}

	var cmp int
	lf, lok := l.AsNumber()
	rf, rok := r.AsNumber()
	if lok && rok {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		ls, rs := l.AsString(), r.AsString()
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		}
	}

	switch c.Op {
	case "=":
		return Bool(cmp == 0)
	case "!=":
		return Bool(cmp != 0)
	case "<":
		return Bool(cmp < 0)
	case "<=":
		return Bool(cmp <= 0)
	case ">":
		return Bool(cmp > 0)
	case ">=":
		return Bool(cmp >= 0)
	}
	return Bool(false)
}

// Logical is AND/OR over operand truthiness. The grammar has no unary
// negation; contracts express it with inequality.
type Logical struct {
	Op   string
	L, R Expr
}

func (l *Logical) Eval(ctx *flatten.Context) Value {
	if l.Op == "AND" {
		return Bool(l.L.Eval(ctx).Truthy() && l.R.Eval(ctx).Truthy())
	}
	return Bool(l.L.Eval(ctx).Truthy() || l.R.Eval(ctx).Truthy())
}

// When is one CASE branch.
type When struct {
	Cond Expr
	Then Expr
}

// CaseExpr evaluates branches top to bottom; the first truthy condition
// wins. No match and no ELSE yields absent.
type CaseExpr struct {
	Whens []When
	Else  Expr
}

func (c *CaseExpr) Eval(ctx *flatten.Context) Value {
	for _, w := range c.Whens {
		if w.Cond.Eval(ctx).Truthy() {
			return w.Then.Eval(ctx)
		}
	}
	if c.Else != nil {
		return c.Else.Eval(ctx)
	}
	return Absent()
}

// Like matches SQL wildcards (% and _), case-insensitively. The pattern is
// compiled to a regexp once at parse time.
type Like struct {
	X       Expr
	Pattern *regexp.Regexp
}

func (l *Like) Eval(ctx *flatten.Context) Value {
	v := l.X.Eval(ctx)
	if v.IsAbsent() {
		return Bool(false)
	}
	return Bool(l.Pattern.MatchString(v.AsString()))
}

// NullCheck implements IS [NOT] NULL and IS [NOT] EMPTY. NULL is strict:
// only an unresolved value is null, whitespace is not. EMPTY additionally
// treats whitespace-only strings as empty.
type NullCheck struct {
	X     Expr
	Not   bool
	Empty bool
}

func (n *NullCheck) Eval(ctx *flatten.Context) Value {
	v := n.X.Eval(ctx)
	var hit bool
	if n.Empty {
		hit = v.IsAbsent() || isBlank(v.AsString())
	} else {
		hit = v.IsAbsent()
	}
	if n.Not {
		hit = !hit
	}
	return Bool(hit)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// DateCast is DATE(x): parses a literal or field value against the fixed
// format list. Unparsable or absent input is absent.
type DateCast struct {
	X Expr
}

func (d *DateCast) Eval(ctx *flatten.Context) Value {
	v := d.X.Eval(ctx)
	if v.IsAbsent() {
		return Absent()
	}
	t, ok := v.AsTime()
	if !ok {
		return Absent()
	}
	return Date(t)
}

// DateAdd is DATEADD(day, amount, date). An absent amount adds zero days;
// an absent or unparsable date is absent.
type DateAdd struct {
	Amount Expr
	D      Expr
}

func (d *DateAdd) Eval(ctx *flatten.Context) Value {
	dv := d.D.Eval(ctx)
	if dv.IsAbsent() {
		return Absent()
	}
	t, ok := dv.AsTime()
	if !ok {
		return Absent()
	}
	days := 0
	if d.Amount != nil {
		if f, aok := d.Amount.Eval(ctx).AsNumber(); aok {
			days = int(f)
		}
	}
	return Date(t.AddDate(0, 0, days))
}
