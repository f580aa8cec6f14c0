package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parse compiles an expression string into an AST. It is called once per
// calculated field at contract-load time; any syntax problem surfaces there
// as a fatal contract error, never at document time.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectSymbol(sym string) error {
	if !p.peek().isSymbol(sym) {
		return fmt.Errorf("expected %q, got %q at offset %d", sym, p.peek().text, p.peek().pos)
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().isKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "OR", L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().isKeyword("AND") {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "AND", L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.isSymbol("=") || t.isSymbol("==") || t.isSymbol("!=") || t.isSymbol("<>") ||
		t.isSymbol("<") || t.isSymbol("<=") || t.isSymbol(">") || t.isSymbol(">="):
		op := p.next().text
		if op == "==" {
			op = "="
		}
		if op == "<>" {
			op = "!="
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, L: left, R: right}, nil

	case t.isKeyword("LIKE"):
		p.next()
		pat := p.next()
		if pat.kind != tokString {
			return nil, fmt.Errorf("LIKE requires a string pattern at offset %d", pat.pos)
		}
		re, err := compileLikePattern(pat.text)
		if err != nil {
			return nil, err
		}
		return &Like{X: left, Pattern: re}, nil

	case t.isKeyword("IS"):
		p.next()
		not := false
		if p.peek().isKeyword("NOT") {
			p.next()
			not = true
		}
		switch {
		case p.peek().isKeyword("NULL"):
			p.next()
			return &NullCheck{X: left, Not: not}, nil
		case p.peek().isKeyword("EMPTY"):
			p.next()
			return &NullCheck{X: left, Not: not, Empty: true}, nil
		}
		return nil, fmt.Errorf("expected NULL or EMPTY after IS at offset %d", p.peek().pos)
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().isSymbol("+") || p.peek().isSymbol("-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().isSymbol("*") || p.peek().isSymbol("/") || p.peek().isSymbol("//") || p.peek().isSymbol("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().isSymbol("-") {
		p.next()
		x, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &Negate{X: x}, nil
	}
	return p.parsePower()
}

// parsePower handles **, right-associative and binding tighter than unary
// minus on its left operand.
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().isSymbol("**") {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: "**", L: base, R: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at offset %d", t.text, t.pos)
		}
		return &Literal{Val: Number(f)}, nil

	case t.kind == tokString:
		p.next()
		return &Literal{Val: String(t.text)}, nil

	case t.isSymbol("("):
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil

	case t.isKeyword("CASE"):
		return p.parseCase()

	case t.isKeyword("DATE"):
		p.next()
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &DateCast{X: x}, nil

	case t.isKeyword("DATEADD"):
		return p.parseDateAdd()

	case t.kind == tokIdent:
		p.next()
		if keywords[strings.ToUpper(t.text)] {
			return nil, fmt.Errorf("unexpected keyword %q at offset %d", t.text, t.pos)
		}
		return &FieldRef{Path: t.text}, nil
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
}

func (p *parser) parseCase() (Expr, error) {
	p.next() // CASE
	c := &CaseExpr{}
	for p.peek().isKeyword("WHEN") {
		p.next()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peek().isKeyword("THEN") {
			return nil, fmt.Errorf("expected THEN at offset %d", p.peek().pos)
		}
		p.next()
		then, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, When{Cond: cond, Then: then})
	}
	if len(c.Whens) == 0 {
		return nil, fmt.Errorf("CASE requires at least one WHEN at offset %d", p.peek().pos)
	}
	if p.peek().isKeyword("ELSE") {
		p.next()
		els, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		c.Else = els
	}
	if !p.peek().isKeyword("END") {
		return nil, fmt.Errorf("expected END at offset %d", p.peek().pos)
	}
	p.next()
	return c, nil
}

func (p *parser) parseDateAdd() (Expr, error) {
	p.next() // DATEADD
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	unit := p.next()
	if !unit.isKeyword("DAY") {
		return nil, fmt.Errorf("DATEADD supports only the day unit, got %q at offset %d", unit.text, unit.pos)
	}
	if err := p.expectSymbol(","); err != nil {
		return nil, err
	}
	amount, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(","); err != nil {
		return nil, err
	}
	d, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &DateAdd{Amount: amount, D: d}, nil
}

// compileLikePattern translates SQL wildcards into an anchored,
// case-insensitive regexp. Everything else is matched literally.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
