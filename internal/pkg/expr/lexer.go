package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keywords is the allow-listed keyword set. Everything the lexer accepts is
// either one of these, a dotted identifier, a literal, or a listed symbol;
// anything else fails at contract-load time.
var keywords = map[string]bool{
	"AND": true, "OR": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"LIKE": true, "IS": true, "NOT": true, "NULL": true, "EMPTY": true,
	"DATE": true, "DATEADD": true, "DAY": true,
}

var symbols = []string{
	"**", "//", "<=", ">=", "!=", "<>", "==",
	"+", "-", "*", "/", "%", "(", ")", ",", "=", "<", ">",
}

// lex tokenizes an expression string, rejecting any character outside the
// allow-listed grammar.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case c == '\'':
			j := i + 1
			for j < len(src) && src[j] != '\'' {
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			toks = append(toks, token{tokString, src[i+1 : j], i})
			i = j + 1
		case isIdentStart(rune(c)):
			j := i
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		default:
			matched := false
			for _, sym := range symbols {
				if strings.HasPrefix(src[i:], sym) {
					toks = append(toks, token{tokSymbol, sym, i})
					i += len(sym)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("illegal character %q at offset %d", c, i)
			}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// isKeyword matches case-insensitively.
func (t token) isKeyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) isSymbol(sym string) bool {
	return t.kind == tokSymbol && t.text == sym
}
