// internal/rules/lexer.go
package rules

import (
	"fmt"
	"unicode/utf8"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Tokenizer for the rule DSL.
 *
 * Tokens: identifier (tag name or value), '=', '!', '&', '|', ',', '(', ')'.
 * "!=" is read as a single NEQ token so that both "shape!circle" and
 * "shape != circle" are accepted. Whitespace only separates tokens.
 *
 * Identifiers are ASCII only; any other byte, including the start of a
 * multi-byte UTF-8 sequence, is an unrecognised character.
 *
 * Positions are 1-based byte columns into the rule text and are carried
 * through to every SyntaxError raised by the parser.
 */

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokComma
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of rule"
	case tokIdent:
		return "identifier"
	case tokEq:
		return "'='"
	case tokNeq:
		return "'!'"
	case tokAnd:
		return "'&'"
	case tokOr:
		return "'|'"
	case tokComma:
		return "','"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "unknown token"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// isOperator reports whether the token joins or compares operands.
func (t token) isOperator() bool {
	switch t.kind {
	case tokEq, tokNeq, tokAnd, tokOr, tokComma:
		return true
	}
	return false
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == '/', c == ':', c == '+':
		return true
	}
	return false
}

// IsIdentifier reports whether s can appear as a tag name or value in a rule.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// lex splits src into tokens terminated by a tokEOF token.
func lex(src string) ([]token, error) {
	toks := make([]token, 0, len(src)/2+1)
	for i := 0; i < len(src); {
		c := src[i]
		pos := i + 1
		switch {
		case isSpace(c):
			i++
		case isIdentByte(c):
			start := i
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: pos})
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokNeq, text: "!=", pos: pos})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokNeq, text: "!", pos: pos})
			i++
		default:
			kind, ok := punctuation[c]
			if !ok {
				r, _ := utf8.DecodeRuneInString(src[i:])
				return nil, &types.RuleError{
					Kind:  types.ErrSyntax,
					Pos:   pos,
					Token: string(r),
					Msg:   fmt.Sprintf("unrecognised character %q", r),
				}
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: pos})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src) + 1}), nil
}

var punctuation = map[byte]tokenKind{
	'=': tokEq,
	'&': tokAnd,
	'|': tokOr,
	',': tokComma,
	'(': tokLParen,
	')': tokRParen,
}
