// internal/rules/parse.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Recursive-descent parser for one rule line.
 *
 * Grammar, loosest to tightest:
 *   expr   := and ('|' and)*
 *   and    := factor ('&' factor)*
 *   factor := '(' expr ')' | clause
 *   clause := IDENT ('=' | '!') IDENT (',' IDENT)*
 *
 * Sibling operands at one level are collected into a single n-ary And/Or,
 * which keeps DNF expansion order equal to reading order. Comma shorthand
 * desugars here: "tag=a,b" becomes Or(Atom(tag=a), Atom(tag=b)) with the
 * operator of the clause repeated on every value.
 *
 * Vocabulary validation happens as each clause is read, so the first
 * offending token from the left is the one reported.
 */

type parser struct {
	toks  []token
	pos   int
	vocab *types.Vocabulary
}

// Parse turns one rule into an expression tree.
// Tags and values are validated against vocab; a nil vocab skips validation.
// Failures are *types.RuleError wrapping ErrSyntax, ErrUnknownTag,
// ErrUnknownValue or ErrRuleTooLong, with Pos set to the offending column.
func Parse(src string, vocab *types.Vocabulary) (Node, error) {
	if len(src) > types.MaxRuleLength {
		return nil, &types.RuleError{
			Kind: types.ErrRuleTooLong,
			Msg:  fmt.Sprintf("%d bytes exceeds limit of %d", len(src), types.MaxRuleLength),
		}
	}
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(token{pos: 1}, "empty rule")
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, vocab: vocab}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	switch t := p.peek(); t.kind {
	case tokEOF:
		return expr, nil
	case tokRParen:
		return nil, syntaxError(t, "unbalanced parentheses: unexpected ')'")
	default:
		return nil, syntaxError(t, fmt.Sprintf("unexpected %q: expected '&' or '|' between clauses", t.text))
	}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) prev() (token, bool) {
	if p.pos == 0 {
		return token{}, false
	}
	return p.toks[p.pos-1], true
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokOr {
		p.next()
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &Or{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokAnd {
		p.next()
		child, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &And{Children: children}, nil
}

func (p *parser) parseFactor() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, syntaxError(t, "unbalanced parentheses: missing ')'")
		}
		p.next()
		return expr, nil
	case tokIdent:
		return p.parseClause()
	}

	// Nothing can start an operand here; name the most useful cause.
	prev, ok := p.prev()
	switch {
	case ok && prev.isOperator():
		return nil, syntaxError(prev, fmt.Sprintf("dangling operator %q", prev.text))
	case ok && prev.kind == tokLParen && t.kind == tokRParen:
		return nil, syntaxError(prev, "empty clause: '()' contains nothing")
	case t.kind == tokEOF && ok && prev.kind == tokLParen:
		return nil, syntaxError(prev, "unbalanced parentheses: missing ')'")
	case t.kind == tokRParen:
		return nil, syntaxError(t, "unbalanced parentheses: unexpected ')'")
	default:
		return nil, syntaxError(t, fmt.Sprintf("expected clause or '(' but found %s", describe(t)))
	}
}

func (p *parser) parseClause() (Node, error) {
	tagTok := p.next()
	tag := types.Normalize(tagTok.text)
	if err := p.checkTag(tagTok, tag); err != nil {
		return nil, err
	}

	opTok := p.peek()
	var op types.Operator
	switch opTok.kind {
	case tokEq:
		op = types.OpEq
	case tokNeq:
		op = types.OpNeq
	default:
		return nil, syntaxError(opTok, fmt.Sprintf("empty clause: expected '=' or '!' after tag %q, found %s", tagTok.text, describe(opTok)))
	}
	p.next()

	var atoms []Node
	for {
		valTok := p.peek()
		if valTok.kind != tokIdent {
			operator, _ := p.prev()
			return nil, syntaxError(operator, fmt.Sprintf("dangling operator %q: missing value for tag %q", operator.text, tagTok.text))
		}
		p.next()
		value := types.Normalize(valTok.text)
		if err := p.checkValue(valTok, tag, value); err != nil {
			return nil, err
		}
		atoms = append(atoms, &Atom{Clause: types.Clause{Tag: tag, Op: op, Value: value}})

		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}

	if len(atoms) == 1 {
		return atoms[0], nil
	}
	return &Or{Children: atoms}, nil
}

func (p *parser) checkTag(t token, tag string) error {
	if p.vocab == nil || p.vocab.HasTag(tag) {
		return nil
	}
	return &types.RuleError{
		Kind:        types.ErrUnknownTag,
		Pos:         t.pos,
		Token:       t.text,
		Msg:         fmt.Sprintf("tag %q is not defined", tag),
		Suggestions: p.vocab.SuggestTags(tag),
	}
}

func (p *parser) checkValue(t token, tag, value string) error {
	if p.vocab == nil || p.vocab.HasValue(tag, value) {
		return nil
	}
	return &types.RuleError{
		Kind:        types.ErrUnknownValue,
		Pos:         t.pos,
		Token:       t.text,
		Msg:         fmt.Sprintf("%q is not a valid value for tag %q", value, tag),
		Suggestions: p.vocab.SuggestValues(tag, value),
	}
}

func syntaxError(t token, msg string) error {
	return &types.RuleError{
		Kind:  types.ErrSyntax,
		Pos:   t.pos,
		Token: t.text,
		Msg:   msg,
	}
}

func describe(t token) string {
	if t.kind == tokIdent {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}
