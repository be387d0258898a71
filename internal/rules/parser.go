package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyRule is returned when the rule text holds no expression.
var ErrEmptyRule = errors.New("empty rule")

// Parse turns rule text into an expression tree.
//
// Conditions chained with "and"/"or" are folded strictly left to right, so
// "a or b and c" reads as "(a or b) and c". Parentheses may be used to group.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyRule
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s", t)
	}
	return node, nil
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

func (p *parser) expect(kind tokenKind, what string) error {
	if t := p.next(); t.kind != kind {
		return fmt.Errorf("expected %s, got %s", what, t)
	}
	return nil
}

func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op string
		switch {
		case t.keyword("and"):
			op = "and"
		case t.keyword("or"):
			op = "or"
		default:
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: op, Left: left, Right: right}
	}
}

func (p *parser) term() (Node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.condition()
}

func (p *parser) condition() (Node, error) {
	subject, err := p.operand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	switch {
	case t.kind == tokOp:
		p.next()
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: t.text, Left: subject, Right: right}, nil
	case t.keyword("between"):
		p.next()
		low, err := p.operand()
		if err != nil {
			return nil, err
		}
		if !p.peek().keyword("and") {
			return nil, fmt.Errorf("expected 'and' in between, got %s", p.peek())
		}
		p.next()
		high, err := p.operand()
		if err != nil {
			return nil, err
		}
		return &Between{Subject: subject, Low: low, High: high}, nil
	case t.keyword("in"):
		p.next()
		items, err := p.list()
		if err != nil {
			return nil, err
		}
		return &Membership{Subject: subject, Items: items}, nil
	}
	return &Truthy{Operand: subject}, nil
}

// list reads "[a, b, c]". The lexer has already cut the items out of the
// raw text, so every item arrives as a string literal.
func (p *parser) list() ([]string, error) {
	if err := p.expect(tokLBracket, "'['"); err != nil {
		return nil, err
	}
	var items []string
	if p.peek().kind == tokRBracket {
		p.next()
		return items, nil
	}
	for {
		t := p.next()
		switch t.kind {
		case tokIdent, tokNumber, tokString:
			items = append(items, t.text)
		default:
			return nil, fmt.Errorf("expected list item, got %s", t)
		}
		switch sep := p.next(); sep.kind {
		case tokComma:
			continue
		case tokRBracket:
			return items, nil
		default:
			return nil, fmt.Errorf("expected ',' or ']', got %s", sep)
		}
	}
}

// operand reads an arithmetic expression: sums of products of atoms.
func (p *parser) operand() (Node, error) {
	left, err := p.product()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokArith && (t.text == "+" || t.text == "-"); t = p.peek() {
		p.next()
		right, err := p.product()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Op: t.text, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) product() (Node, error) {
	left, err := p.atom()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokArith && (t.text == "*" || t.text == "/"); t = p.peek() {
		p.next()
		right, err := p.atom()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Op: t.text, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) atom() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %s", t)
		}
		return &Literal{Value: numberValue(f)}, nil
	case tokString:
		return &Literal{Value: stringValue(t.text)}, nil
	case tokArith:
		if t.text == "-" {
			arg, err := p.atom()
			if err != nil {
				return nil, err
			}
			return &Arithmetic{Op: "-", Left: &Literal{Value: numberValue(0)}, Right: arg}, nil
		}
	case tokIdent:
		switch {
		case t.keyword("true"):
			return &Literal{Value: boolValue(true)}, nil
		case t.keyword("false"):
			return &Literal{Value: boolValue(false)}, nil
		case t.keyword("abs"):
			if err := p.expect(tokLParen, "'(' after abs"); err != nil {
				return nil, err
			}
			arg, err := p.operand()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return &Abs{Arg: arg}, nil
		case isReserved(t.text):
			return nil, fmt.Errorf("unexpected keyword %s", t)
		}
		return &FieldRef{Name: t.text}, nil
	}
	return nil, fmt.Errorf("expected operand, got %s", t)
}
