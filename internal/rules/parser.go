package rules

import (
	"fmt"
	"strconv"
)

type valKind int

const (
	kindNumber valKind = iota
	kindBool
)

func (k valKind) String() string {
	if k == kindBool {
		return "boolean"
	}
	return "number"
}

// result is the union type flowing through evaluation. The static check at
// compile time guarantees kinds line up, so eval never mixes them.
type result struct {
	kind valKind
	num  float64
	b    bool
}

type node interface {
	// check returns the node's static type or a type error. Runs once at
	// compile time so malformed rules are rejected before they ever see a
	// reading.
	check() (valKind, error)
	// eval computes the node over the bound variable.
	eval(value float64) (result, error)
}

type numLit float64

func (numLit) check() (valKind, error) { return kindNumber, nil }
func (n numLit) eval(float64) (result, error) {
	return result{kind: kindNumber, num: float64(n)}, nil
}

type varRef struct{}

func (varRef) check() (valKind, error) { return kindNumber, nil }
func (varRef) eval(value float64) (result, error) {
	return result{kind: kindNumber, num: value}, nil
}

type unaryNode struct {
	op token
	x  node
}

func (u *unaryNode) check() (valKind, error) {
	xk, err := u.x.check()
	if err != nil {
		return 0, err
	}
	switch u.op.kind {
	case tokMinus:
		if xk != kindNumber {
			return 0, fmt.Errorf("position %d: '-' needs a number, got %s", u.op.pos, xk)
		}
		return kindNumber, nil
	case tokNot:
		if xk != kindBool {
			return 0, fmt.Errorf("position %d: %q needs a boolean, got %s", u.op.pos, u.op.text, xk)
		}
		return kindBool, nil
	}
	return 0, fmt.Errorf("position %d: bad unary operator %q", u.op.pos, u.op.text)
}

func (u *unaryNode) eval(value float64) (result, error) {
	x, err := u.x.eval(value)
	if err != nil {
		return result{}, err
	}
	if u.op.kind == tokMinus {
		return result{kind: kindNumber, num: -x.num}, nil
	}
	return result{kind: kindBool, b: !x.b}, nil
}

type binaryNode struct {
	op   token
	x, y node
}

func (b *binaryNode) check() (valKind, error) {
	xk, err := b.x.check()
	if err != nil {
		return 0, err
	}
	yk, err := b.y.check()
	if err != nil {
		return 0, err
	}
	switch b.op.kind {
	case tokPlus, tokMinus, tokStar, tokSlash:
		if xk != kindNumber || yk != kindNumber {
			return 0, fmt.Errorf("position %d: %q needs numbers, got %s and %s", b.op.pos, b.op.text, xk, yk)
		}
		return kindNumber, nil
	case tokLT, tokLE, tokGT, tokGE, tokEQ, tokNE:
		if xk != kindNumber || yk != kindNumber {
			return 0, fmt.Errorf("position %d: %q compares numbers, got %s and %s", b.op.pos, b.op.text, xk, yk)
		}
		return kindBool, nil
	case tokAnd, tokOr:
		if xk != kindBool || yk != kindBool {
			return 0, fmt.Errorf("position %d: %q combines booleans, got %s and %s", b.op.pos, b.op.text, xk, yk)
		}
		return kindBool, nil
	}
	return 0, fmt.Errorf("position %d: bad operator %q", b.op.pos, b.op.text)
}

func (b *binaryNode) eval(value float64) (result, error) {
	// Short-circuit the boolean combinators.
	if b.op.kind == tokAnd || b.op.kind == tokOr {
		x, err := b.x.eval(value)
		if err != nil {
			return result{}, err
		}
		if b.op.kind == tokAnd && !x.b {
			return result{kind: kindBool, b: false}, nil
		}
		if b.op.kind == tokOr && x.b {
			return result{kind: kindBool, b: true}, nil
		}
		return b.y.eval(value)
	}

	x, err := b.x.eval(value)
	if err != nil {
		return result{}, err
	}
	y, err := b.y.eval(value)
	if err != nil {
		return result{}, err
	}
	switch b.op.kind {
	case tokPlus:
		return result{kind: kindNumber, num: x.num + y.num}, nil
	case tokMinus:
		return result{kind: kindNumber, num: x.num - y.num}, nil
	case tokStar:
		return result{kind: kindNumber, num: x.num * y.num}, nil
	case tokSlash:
		if y.num == 0 {
			return result{}, fmt.Errorf("position %d: division by zero", b.op.pos)
		}
		return result{kind: kindNumber, num: x.num / y.num}, nil
	case tokLT:
		return result{kind: kindBool, b: x.num < y.num}, nil
	case tokLE:
		return result{kind: kindBool, b: x.num <= y.num}, nil
	case tokGT:
		return result{kind: kindBool, b: x.num > y.num}, nil
	case tokGE:
		return result{kind: kindBool, b: x.num >= y.num}, nil
	case tokEQ:
		return result{kind: kindBool, b: x.num == y.num}, nil
	case tokNE:
		return result{kind: kindBool, b: x.num != y.num}, nil
	}
	return result{}, fmt.Errorf("position %d: bad operator %q", b.op.pos, b.op.text)
}

// Program is a compiled, type-checked condition ready for repeated
// evaluation. Programs are immutable and safe for concurrent use.
type Program struct {
	src  string
	root node
}

// Compile parses and type-checks a condition. The expression must reduce to
// a boolean; a bare arithmetic expression is rejected here rather than at
// evaluation time.
func Compile(condition string) (*Program, error) {
	toks, err := lex(condition)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", condition, err)
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", condition, err)
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("parse %q: position %d: unexpected %q", condition, tok.pos, tok.text)
	}
	kind, err := root.check()
	if err != nil {
		return nil, fmt.Errorf("check %q: %w", condition, err)
	}
	if kind != kindBool {
		return nil, fmt.Errorf("check %q: condition must be a boolean expression, got a bare %s", condition, kind)
	}
	return &Program{src: condition, root: root}, nil
}

// Source returns the original condition text.
func (p *Program) Source() string { return p.src }

// Eval runs the program against one reading value.
func (p *Program) Eval(value float64) (bool, error) {
	out, err := p.root.eval(value)
	if err != nil {
		return false, err
	}
	return out.b, nil
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

func (p *parser) parseExpr() (node, error) { return p.parseOr() }

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, x: left, y: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		op := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, x: left, y: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		op := p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokLT, tokLE, tokGT, tokGE, tokEQ, tokNE:
		op := p.next()
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: op, x: left, y: right}, nil
	}
	return left, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPlus || p.peek().kind == tokMinus {
		op := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, x: left, y: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokStar || p.peek().kind == tokSlash {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, x: left, y: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		op := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("position %d: bad number %q", tok.pos, tok.text)
		}
		return numLit(f), nil
	case tokValue:
		return varRef{}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')', got %q", closing.pos, closing.text)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("position %d: expression ended unexpectedly", tok.pos)
	default:
		return nil, fmt.Errorf("position %d: unexpected %q", tok.pos, tok.text)
	}
}
