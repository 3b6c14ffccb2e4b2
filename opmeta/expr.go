package opmeta

import (
	"fmt"
	"strconv"
)

// Expr is a parsed computation expression.
//
// The language is integer arithmetic over decimal literals with + - * /,
// unary sign, parentheses and a single bound identifier. Division truncates
// toward zero; dividing by zero is an evaluation error.
type Expr struct {
	src   string
	ident string
	root  node
}

type node interface {
	eval(v int64) (int64, error)
}

type numNode int64

func (n numNode) eval(int64) (int64, error) { return int64(n), nil }

type identNode struct{}

func (identNode) eval(v int64) (int64, error) { return v, nil }

type negNode struct{ x node }

func (n negNode) eval(v int64) (int64, error) {
	x, err := n.x.eval(v)
	if err != nil {
		return 0, err
	}
	return -x, nil
}

type binNode struct {
	op   byte
	l, r node
}

func (n binNode) eval(v int64) (int64, error) {
	l, err := n.l.eval(v)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(v)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

// ParseExpr parses src with ident as the only permitted identifier.
func ParseExpr(src, ident string) (*Expr, error) {
	p := &parser{src: src, ident: ident}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return &Expr{src: src, ident: ident, root: root}, nil
}

// Eval evaluates the expression with the identifier bound to v.
func (e *Expr) Eval(v int64) (int64, error) {
	return e.root.eval(v)
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// EvalExpr parses and evaluates src in one step.
func EvalExpr(src, ident string, v int64) (int64, error) {
	e, err := ParseExpr(src, ident)
	if err != nil {
		return 0, err
	}
	return e.Eval(v)
}

type parser struct {
	src   string
	ident string
	pos   int
	depth int
}

// maxDepth bounds recursion on adversarial input such as long runs of '('.
const maxDepth = 64

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binNode{op: c, l: left, r: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: c, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, fmt.Errorf("expression nested too deeply")
	}
	c, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch c {
	case '-':
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	c, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch {
	case c == '(':
		p.pos++
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return x, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad literal %q: %w", p.src[start:p.pos], err)
		}
		return numNode(n), nil
	case isIdentByte(c):
		start := p.pos
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
		name := p.src[start:p.pos]
		if name != p.ident {
			return nil, fmt.Errorf("unknown identifier %q", name)
		}
		return identNode{}, nil
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
