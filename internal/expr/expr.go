// Package expr evaluates the small address-expression language understood by
// raw-memory oracles:
//
//	expr := term { ("+" | "-") term }
//	term := "*" term | "&" ident | "(" expr ")" | number | ident
//
// An identifier denotes the address of the symbol; "*" loads one target word.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/wnxd/schedscope/oracle"
)

type parser struct {
	o   oracle.Oracle
	src string
	pos int
}

func Evaluate(o oracle.Oracle, src string) (oracle.Value, error) {
	p := &parser{o: o, src: src}
	v, err := p.expr()
	if err == nil {
		p.space()
		if p.pos != len(p.src) {
			err = fmt.Errorf("%w: unexpected %q at %d", oracle.ErrExprInvalid, p.src[p.pos:], p.pos)
		}
	}
	if err != nil {
		return oracle.Value{}, &oracle.EvalError{Expr: src, Err: err}
	}
	return oracle.Value{Expr: src, Addr: v, Text: fmt.Sprintf("%#x", v)}, nil
}

func (p *parser) space() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.space()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr() (uint64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *parser) term() (uint64, error) {
	switch c := p.peek(); {
	case c == '*':
		p.pos++
		addr, err := p.term()
		if err != nil {
			return 0, err
		}
		ptr, err := oracle.ToPointer(p.o, addr).MemReadPointer()
		if err != nil {
			return 0, err
		}
		return ptr.Address(), nil
	case c == '&':
		p.pos++
		if !isIdent(p.peek()) {
			return 0, fmt.Errorf("%w: '&' needs a symbol", oracle.ErrExprInvalid)
		}
		return p.symbol()
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		} else if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing ')'", oracle.ErrExprInvalid)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9':
		return p.number()
	case isIdent(c):
		return p.symbol()
	case c == 0:
		return 0, fmt.Errorf("%w: unexpected end", oracle.ErrExprInvalid)
	default:
		return 0, fmt.Errorf("%w: unexpected %q", oracle.ErrExprInvalid, c)
	}
}

func (p *parser) number() (uint64, error) {
	start := p.pos
	for p.pos < len(p.src) && (isIdent(p.src[p.pos]) || p.src[p.pos] >= '0' && p.src[p.pos] <= '9') {
		p.pos++
	}
	v, err := strconv.ParseUint(p.src[start:p.pos], 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", oracle.ErrExprInvalid, err)
	}
	return v, nil
}

func (p *parser) symbol() (uint64, error) {
	start := p.pos
	for p.pos < len(p.src) && (isIdent(p.src[p.pos]) || p.src[p.pos] >= '0' && p.src[p.pos] <= '9') {
		p.pos++
	}
	sym, err := p.o.LookupSymbol(p.src[start:p.pos])
	if err != nil {
		return 0, err
	}
	return sym.Addr, nil
}

func isIdent(c byte) bool {
	return c == '_' || c == '.' || c == '$' || c == ':' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Literal reports whether src is a bare number and returns it.
func Literal(src string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(src), 0, 64)
	return v, err == nil
}
