package typetag

import (
	"strings"
)

// maxDepth bounds generic nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

type parser struct {
	src    string
	pos    int
	params []string
}

// Parse parses a type tag string.
func Parse(s string) (TypeTag, error) {
	return parse(&parser{src: s})
}

// ParseGeneric parses a declared field type that may refer to the enclosing
// struct's type parameters by name. A bare identifier found in params
// becomes a KindParam tag carrying its position.
func ParseGeneric(s string, params []string) (TypeTag, error) {
	return parse(&parser{src: s, params: params})
}

func parse(p *parser) (TypeTag, error) {
	t, err := p.parseType(0)
	if err != nil {
		return TypeTag{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeTag{}, p.errorf("unexpected %q after type", p.src[p.pos:])
	}
	return t, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) TypeTag {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return syntaxErrorf(p.src, p.pos, format, args...)
}

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

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		if p.pos == len(p.src) {
			return "", p.errorf("unexpected end of input")
		}
		return "", p.errorf("unexpected %q", p.src[p.pos])
	}
	return p.src[start:p.pos], nil
}

// accept consumes tok if it is next after whitespace.
func (p *parser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) parseType(depth int) (TypeTag, error) {
	if depth > maxDepth {
		return TypeTag{}, p.errorf("type nesting deeper than %d", maxDepth)
	}
	first, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}
	if !p.accept("::") {
		if k, ok := primitiveKinds[first]; ok {
			return Primitive(k), nil
		}
		for i, name := range p.params {
			if name == first {
				return Param(i, name), nil
			}
		}
		if first != "vector" {
			return TypeTag{}, p.errorf("unknown type %q", first)
		}
		args, err := p.parseArgs(depth)
		if err != nil {
			return TypeTag{}, err
		}
		if len(args) != 1 {
			return TypeTag{}, p.errorf("vector expects 1 type argument, got %d", len(args))
		}
		return Vector(args[0]), nil
	}

	addr, err := CompressAddress(first)
	if err != nil {
		return TypeTag{}, p.errorf("%v", err)
	}
	module, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}
	if !p.accept("::") {
		return TypeTag{}, p.errorf("expected '::' after module %q", module)
	}
	name, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}
	t := TypeTag{Kind: KindStruct, Address: addr, Module: module, Name: name}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		if t.Params, err = p.parseArgs(depth); err != nil {
			return TypeTag{}, err
		}
	}
	return t, nil
}

func (p *parser) parseArgs(depth int) ([]TypeTag, error) {
	if !p.accept("<") {
		return nil, p.errorf("expected '<'")
	}
	var args []TypeTag
	for {
		arg, err := p.parseType(depth + 1)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(",") {
			continue
		}
		if p.accept(">") {
			return args, nil
		}
		if p.pos == len(p.src) {
			return nil, p.errorf("unterminated type argument list")
		}
		return nil, p.errorf("expected ',' or '>' but found %q", p.src[p.pos])
	}
}
