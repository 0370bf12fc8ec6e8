// Package typetag parses, composes and compares fully-qualified Move type
// tags such as `0x2::coin::Coin<0x2::sui::SUI>`.
//
// Two tags are equal when their compressed forms are equal. Compression
// strips leading zeros from struct addresses and removes insignificant
// whitespace, so `0x0000…02::coin::Coin< 0x2::sui::SUI >` and
// `0x2::coin::Coin<0x2::sui::SUI>` name the same type.
package typetag

import (
	"strings"
)

// Kind classifies a TypeTag.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	// KindParam is a reference to a type parameter of an enclosing
	// declaration. It only appears in tags built by ParseGeneric or Param.
	KindParam
)

var primitiveKinds = map[string]Kind{
	"bool":    KindBool,
	"u8":      KindU8,
	"u16":     KindU16,
	"u32":     KindU32,
	"u64":     KindU64,
	"u128":    KindU128,
	"u256":    KindU256,
	"address": KindAddress,
	"signer":  KindSigner,
}

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindU256:
		return "u256"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return "vector"
	case KindStruct:
		return "struct"
	case KindParam:
		return "param"
	default:
		return "unknown_kind"
	}
}

// IsPrimitive reports whether the kind carries no type parameters.
func (k Kind) IsPrimitive() bool {
	return k <= KindSigner
}

// TypeTag is an immutable, parsed type tag. Struct tags keep their address
// in compressed form.
type TypeTag struct {
	Kind    Kind
	Address string
	Module  string
	Name    string
	Params  []TypeTag
	// Index is the type parameter position of a KindParam tag.
	Index int
}

// Primitive returns the tag for a primitive kind.
func Primitive(k Kind) TypeTag {
	return TypeTag{Kind: k}
}

// Vector returns the tag `vector<elem>`.
func Vector(elem TypeTag) TypeTag {
	return TypeTag{Kind: KindVector, Params: []TypeTag{elem}}
}

// Struct returns a struct tag. The address is compressed; an invalid
// address is kept verbatim and will fail to re-parse.
func Struct(address, module, name string, params ...TypeTag) TypeTag {
	if a, err := CompressAddress(address); err == nil {
		address = a
	}
	return TypeTag{
		Kind:    KindStruct,
		Address: address,
		Module:  module,
		Name:    name,
		Params:  append([]TypeTag(nil), params...),
	}
}

// Param returns a reference to the i-th type parameter, called name.
func Param(i int, name string) TypeTag {
	return TypeTag{Kind: KindParam, Name: name, Index: i}
}

// Base returns the tag's bare name without type arguments, e.g.
// `0x2::coin::Coin` or `vector`.
func (t TypeTag) Base() string {
	switch t.Kind {
	case KindStruct:
		return t.Address + "::" + t.Module + "::" + t.Name
	case KindParam:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// String renders the compressed full form of the tag.
func (t TypeTag) String() string {
	var sb strings.Builder
	t.write(&sb, ",")
	return sb.String()
}

// Display renders the tag with `, ` between arguments, the form produced by
// Compose.
func (t TypeTag) Display() string {
	var sb strings.Builder
	t.write(&sb, ", ")
	return sb.String()
}

func (t TypeTag) write(sb *strings.Builder, sep string) {
	sb.WriteString(t.Base())
	if len(t.Params) == 0 {
		return
	}
	sb.WriteByte('<')
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(sep)
		}
		p.write(sb, sep)
	}
	sb.WriteByte('>')
}

// Equal compares two tags by their compressed form.
func (t TypeTag) Equal(o TypeTag) bool {
	return t.String() == o.String()
}

// IsGeneric reports whether t refers to any type parameter.
func (t TypeTag) IsGeneric() bool {
	if t.Kind == KindParam {
		return true
	}
	for _, p := range t.Params {
		if p.IsGeneric() {
			return true
		}
	}
	return false
}

// Substitute replaces every parameter reference with the tag bound at its
// index. References outside args are left in place.
func (t TypeTag) Substitute(args []TypeTag) TypeTag {
	if t.Kind == KindParam {
		if t.Index < len(args) {
			return args[t.Index]
		}
		return t
	}
	if len(t.Params) == 0 {
		return t
	}
	out := t
	out.Params = make([]TypeTag, len(t.Params))
	for i, p := range t.Params {
		out.Params[i] = p.Substitute(args)
	}
	return out
}

// Depth returns the nesting depth of generic arguments; a tag with no
// arguments has depth 0.
func (t TypeTag) Depth() int {
	d := 0
	for _, p := range t.Params {
		if pd := p.Depth() + 1; pd > d {
			d = pd
		}
	}
	return d
}

// Compose renders `name<arg1, arg2, ...>`. With no arguments it returns name
// unchanged.
func Compose(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

// Compress normalises a tag string to its canonical comparable form.
func Compress(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// MustCompress is like Compress but panics on malformed input.
func MustCompress(s string) string {
	c, err := Compress(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseTypeName splits a tag into its bare name and the compressed strings
// of its top-level type arguments.
func ParseTypeName(s string) (name string, args []string, err error) {
	t, err := Parse(s)
	if err != nil {
		return "", nil, err
	}
	args = make([]string, len(t.Params))
	for i, p := range t.Params {
		args[i] = p.String()
	}
	return t.Base(), args, nil
}
