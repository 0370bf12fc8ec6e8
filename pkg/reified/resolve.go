package reified

import (
	"strconv"

	"github.com/movegen/reified/pkg/typetag"
)

// maxResolveDepth bounds generic expansion. Declarations whose fields grow
// their own type arguments without end are rejected here.
const maxResolveDepth = 32

// resolver threads one resolution through nested declarations. stack holds
// the full tags currently being built, to reject recursive layouts.
type resolver struct {
	reg   *Registry
	stack []string
}

// resolve maps a declared type to its descriptor under env, the descriptors
// bound to the enclosing declaration's type parameters.
func (rs *resolver) resolve(t typetag.TypeTag, env []TypeArg) (TypeArg, error) {
	switch t.Kind {
	case typetag.KindParam:
		if t.Index < 0 || t.Index >= len(env) {
			return nil, newError(ErrInvalidDeclaration, "unbound type parameter %q", t.Name)
		}
		return env[t.Index], nil
	case typetag.KindVector:
		elem, err := rs.resolve(t.Params[0], env)
		if err != nil {
			return nil, err
		}
		if _, ok := elem.(*Phantom); ok {
			return nil, newError(ErrPhantomMisuse, "vector of phantom %s", elem.String())
		}
		return VectorOf(elem), nil
	case typetag.KindStruct:
		decl, ok := rs.reg.Lookup(t.Base())
		if !ok {
			return nil, newError(ErrUnknownType, "%s", t.Base())
		}
		phantoms, err := rs.reg.phantomParams(decl)
		if err != nil {
			return nil, err
		}
		if len(t.Params) != len(decl.TypeParams) {
			return nil, arityMismatch(len(decl.TypeParams), len(t.Params))
		}
		args := make([]TypeArg, len(t.Params))
		for i, p := range t.Params {
			if phantoms[i] {
				args[i] = &Phantom{tag: tagOf(p, env)}
				continue
			}
			if args[i], err = rs.resolve(p, env); err != nil {
				return nil, err
			}
		}
		return rs.instantiate(decl, phantoms, args)
	default:
		if p, ok := PrimitiveOf(t.Kind); ok {
			return p, nil
		}
		return nil, newError(ErrUnknownType, "%s has no value representation", t.Kind)
	}
}

// tagOf substitutes the tags of env into t.
func tagOf(t typetag.TypeTag, env []TypeArg) typetag.TypeTag {
	if !t.IsGeneric() {
		return t
	}
	tags := make([]typetag.TypeTag, len(env))
	for i, a := range env {
		tags[i] = a.Tag()
	}
	return t.Substitute(tags)
}

// instantiate builds, or loads from the cache, the descriptor of decl under
// args. Phantom positions are reduced to stubs; a stub in a regular position
// is rejected.
func (rs *resolver) instantiate(decl *StructDecl, phantoms []bool, args []TypeArg) (*Struct, error) {
	if len(args) != len(decl.TypeParams) {
		return nil, arityMismatch(len(decl.TypeParams), len(args))
	}
	bound := make([]TypeArg, len(args))
	tags := make([]typetag.TypeTag, len(args))
	for i, a := range args {
		if a == nil {
			return nil, newError(ErrInvalidValue, "type argument %d is nil", i)
		}
		switch {
		case phantoms[i]:
			bound[i] = PhantomOf(a)
		case a.Kind() == KindPhantom:
			return nil, mismatch(ErrPhantomMisuse, i, "a decodable type for "+decl.TypeParams[i].Name, a.String())
		default:
			bound[i] = a
		}
		tags[i] = a.Tag()
	}

	tag := typetag.MustParse(decl.Name)
	tag.Params = tags
	full := tag.String()
	if s, ok := rs.reg.cache.Load(full); ok {
		return s, nil
	}
	if tag.Depth() > maxResolveDepth {
		return nil, newError(ErrInvalidDeclaration, "%s nests deeper than %d", decl.Name, maxResolveDepth)
	}
	for _, inProgress := range rs.stack {
		if inProgress == full {
			return nil, newError(ErrInvalidDeclaration, "%s contains itself", full)
		}
	}
	rs.stack = append(rs.stack, full)
	defer func() { rs.stack = rs.stack[:len(rs.stack)-1] }()

	s := &Struct{
		decl:     decl,
		tag:      tag,
		full:     full,
		typeArgs: bound,
		fields:   make([]field, len(decl.Fields)),
		byName:   make(map[string]int, len(decl.Fields)),
	}
	for i, f := range decl.Fields {
		arg, err := rs.resolve(f.Type, bound)
		if err != nil {
			return nil, atField(err, f.Wire)
		}
		if arg.Kind() == KindPhantom {
			return nil, atField(mismatch(ErrPhantomMisuse, -1, "a decodable type", arg.String()), f.Wire)
		}
		s.fields[i] = field{name: f.Name, wire: f.Wire, arg: arg}
		s.byName[f.Name] = i
	}
	special, err := classify(s)
	if err != nil {
		return nil, err
	}
	s.special = special

	actual, loaded := rs.reg.cache.LoadOrStore(full, s)
	if !loaded {
		rs.reg.logf("resolved %s", full)
	}
	return actual, nil
}

func arityMismatch(want, got int) *DecodeError {
	return mismatch(ErrTagMismatch, -1, strconv.Itoa(want)+" type arguments", strconv.Itoa(got))
}
