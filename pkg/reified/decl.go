package reified

import (
	"fmt"
	"strings"

	"github.com/movegen/reified/pkg/typetag"
)

// TypeParam is one type parameter of a struct declaration.
type TypeParam struct {
	Name string
	// Phantom marks a parameter the declaring module flagged as phantom.
	// Parameters that no field decodes are treated as phantom regardless.
	Phantom bool
}

// Param declares a regular type parameter.
func Param(name string) TypeParam {
	return TypeParam{Name: name}
}

// PhantomParam declares a phantom type parameter.
func PhantomParam(name string) TypeParam {
	return TypeParam{Name: name, Phantom: true}
}

// FieldDecl is one declared field. Type may contain KindParam references to
// the enclosing declaration's type parameters.
type FieldDecl struct {
	// Name is the exposed field name used by instances and JSON.
	Name string
	// Wire is the on-chain field name used by raw and typed field maps.
	Wire string
	Type typetag.TypeTag
}

// StructDecl is the declaration of one on-chain struct: its bare type name,
// its type parameters and its fields in binary order.
type StructDecl struct {
	Name       string
	TypeParams []TypeParam
	Fields     []FieldDecl
}

// NewDecl starts a declaration for the struct called name, e.g.
// `0x2::coin::Coin`. It panics if name is not a bare struct tag.
func NewDecl(name string, params ...TypeParam) *StructDecl {
	t, err := typetag.Parse(name)
	if err != nil {
		panic(err)
	}
	if t.Kind != typetag.KindStruct || len(t.Params) > 0 {
		panic(fmt.Sprintf("reified: %q is not a bare struct name", name))
	}
	return &StructDecl{Name: t.Base(), TypeParams: params}
}

// Field appends a field declared with its wire name and type expression. The
// exposed name is the camelCase form of wire. It panics on a malformed type.
func (d *StructDecl) Field(wire, typ string) *StructDecl {
	t, err := d.ParseFieldType(typ)
	if err != nil {
		panic(err)
	}
	d.Fields = append(d.Fields, FieldDecl{Name: CamelCase(wire), Wire: wire, Type: t})
	return d
}

// ParseFieldType parses a type expression in the scope of d's type
// parameters.
func (d *StructDecl) ParseFieldType(typ string) (typetag.TypeTag, error) {
	return typetag.ParseGeneric(typ, d.ParamNames())
}

// ParamNames returns the type parameter names in order.
func (d *StructDecl) ParamNames() []string {
	names := make([]string, len(d.TypeParams))
	for i, p := range d.TypeParams {
		names[i] = p.Name
	}
	return names
}

// Arity returns the number of type parameters.
func (d *StructDecl) Arity() int {
	return len(d.TypeParams)
}

// Tag returns the declared tag with every parameter left unbound, e.g.
// `0x2::coin::Coin<T>`.
func (d *StructDecl) Tag() typetag.TypeTag {
	t := typetag.MustParse(d.Name)
	for i, p := range d.TypeParams {
		t.Params = append(t.Params, typetag.Param(i, p.Name))
	}
	return t
}

// Validate checks the declaration on its own: a well-formed name, unique
// parameter and field names, and in-range parameter references.
func (d *StructDecl) Validate() error {
	t, err := typetag.Parse(d.Name)
	if err != nil {
		return invalidDecl(d.Name, "%v", err)
	}
	if t.Kind != typetag.KindStruct || len(t.Params) > 0 {
		return invalidDecl(d.Name, "name must be a bare struct tag")
	}
	seen := make(map[string]bool)
	for _, p := range d.TypeParams {
		if p.Name == "" {
			return invalidDecl(d.Name, "empty type parameter name")
		}
		if seen[p.Name] {
			return invalidDecl(d.Name, "duplicate type parameter %q", p.Name)
		}
		seen[p.Name] = true
	}
	wires := make(map[string]bool)
	names := make(map[string]bool)
	for _, f := range d.Fields {
		if f.Wire == "" || f.Name == "" {
			return invalidDecl(d.Name, "field with empty name")
		}
		if wires[f.Wire] || names[f.Name] {
			return invalidDecl(d.Name, "duplicate field %q", f.Wire)
		}
		if strings.HasPrefix(f.Name, "$") {
			return invalidDecl(d.Name, "field %q collides with JSON markers", f.Name)
		}
		wires[f.Wire], names[f.Name] = true, true
		if err := checkParamRefs(f.Type, d.TypeParams); err != nil {
			return invalidDecl(d.Name, "field %q: %v", f.Wire, err)
		}
	}
	return nil
}

func checkParamRefs(t typetag.TypeTag, params []TypeParam) error {
	switch t.Kind {
	case typetag.KindParam:
		if t.Index < 0 || t.Index >= len(params) || params[t.Index].Name != t.Name {
			return fmt.Errorf("unknown type parameter %q", t.Name)
		}
	case typetag.KindSigner:
		return fmt.Errorf("signer cannot be stored in a field")
	}
	for _, p := range t.Params {
		if err := checkParamRefs(p, params); err != nil {
			return err
		}
	}
	return nil
}

func invalidDecl(name, format string, args ...interface{}) *DecodeError {
	de := newError(ErrInvalidDeclaration, format, args...)
	de.Type = name
	return de
}

// CamelCase converts a snake_case wire name to the exposed camelCase name.
func CamelCase(wire string) string {
	parts := strings.Split(wire, "_")
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}
