package reified

import (
	"errors"

	"github.com/movegen/reified/internal/bcs"
	"github.com/movegen/reified/pkg/typetag"
)

// ArgKind is the discriminant of a TypeArg.
type ArgKind uint8

const (
	KindPrimitive ArgKind = iota
	KindVector
	KindStruct
	KindPhantom
)

func (k ArgKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindVector:
		return "vector"
	case KindStruct:
		return "struct"
	case KindPhantom:
		return "phantom"
	default:
		return "unknown_kind"
	}
}

// TypeArg is a resolved type: a *Primitive, *Vector, *Struct or *Phantom.
// The set is closed; the unexported codec methods keep other packages from
// adding variants.
type TypeArg interface {
	Kind() ArgKind
	// Tag returns the resolved type tag.
	Tag() typetag.TypeTag
	// String returns the compressed full type tag.
	String() string

	codec
}

// codec is the set of capabilities every TypeArg variant provides. Values
// moving through it are either raw values (the Move layout produced by the
// binary parse) or field values (what instances expose).
type codec interface {
	parseBCS(r *bcs.Reader) any
	writeBCS(w *bcs.Writer, raw any) error
	fromRaw(raw any) (any, error)
	toRaw(v any) (any, error)
	fromTyped(item any) (any, error)
	fromJSON(v any) (any, error)
	toJSON(v any) any
	equal(a, b any) bool
	layout() (Layout, error)
}

// Phantom is a type argument that only contributes its tag. Every decode or
// encode capability fails with ErrPhantomMisuse.
type Phantom struct {
	tag typetag.TypeTag
}

// NewPhantom builds a phantom stub from a tag string.
func NewPhantom(tag string) (*Phantom, error) {
	t, err := typetag.Parse(tag)
	if err != nil {
		return nil, &DecodeError{Kind: ErrTagMismatch, Position: -1, Err: err}
	}
	return &Phantom{tag: t}, nil
}

// MustPhantom is like NewPhantom but panics on a malformed tag.
func MustPhantom(tag string) *Phantom {
	p, err := NewPhantom(tag)
	if err != nil {
		panic(err)
	}
	return p
}

// PhantomOf converts any type argument into a phantom stub carrying its tag.
func PhantomOf(arg TypeArg) *Phantom {
	if p, ok := arg.(*Phantom); ok {
		return p
	}
	return &Phantom{tag: arg.Tag()}
}

func (p *Phantom) Kind() ArgKind { return KindPhantom }
func (p *Phantom) Tag() typetag.TypeTag { return p.tag }
func (p *Phantom) String() string { return p.tag.String() }
func (p *Phantom) misuse() *DecodeError { return newError(ErrPhantomMisuse, "%s", p.tag.String()) }
func (p *Phantom) equal(a, b any) bool { return false }
func (p *Phantom) toJSON(v any) any { return nil }
func (p *Phantom) layout() (Layout, error) { return Layout{}, p.misuse() }

func (p *Phantom) parseBCS(r *bcs.Reader) any {
	r.Fail(p.tag.String(), "phantom type argument", p.misuse())
	return nil
}

func (p *Phantom) writeBCS(w *bcs.Writer, raw any) error { return p.misuse() }
func (p *Phantom) fromRaw(raw any) (any, error) { return nil, p.misuse() }
func (p *Phantom) toRaw(v any) (any, error) { return nil, p.misuse() }
func (p *Phantom) fromTyped(item any) (any, error) { return nil, p.misuse() }
func (p *Phantom) fromJSON(v any) (any, error) { return nil, p.misuse() }

// DecodeFields decodes one raw field value with arg.
func DecodeFields(arg TypeArg, raw any) (any, error) {
	v, err := arg.fromRaw(raw)
	return v, stamp(err, OpFromFields, arg.String(), raw)
}

// DecodeFieldsWithTypes decodes one typed-fields value with arg.
func DecodeFieldsWithTypes(arg TypeArg, item any) (any, error) {
	v, err := arg.fromTyped(item)
	return v, stamp(err, OpFromFieldsWithTypes, arg.String(), item)
}

// DecodeJSONField decodes one JSON field value with arg.
func DecodeJSONField(arg TypeArg, field any) (any, error) {
	v, err := arg.fromJSON(field)
	return v, stamp(err, OpFromJSONField, arg.String(), field)
}

// DecodeBCS decodes a complete binary value of type arg.
func DecodeBCS(arg TypeArg, data []byte) (any, error) {
	raw, err := bcs.Unmarshal(data, arg.parseBCS)
	if err != nil {
		return nil, stamp(binaryError(err), OpFromBCS, arg.String(), data)
	}
	v, err := arg.fromRaw(raw)
	return v, stamp(err, OpFromBCS, arg.String(), data)
}

// EncodeBCS encodes a field value of type arg.
func EncodeBCS(arg TypeArg, v any) ([]byte, error) {
	raw, err := arg.toRaw(v)
	if err != nil {
		return nil, stamp(err, OpToBCS, arg.String(), nil)
	}
	data, err := encodeRaw(arg, raw)
	if err != nil {
		return nil, stamp(err, OpToBCS, arg.String(), nil)
	}
	return data, nil
}

// encodeRaw writes raw with arg. The codec's own error carries the field
// path and wins over the writer's.
func encodeRaw(arg TypeArg, raw any) ([]byte, error) {
	var encErr error
	data, err := bcs.Marshal(func(w *bcs.Writer) {
		encErr = arg.writeBCS(w, raw)
	})
	if encErr != nil {
		return nil, encErr
	}
	return data, err
}

// FieldToJSON renders a field value of type arg in its JSON form.
func FieldToJSON(arg TypeArg, v any) any {
	return arg.toJSON(v)
}

// LayoutOf returns the binary layout of arg.
func LayoutOf(arg TypeArg) (Layout, error) {
	return arg.layout()
}

// binaryError classifies a reader failure. Phantom misuse surfaced through
// the reader keeps its own kind.
func binaryError(err error) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Kind == ErrPhantomMisuse {
		return de
	}
	return &DecodeError{Kind: ErrMalformedBinary, Position: -1, Err: err}
}
