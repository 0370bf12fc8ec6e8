package reified

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/movegen/reified/internal/bcs"
	"github.com/movegen/reified/pkg/typetag"
)

// Struct is a resolved struct descriptor: one declaration instantiated with
// concrete type arguments. It is immutable and safe for concurrent use.
type Struct struct {
	decl     *StructDecl
	tag      typetag.TypeTag
	full     string
	typeArgs []TypeArg
	fields   []field
	byName   map[string]int
	special  wellKnown
}

type field struct {
	name string
	wire string
	arg  TypeArg
}

// FieldsWithTypes is the typed-fields form of an object, as reported by the
// object API: `{type, fields}` where nested structs repeat the shape.
type FieldsWithTypes struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// ParsedData is the parsed content of an object fetched from a node.
type ParsedData struct {
	DataType          string         `json:"dataType"`
	Type              string         `json:"type"`
	HasPublicTransfer bool           `json:"hasPublicTransfer"`
	Fields            map[string]any `json:"fields"`
}

// RawObject is the binary content of an object fetched from a node.
type RawObject struct {
	DataType string `json:"dataType"`
	Type     string `json:"type"`
	BCSBytes []byte `json:"bcsBytes"`
}

// DataTypeMoveObject is the only DataType the object adapters accept.
const DataTypeMoveObject = "moveObject"

func (s *Struct) Kind() ArgKind        { return KindStruct }
func (s *Struct) Tag() typetag.TypeTag { return s.tag }
func (s *Struct) String() string       { return s.full }

// TypeName returns the bare struct name, e.g. `0x2::coin::Coin`.
func (s *Struct) TypeName() string { return s.decl.Name }

// FullTypeName returns the compressed full tag, e.g.
// `0x2::coin::Coin<0x2::sui::SUI>`.
func (s *Struct) FullTypeName() string { return s.full }

// Decl returns the declaration s was resolved from.
func (s *Struct) Decl() *StructDecl { return s.decl }

// TypeArgs returns the resolved type arguments. Phantom parameters are
// *Phantom stubs.
func (s *Struct) TypeArgs() []TypeArg {
	return append([]TypeArg(nil), s.typeArgs...)
}

// TypeArgStrings returns the compressed tag of every type argument.
func (s *Struct) TypeArgStrings() []string {
	out := make([]string, len(s.typeArgs))
	for i, a := range s.typeArgs {
		out[i] = a.String()
	}
	return out
}

// FieldNames returns the exposed field names in binary order.
func (s *Struct) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// FieldType returns the resolved descriptor of the named field.
func (s *Struct) FieldType(name string) (TypeArg, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].arg, true
}

// Is reports whether tag names this struct, ignoring type arguments.
func (s *Struct) Is(tag string) bool {
	name, _, err := typetag.ParseTypeName(tag)
	return err == nil && name == s.decl.Name
}

// Layout returns the binary schema.
func (s *Struct) Layout() (Layout, error) {
	l, err := s.layout()
	return l, stamp(err, OpResolve, s.full, nil)
}

// FromFields decodes an instance from a raw field map keyed by wire name.
// Extra keys are ignored.
func (s *Struct) FromFields(fields map[string]any) (*Instance, error) {
	inst, err := s.decodeFields(fields)
	return inst, stamp(err, OpFromFields, s.full, fields)
}

// FromFieldsWithTypes decodes an instance from its typed-fields form after
// checking the reported type against s.
func (s *Struct) FromFieldsWithTypes(item FieldsWithTypes) (*Instance, error) {
	inst, err := s.decodeTyped(item)
	return inst, stamp(err, OpFromFieldsWithTypes, s.full, item)
}

// FromBCS decodes an instance from its complete binary encoding.
func (s *Struct) FromBCS(data []byte) (*Instance, error) {
	inst, err := s.decodeBCS(data)
	return inst, stamp(err, OpFromBCS, s.full, data)
}

// FromJSONField decodes an instance from its JSON field object, keyed by
// exposed name.
func (s *Struct) FromJSONField(field map[string]any) (*Instance, error) {
	inst, err := s.decodeJSONField(field)
	return inst, stamp(err, OpFromJSONField, s.full, field)
}

// FromJSON decodes an instance from its JSON object after checking the
// `$typeName` and `$typeArgs` markers.
func (s *Struct) FromJSON(obj map[string]any) (*Instance, error) {
	inst, err := s.decodeJSON(obj)
	return inst, stamp(err, OpFromJSON, s.full, obj)
}

// FromJSONBytes is FromJSON over an encoded document. Numbers are kept
// exact.
func (s *Struct) FromJSONBytes(data []byte) (*Instance, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, stamp(newError(ErrInvalidValue, "%w", err), OpFromJSON, s.full, string(data))
	}
	return s.FromJSON(obj)
}

// FromParsedData decodes the parsed content of a fetched object.
func (s *Struct) FromParsedData(content ParsedData) (*Instance, error) {
	inst, err := s.decodeParsed(content)
	return inst, stamp(err, OpFromParsedData, s.full, content)
}

// FromRawObject decodes the binary content of a fetched object.
func (s *Struct) FromRawObject(obj RawObject) (*Instance, error) {
	inst, err := s.decodeRawObject(obj)
	return inst, stamp(err, OpFromRawObject, s.full, obj)
}

// New builds an instance from field values keyed by exposed name. Values are
// validated and normalised the same way FromFields does.
func (s *Struct) New(values map[string]any) (*Instance, error) {
	inst, err := s.build(values)
	return inst, stamp(err, OpNew, s.full, values)
}

func (s *Struct) decodeFields(fields map[string]any) (*Instance, error) {
	if fields == nil {
		return nil, mismatch(ErrInvalidValue, -1, "field map", "null")
	}
	values := make([]any, len(s.fields))
	for i, f := range s.fields {
		raw, ok := fields[f.wire]
		if !ok {
			return nil, atField(newError(ErrMissingField, "%s", f.wire), f.wire)
		}
		v, err := f.arg.fromRaw(raw)
		if err != nil {
			return nil, atField(err, f.wire)
		}
		values[i] = v
	}
	return &Instance{desc: s, values: values}, nil
}

// checkType verifies a reported full type against s: the bare name first,
// then every type argument.
func (s *Struct) checkType(reported string) error {
	name, args, err := typetag.ParseTypeName(reported)
	if err != nil {
		return &DecodeError{Kind: ErrTagMismatch, Position: -1, Expected: s.full, Got: reported, Err: err}
	}
	if name != s.decl.Name {
		return mismatch(ErrWrongStructKind, -1, s.decl.Name, name)
	}
	return s.checkArgs(reported, args)
}

func (s *Struct) checkArgs(fullType string, args []string) error {
	err := typetag.MatchArgs(fullType, args, s.TypeArgStrings())
	if err == nil {
		return nil
	}
	var mm *typetag.MismatchError
	if errors.As(err, &mm) {
		if mm.Position < 0 {
			return mismatch(ErrTagMismatch, -1, mm.Expected+" type arguments", mm.Got)
		}
		return mismatch(ErrTagMismatch, mm.Position, mm.Expected, mm.Got)
	}
	return &DecodeError{Kind: ErrTagMismatch, Position: -1, Err: err}
}

func (s *Struct) decodeTyped(item FieldsWithTypes) (*Instance, error) {
	if err := s.checkType(item.Type); err != nil {
		return nil, err
	}
	if item.Fields == nil {
		return nil, mismatch(ErrInvalidValue, -1, "fields", "null")
	}
	values := make([]any, len(s.fields))
	for i, f := range s.fields {
		raw, ok := item.Fields[f.wire]
		if !ok {
			return nil, atField(newError(ErrMissingField, "%s", f.wire), f.wire)
		}
		v, err := f.arg.fromTyped(raw)
		if err != nil {
			return nil, atField(err, f.wire)
		}
		values[i] = v
	}
	return &Instance{desc: s, values: values}, nil
}

func (s *Struct) decodeBCS(data []byte) (*Instance, error) {
	raw, err := bcs.Unmarshal(data, s.parseStruct)
	if err != nil {
		return nil, binaryError(err)
	}
	return s.decodeFields(raw)
}

func (s *Struct) decodeJSONField(obj map[string]any) (*Instance, error) {
	if obj == nil {
		return nil, mismatch(ErrInvalidValue, -1, "object", "null")
	}
	values := make([]any, len(s.fields))
	for i, f := range s.fields {
		raw, ok := obj[f.name]
		if !ok {
			return nil, atField(newError(ErrMissingField, "%s", f.name), f.name)
		}
		v, err := f.arg.fromJSON(raw)
		if err != nil {
			return nil, atField(err, f.name)
		}
		values[i] = v
	}
	return &Instance{desc: s, values: values}, nil
}

func (s *Struct) decodeJSON(obj map[string]any) (*Instance, error) {
	if obj == nil {
		return nil, mismatch(ErrInvalidValue, -1, "object", "null")
	}
	name, ok := obj["$typeName"].(string)
	if !ok {
		return nil, newError(ErrTagMismatch, "missing $typeName")
	}
	if c, err := typetag.Compress(name); err != nil || c != s.decl.Name {
		return nil, mismatch(ErrWrongStructKind, -1, s.decl.Name, name)
	}
	args, err := jsonTypeArgs(obj)
	if err != nil {
		return nil, err
	}
	if err := s.checkArgs(typetag.Compose(name, args...), args); err != nil {
		return nil, err
	}
	return s.decodeJSONField(obj)
}

// jsonTypeArgs reads `$typeArgs` or, for single-parameter types, `$typeArg`.
func jsonTypeArgs(obj map[string]any) ([]string, error) {
	if v, ok := obj["$typeArgs"]; ok && v != nil {
		items, err := asSlice(v)
		if err != nil {
			return nil, newError(ErrTagMismatch, "$typeArgs: %w", err)
		}
		out := make([]string, len(items))
		for i, item := range items {
			str, ok := item.(string)
			if !ok {
				return nil, newError(ErrTagMismatch, "$typeArgs[%d] is %T, not a tag string", i, item)
			}
			out[i] = str
		}
		return out, nil
	}
	if v, ok := obj["$typeArg"]; ok && v != nil {
		str, ok := v.(string)
		if !ok {
			return nil, newError(ErrTagMismatch, "$typeArg is %T, not a tag string", v)
		}
		return []string{str}, nil
	}
	return nil, nil
}

func (s *Struct) decodeParsed(content ParsedData) (*Instance, error) {
	if content.DataType != DataTypeMoveObject {
		return nil, newError(ErrUnsupportedSource, "content is %q, not a %s", content.DataType, DataTypeMoveObject)
	}
	if !s.Is(content.Type) {
		return nil, mismatch(ErrWrongStructKind, -1, s.decl.Name, content.Type)
	}
	return s.decodeTyped(FieldsWithTypes{Type: content.Type, Fields: content.Fields})
}

func (s *Struct) decodeRawObject(obj RawObject) (*Instance, error) {
	if obj.DataType != DataTypeMoveObject {
		return nil, newError(ErrUnsupportedSource, "object is %q, not a %s", obj.DataType, DataTypeMoveObject)
	}
	if err := s.checkType(obj.Type); err != nil {
		return nil, err
	}
	return s.decodeBCS(obj.BCSBytes)
}

func (s *Struct) build(values map[string]any) (*Instance, error) {
	out := make([]any, len(s.fields))
	for i, f := range s.fields {
		v, ok := values[f.name]
		if !ok {
			return nil, atField(newError(ErrMissingField, "%s", f.name), f.name)
		}
		raw, err := f.arg.toRaw(v)
		if err != nil {
			return nil, atField(err, f.name)
		}
		if out[i], err = f.arg.fromRaw(raw); err != nil {
			return nil, atField(err, f.name)
		}
	}
	return &Instance{desc: s, values: out}, nil
}

// parseStruct reads the fields in binary order into a raw map keyed by wire
// name.
func (s *Struct) parseStruct(r *bcs.Reader) map[string]any {
	if s.special == wkOption {
		return s.parseOption(r)
	}
	raw := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		raw[f.wire] = f.arg.parseBCS(r)
		if r.Error() != nil {
			return nil
		}
	}
	return raw
}

// parseOption reads Option<T>, whose length prefix must be 0 or 1.
func (s *Struct) parseOption(r *bcs.Reader) map[string]any {
	v, err := bcs.DecodeOption(r, s.optionElem().parseBCS)
	if err != nil {
		return nil
	}
	vec := []any{}
	if v != nil {
		vec = append(vec, *v)
	}
	return map[string]any{s.fields[0].wire: vec}
}

func (s *Struct) parseBCS(r *bcs.Reader) any {
	raw := s.parseStruct(r)
	if raw == nil {
		return nil
	}
	return raw
}

func (s *Struct) writeBCS(w *bcs.Writer, raw any) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return mismatch(ErrInvalidValue, -1, s.full, fmt.Sprintf("%T", raw))
	}
	for _, f := range s.fields {
		v, ok := m[f.wire]
		if !ok {
			return atField(newError(ErrMissingField, "%s", f.wire), f.wire)
		}
		if err := f.arg.writeBCS(w, v); err != nil {
			return atField(err, f.wire)
		}
	}
	return w.Error()
}

func (s *Struct) fromRaw(raw any) (any, error) {
	if s.collapsed() {
		return s.collapse(raw)
	}
	if inst, ok := raw.(*Instance); ok {
		return s.adopt(inst)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, mismatch(ErrInvalidValue, -1, s.full, fmt.Sprintf("%T", raw))
	}
	return s.decodeFields(m)
}

func (s *Struct) toRaw(v any) (any, error) {
	if s.collapsed() {
		return s.expand(v)
	}
	inst, ok := v.(*Instance)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			built, err := s.build(m)
			if err != nil {
				return nil, err
			}
			inst = built
		} else {
			return nil, mismatch(ErrInvalidValue, -1, s.full, fmt.Sprintf("%T", v))
		}
	}
	if _, err := s.adopt(inst); err != nil {
		return nil, err
	}
	return inst.raw()
}

// adopt accepts an existing instance of exactly this type.
func (s *Struct) adopt(inst *Instance) (*Instance, error) {
	if inst == nil {
		return nil, mismatch(ErrInvalidValue, -1, s.full, "nil")
	}
	if inst.desc.full != s.full {
		return nil, mismatch(ErrTagMismatch, -1, s.full, inst.desc.full)
	}
	return inst, nil
}

func (s *Struct) fromTyped(item any) (any, error) {
	switch s.special {
	case wkNone:
	case wkBalance:
		if _, isMap := item.(map[string]any); !isMap {
			if _, isTyped := item.(FieldsWithTypes); !isTyped {
				return s.decodeFields(map[string]any{s.fields[0].wire: item})
			}
		}
	default:
		return s.collapsedTyped(item)
	}
	typed, err := asFieldsWithTypes(item)
	if err != nil {
		return nil, err
	}
	return s.decodeTyped(typed)
}

func asFieldsWithTypes(item any) (FieldsWithTypes, error) {
	switch x := item.(type) {
	case FieldsWithTypes:
		return x, nil
	case *FieldsWithTypes:
		if x != nil {
			return *x, nil
		}
	case map[string]any:
		typ, _ := x["type"].(string)
		fields, _ := x["fields"].(map[string]any)
		if typ != "" && fields != nil {
			return FieldsWithTypes{Type: typ, Fields: fields}, nil
		}
	}
	return FieldsWithTypes{}, mismatch(ErrInvalidValue, -1, "{type, fields}", fmt.Sprintf("%T", item))
}

func (s *Struct) fromJSON(v any) (any, error) {
	if s.collapsed() {
		return s.collapsedJSON(v)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(ErrInvalidValue, -1, "object", fmt.Sprintf("%T", v))
	}
	return s.decodeJSONField(obj)
}

func (s *Struct) toJSON(v any) any {
	if s.collapsed() {
		return s.collapsedToJSON(v)
	}
	if inst, ok := v.(*Instance); ok {
		return inst.ToJSONField()
	}
	return nil
}

func (s *Struct) equal(a, b any) bool { return valuesEqual(a, b) }

func (s *Struct) layout() (Layout, error) {
	l := Layout{Kind: "struct", Type: s.full}
	for _, f := range s.fields {
		fl, err := f.arg.layout()
		if err != nil {
			return Layout{}, atField(err, f.wire)
		}
		fl.Field = f.wire
		l.Fields = append(l.Fields, fl)
	}
	return l, nil
}
