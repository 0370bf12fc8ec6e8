package reified

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/movegen/reified/internal/bcs"
	"github.com/movegen/reified/pkg/typetag"
)

// Vector is the codec of `vector<T>`. `vector<u8>` values are []byte; every
// other vector holds []any of its element's field values.
type Vector struct {
	elem TypeArg
	tag  typetag.TypeTag
}

// VectorOf returns the vector codec over elem.
func VectorOf(elem TypeArg) *Vector {
	return &Vector{elem: elem, tag: typetag.Vector(elem.Tag())}
}

func (v *Vector) Kind() ArgKind        { return KindVector }
func (v *Vector) Tag() typetag.TypeTag { return v.tag }
func (v *Vector) String() string       { return v.tag.String() }

// Elem returns the element descriptor.
func (v *Vector) Elem() TypeArg { return v.elem }

func (v *Vector) isBytes() bool { return v.elem == U8 }

func (v *Vector) parseBCS(r *bcs.Reader) any {
	if v.isBytes() {
		return r.ReadBytes()
	}
	items, err := bcs.DecodeVector(r, v.String(), v.elem.parseBCS)
	if err != nil {
		return nil
	}
	return items
}

func (v *Vector) writeBCS(w *bcs.Writer, raw any) error {
	if v.isBytes() {
		b, err := toBytes(raw)
		if err != nil {
			return err
		}
		w.WriteBytes(b)
		return w.Error()
	}
	items, err := asSlice(raw)
	if err != nil {
		return err
	}
	err = bcs.EncodeVector(w, items, v.elem.writeBCS)
	var ee *bcs.ElementError
	if errors.As(err, &ee) {
		return atIndex(ee.Err, ee.Index)
	}
	return err
}

// each applies fn to every element, attaching the index to failures.
func (v *Vector) each(in any, fn func(any) (any, error)) (any, error) {
	if v.isBytes() {
		if b, ok := in.([]byte); ok {
			return append([]byte{}, b...), nil
		}
	}
	items, err := asSlice(in)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		if out[i], err = fn(item); err != nil {
			return nil, atIndex(err, i)
		}
	}
	if v.isBytes() {
		b := make([]byte, len(out))
		for i, x := range out {
			b[i] = x.(uint8)
		}
		return b, nil
	}
	return out, nil
}

func (v *Vector) fromRaw(raw any) (any, error)    { return v.each(raw, v.elem.fromRaw) }
func (v *Vector) fromTyped(item any) (any, error) { return v.each(item, v.elem.fromTyped) }
func (v *Vector) fromJSON(field any) (any, error) { return v.each(field, v.elem.fromJSON) }
func (v *Vector) toRaw(val any) (any, error)      { return v.each(val, v.elem.toRaw) }

func (v *Vector) toJSON(val any) any {
	if b, ok := val.([]byte); ok {
		out := make([]any, len(b))
		for i, x := range b {
			out[i] = x
		}
		return out
	}
	items, err := asSlice(val)
	if err != nil {
		return nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = v.elem.toJSON(item)
	}
	return out
}

func (v *Vector) equal(a, b any) bool {
	x, errA := asSlice(a)
	y, errB := asSlice(b)
	if errA != nil || errB != nil || len(x) != len(y) {
		return false
	}
	for i := range x {
		if !v.elem.equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

func (v *Vector) layout() (Layout, error) {
	elem, err := v.elem.layout()
	if err != nil {
		return Layout{}, err
	}
	return Layout{Kind: "vector", Type: v.String(), Elem: &elem}, nil
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	default:
		return nil, &DecodeError{Kind: ErrInvalidValue, Position: -1, Expected: "vector<u8>", Got: fmt.Sprintf("%T", v)}
	}
}

// asSlice accepts []any, []byte or any other slice or array kind.
func asSlice(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []byte:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case nil:
		return nil, &DecodeError{Kind: ErrInvalidValue, Position: -1, Expected: "sequence", Got: "null"}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &DecodeError{Kind: ErrInvalidValue, Position: -1, Expected: "sequence", Got: fmt.Sprintf("%T", v)}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
