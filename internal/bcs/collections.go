package bcs

import (
	"bytes"
	"fmt"
)

// ElementError reports which element of a sequence failed.
type ElementError struct {
	Index int
	Err   error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// EncodeVector encodes a length-prefixed sequence using the provided element
// encoder. It stops at the first failing element.
func EncodeVector[T any](w *Writer, items []T, encodeElement func(*Writer, T) error) error {
	w.WriteLength(len(items))
	for i, item := range items {
		if w.Error() != nil {
			break
		}
		if err := encodeElement(w, item); err != nil {
			return &ElementError{Index: i, Err: err}
		}
	}
	return w.Error()
}

// DecodeVector decodes a length-prefixed sequence of typ using the provided
// element decoder.
func DecodeVector[T any](r *Reader, typ string, decodeElement func(*Reader) T) ([]T, error) {
	n := r.ReadSequenceLength(typ)
	if r.Error() != nil {
		return nil, r.Error()
	}
	result := make([]T, 0, n)
	for i := 0; i < n; i++ {
		element := decodeElement(r)
		if err := r.Error(); err != nil {
			return nil, &ElementError{Index: i, Err: err}
		}
		result = append(result, element)
	}
	return result, nil
}

// DecodeOption decodes an optional value, encoded as a vector of zero or one
// element. Any other length is malformed.
func DecodeOption[T any](r *Reader, decodeValue func(*Reader) T) (*T, error) {
	start := r.pos
	n := r.ReadLength()
	if err := r.Error(); err != nil {
		return nil, err
	}
	switch n {
	case 0:
		return nil, nil
	case 1:
		v := decodeValue(r)
		if err := r.Error(); err != nil {
			return nil, err
		}
		return &v, nil
	default:
		r.pos = start
		r.Fail("option", fmt.Sprintf("length %d", n), ErrInvalidOption)
		return nil, r.Error()
	}
}

// Marshal runs encode against a fresh buffer and returns the bytes.
func Marshal(encode func(*Writer)) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	encode(w)
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal runs decode over data and requires it to consume every byte.
func Unmarshal[T any](data []byte, decode func(*Reader) T) (T, error) {
	r := NewReader(data)
	v := decode(r)
	if err := r.Finish(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
