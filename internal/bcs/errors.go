package bcs

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEOF      = errors.New("bcs: unexpected end of input")
	ErrTrailingBytes      = errors.New("bcs: trailing bytes after value")
	ErrInvalidBool        = errors.New("bcs: invalid bool byte")
	ErrLengthOverflow     = errors.New("bcs: uleb128 length overflow")
	ErrNonCanonicalLength = errors.New("bcs: non-canonical uleb128 length")
	ErrInvalidOption      = errors.New("bcs: option length is neither 0 nor 1")
	ErrValueOverflow      = errors.New("bcs: value does not fit in type")
)

// EncodingError represents an error during BCS encoding
type EncodingError struct {
	Type   string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bcs encoding error for %s: %s: %v", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("bcs encoding error for %s: %s", e.Type, e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DecodingError represents an error during BCS decoding
type DecodingError struct {
	Type   string
	Reason string
	Offset int
	Err    error
}

func (d *DecodingError) Error() string {
	if d.Err != nil {
		return fmt.Sprintf("bcs decoding error for %s at offset %d: %s: %v", d.Type, d.Offset, d.Reason, d.Err)
	}
	return fmt.Sprintf("bcs decoding error for %s at offset %d: %s", d.Type, d.Offset, d.Reason)
}

func (d *DecodingError) Unwrap() error {
	return d.Err
}
