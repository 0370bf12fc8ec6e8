package reified

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. A *DecodeError matches exactly one of these with errors.Is;
// ErrWrongStructKind additionally matches ErrTagMismatch.
var (
	ErrTagMismatch        = errors.New("reified: tag mismatch")
	ErrWrongStructKind    = errors.New("reified: wrong struct kind")
	ErrMissingField       = errors.New("reified: missing field")
	ErrMalformedBinary    = errors.New("reified: malformed binary")
	ErrUnsupportedSource  = errors.New("reified: unsupported source")
	ErrPhantomMisuse      = errors.New("reified: phantom type argument cannot be decoded")
	ErrInvalidValue       = errors.New("reified: invalid value")
	ErrUnknownType        = errors.New("reified: unknown type")
	ErrInvalidDeclaration = errors.New("reified: invalid declaration")
)

// Capability names recorded in DecodeError.Op.
const (
	OpFromFields          = "fromFields"
	OpFromFieldsWithTypes = "fromFieldsWithTypes"
	OpFromBCS             = "fromBcs"
	OpFromJSONField       = "fromJSONField"
	OpFromJSON            = "fromJSON"
	OpFromParsedData      = "fromParsedData"
	OpFromRawObject       = "fromRawObject"
	OpToBCS               = "toBcs"
	OpNew                 = "new"
	OpResolve             = "resolve"
)

// DecodeError describes a failed decode, encode or resolution. Path lists
// the field names from the outermost struct down to the offending value.
type DecodeError struct {
	Op       string
	Type     string
	Path     []string
	Kind     error
	Expected string
	Got      string
	Position int
	Input    any
	Err      error
}

func newError(kind error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Position: -1, Err: fmt.Errorf(format, args...)}
}

func mismatch(kind error, position int, expected, got string) *DecodeError {
	return &DecodeError{Kind: kind, Position: position, Expected: expected, Got: got}
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("reified:")
	if e.Op != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Op)
	}
	if e.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Type)
	}
	if p := e.FieldPath(); p != "" {
		sb.WriteString(": field ")
		sb.WriteString(p)
	}
	sb.WriteString(": ")
	sb.WriteString(strings.TrimPrefix(e.Kind.Error(), "reified: "))
	if e.Expected != "" || e.Got != "" {
		if e.Position >= 0 {
			fmt.Fprintf(&sb, " at type argument %d", e.Position)
		}
		fmt.Fprintf(&sb, " (expected %s, got %s)", e.Expected, e.Got)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// FieldPath renders Path as `outer.inner[2].leaf`.
func (e *DecodeError) FieldPath() string {
	var sb strings.Builder
	for i, p := range e.Path {
		if i > 0 && !strings.HasPrefix(p, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func (e *DecodeError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrWrongStructKind && target == ErrTagMismatch
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// asDecodeError converts any error into a *DecodeError, defaulting to
// ErrInvalidValue for foreign errors.
func asDecodeError(err error) *DecodeError {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	return &DecodeError{Kind: ErrInvalidValue, Position: -1, Err: err}
}

// atField prepends a path element to err.
func atField(err error, name string) error {
	if err == nil {
		return nil
	}
	de := *asDecodeError(err)
	de.Path = append([]string{name}, de.Path...)
	return &de
}

func atIndex(err error, i int) error {
	return atField(err, fmt.Sprintf("[%d]", i))
}

// stamp fills in the capability and type for an error leaving a public
// entry point. Errors already stamped by an inner entry point keep their
// original capability and type.
func stamp(err error, op, typ string, input any) error {
	if err == nil {
		return nil
	}
	de := *asDecodeError(err)
	if de.Op == "" {
		de.Op = op
		de.Type = typ
	}
	if de.Input == nil {
		de.Input = input
	}
	return &de
}
