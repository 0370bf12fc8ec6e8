package typetag

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax   = errors.New("typetag: syntax error")
	ErrMismatch = errors.New("typetag: type argument mismatch")
)

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("typetag: "+format, args...)
}

// SyntaxError reports where a tag string failed to parse.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func syntaxErrorf(input string, pos int, format string, args ...interface{}) error {
	return &SyntaxError{Input: input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("typetag: syntax error in %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// MismatchError reports the first type argument that did not match.
// Position is -1 when the argument counts differ.
type MismatchError struct {
	FullType string
	Position int
	Expected string
	Got      string
}

func (e *MismatchError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("typetag: %s has mismatching number of type arguments (expected %s, got %s)",
			e.FullType, e.Expected, e.Got)
	}
	return fmt.Sprintf("typetag: %s has mismatching type argument %d (expected %s, got %s)",
		e.FullType, e.Position, e.Expected, e.Got)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}
