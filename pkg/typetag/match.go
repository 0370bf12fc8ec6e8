package typetag

import (
	"strconv"
)

// MatchArgs checks that every supplied type argument equals the expected one
// after compression. fullType only labels the error. It returns a
// *MismatchError for the first differing position, or for an arity mismatch.
func MatchArgs(fullType string, supplied, expected []string) error {
	if len(supplied) != len(expected) {
		return &MismatchError{
			FullType: fullType,
			Position: -1,
			Expected: strconv.Itoa(len(expected)),
			Got:      strconv.Itoa(len(supplied)),
		}
	}
	for i := range supplied {
		if !Same(supplied[i], expected[i]) {
			return &MismatchError{
				FullType: fullType,
				Position: i,
				Expected: expected[i],
				Got:      supplied[i],
			}
		}
	}
	return nil
}

// Same reports whether two tag strings name the same type. Malformed strings
// only match if they are byte-identical.
func Same(a, b string) bool {
	if a == b {
		return true
	}
	ca, err := Compress(a)
	if err != nil {
		return false
	}
	cb, err := Compress(b)
	if err != nil {
		return false
	}
	return ca == cb
}
