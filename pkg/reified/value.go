package reified

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/movegen/reified/pkg/typetag"
)

// Addr is a 32-byte on-chain address or object ID. Its text form is `0x`
// followed by 64 lowercase hex digits.
type Addr [typetag.AddressLength]byte

// ParseAddr parses a hex address with or without the 0x prefix. Short forms
// are left-padded with zeros.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" || len(digits) > 2*len(a) {
		return a, fmt.Errorf("invalid address %q: expected 1 to %d hex digits", s, 2*len(a))
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[len(a)-len(b):], b)
	return a, nil
}

// MustParseAddr is like ParseAddr but panics on malformed input.
func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the long hex form.
func (a Addr) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns the compressed hex form used inside type tags.
func (a Addr) Short() string {
	s, _ := typetag.CompressAddress(a.String())
	return s
}

// IsZero reports whether every byte is zero.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(text []byte) error {
	v, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Option is the field value of `0x1::option::Option<T>`.
type Option struct {
	Valid bool
	Value any
}

// Some wraps a present value.
func Some(v any) Option {
	return Option{Valid: true, Value: v}
}

// None returns an absent value.
func None() Option {
	return Option{}
}

func (o Option) String() string {
	if !o.Valid {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.Value)
}

// cloneValue copies the mutable containers of a field value. Instances are
// immutable and shared.
func cloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case Option:
		if x.Valid {
			return Some(cloneValue(x.Value))
		}
		return x
	default:
		return v
	}
}

// valuesEqual compares two field values structurally.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case Option:
		y, ok := b.(Option)
		if !ok || x.Valid != y.Valid {
			return false
		}
		return !x.Valid || valuesEqual(x.Value, y.Value)
	case *Instance:
		y, ok := b.(*Instance)
		return ok && x.Equal(y)
	case uint256.Int:
		y, ok := b.(uint256.Int)
		return ok && x.Eq(&y)
	default:
		return a == b
	}
}
