package reified

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/movegen/reified/internal/bcs"
	"github.com/movegen/reified/pkg/typetag"
)

// Primitive is the codec of a built-in scalar kind. The package-level
// values are the only instances.
type Primitive struct {
	kind  typetag.Kind
	bits  int
	width int
}

var (
	Bool    = &Primitive{kind: typetag.KindBool, width: 1}
	U8      = &Primitive{kind: typetag.KindU8, bits: 8, width: 1}
	U16     = &Primitive{kind: typetag.KindU16, bits: 16, width: 2}
	U32     = &Primitive{kind: typetag.KindU32, bits: 32, width: 4}
	U64     = &Primitive{kind: typetag.KindU64, bits: 64, width: 8}
	U128    = &Primitive{kind: typetag.KindU128, bits: 128, width: 16}
	U256    = &Primitive{kind: typetag.KindU256, bits: 256, width: 32}
	Address = &Primitive{kind: typetag.KindAddress, width: typetag.AddressLength}
)

var primitives = map[typetag.Kind]*Primitive{
	typetag.KindBool:    Bool,
	typetag.KindU8:      U8,
	typetag.KindU16:     U16,
	typetag.KindU32:     U32,
	typetag.KindU64:     U64,
	typetag.KindU128:    U128,
	typetag.KindU256:    U256,
	typetag.KindAddress: Address,
}

// PrimitiveOf returns the shared codec for k. signer has no value
// representation and is not a primitive codec.
func PrimitiveOf(k typetag.Kind) (*Primitive, bool) {
	p, ok := primitives[k]
	return p, ok
}

func (p *Primitive) Kind() ArgKind        { return KindPrimitive }
func (p *Primitive) Tag() typetag.TypeTag { return typetag.Primitive(p.kind) }
func (p *Primitive) String() string       { return p.kind.String() }

// Width returns the fixed binary width in bytes.
func (p *Primitive) Width() int { return p.width }

func (p *Primitive) parseBCS(r *bcs.Reader) any {
	switch p.kind {
	case typetag.KindBool:
		return r.ReadBool()
	case typetag.KindU8:
		return r.ReadU8()
	case typetag.KindU16:
		return r.ReadU16()
	case typetag.KindU32:
		return r.ReadU32()
	case typetag.KindU64:
		return r.ReadU64()
	case typetag.KindU128:
		return r.ReadU128()
	case typetag.KindU256:
		return r.ReadU256()
	default:
		return Addr(r.ReadAddress())
	}
}

func (p *Primitive) writeBCS(w *bcs.Writer, raw any) error {
	v, err := p.coerce(raw)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		w.WriteBool(x)
	case uint8:
		w.WriteU8(x)
	case uint16:
		w.WriteU16(x)
	case uint32:
		w.WriteU32(x)
	case uint64:
		w.WriteU64(x)
	case uint256.Int:
		if p.kind == typetag.KindU128 {
			w.WriteU128(&x)
		} else {
			w.WriteU256(&x)
		}
	case Addr:
		w.WriteAddress(x)
	}
	return w.Error()
}

func (p *Primitive) fromRaw(raw any) (any, error)    { return p.coerce(raw) }
func (p *Primitive) toRaw(v any) (any, error)        { return p.coerce(v) }
func (p *Primitive) fromTyped(item any) (any, error) { return p.coerce(item) }
func (p *Primitive) fromJSON(v any) (any, error)     { return p.coerce(v) }

func (p *Primitive) toJSON(v any) any {
	switch x := v.(type) {
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint256.Int:
		return x.Dec()
	case Addr:
		return x.String()
	default:
		return v
	}
}

func (p *Primitive) equal(a, b any) bool { return valuesEqual(a, b) }

func (p *Primitive) layout() (Layout, error) {
	return Layout{Kind: p.kind.String(), Type: p.String(), Width: p.width}, nil
}

// coerce converts any accepted representation of a primitive into its
// canonical field value: bool, uint8…uint64, uint256.Int or Addr.
func (p *Primitive) coerce(v any) (any, error) {
	switch p.kind {
	case typetag.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, p.invalid(v)
		}
		return b, nil
	case typetag.KindAddress:
		return coerceAddr(v)
	case typetag.KindU128, typetag.KindU256:
		z, err := coerceWide(v, p.bits)
		if err != nil {
			return nil, p.wrap(v, err)
		}
		return z, nil
	}
	n, err := coerceUint(v, p.bits)
	if err != nil {
		return nil, p.wrap(v, err)
	}
	switch p.kind {
	case typetag.KindU8:
		return uint8(n), nil
	case typetag.KindU16:
		return uint16(n), nil
	case typetag.KindU32:
		return uint32(n), nil
	default:
		return n, nil
	}
}

func (p *Primitive) invalid(v any) error {
	return &DecodeError{Kind: ErrInvalidValue, Position: -1, Expected: p.String(), Got: fmt.Sprintf("%T", v)}
}

func (p *Primitive) wrap(v any, err error) error {
	return newError(ErrInvalidValue, "%s from %T: %w", p.String(), v, err)
}

func coerceUint(v any, bits int) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case uint:
		n = uint64(x)
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d", x)
		}
		n = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d", x)
		}
		n = uint64(x)
	case int32:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d", x)
		}
		n = uint64(x)
	case float64:
		if x < 0 || x != math.Trunc(x) || x > 1<<53 {
			return 0, fmt.Errorf("%v is not an exactly representable unsigned integer", x)
		}
		n = uint64(x)
	case json.Number:
		return strconv.ParseUint(string(x), 10, bits)
	case string:
		return strconv.ParseUint(x, 10, bits)
	case uint256.Int:
		if !x.IsUint64() {
			return 0, fmt.Errorf("%s overflows %d bits", x.Dec(), bits)
		}
		n = x.Uint64()
	default:
		return 0, fmt.Errorf("unsupported representation")
	}
	if bits < 64 && n >= 1<<uint(bits) {
		return 0, fmt.Errorf("%d overflows %d bits", n, bits)
	}
	return n, nil
}

func coerceWide(v any, bits int) (uint256.Int, error) {
	var z uint256.Int
	switch x := v.(type) {
	case uint256.Int:
		z = x
	case *uint256.Int:
		if x == nil {
			return z, fmt.Errorf("nil integer")
		}
		z = *x
	case *big.Int:
		b, overflow := uint256.FromBig(x)
		if overflow || x.Sign() < 0 {
			return z, fmt.Errorf("%s out of range", x)
		}
		z = *b
	case string:
		b, err := uint256.FromDecimal(x)
		if err != nil {
			return z, err
		}
		z = *b
	case json.Number:
		b, err := uint256.FromDecimal(string(x))
		if err != nil {
			return z, err
		}
		z = *b
	default:
		n, err := coerceUint(v, 64)
		if err != nil {
			return z, err
		}
		z.SetUint64(n)
	}
	if z.BitLen() > bits {
		return z, fmt.Errorf("%s overflows %d bits", z.Dec(), bits)
	}
	return z, nil
}

func coerceAddr(v any) (any, error) {
	switch x := v.(type) {
	case Addr:
		return x, nil
	case [typetag.AddressLength]byte:
		return Addr(x), nil
	case []byte:
		if len(x) != typetag.AddressLength {
			return nil, newError(ErrInvalidValue, "address must be %d bytes, got %d", typetag.AddressLength, len(x))
		}
		var a Addr
		copy(a[:], x)
		return a, nil
	case string:
		a, err := ParseAddr(x)
		if err != nil {
			return nil, newError(ErrInvalidValue, "%w", err)
		}
		return a, nil
	default:
		return nil, &DecodeError{Kind: ErrInvalidValue, Position: -1, Expected: "address", Got: fmt.Sprintf("%T", v)}
	}
}
