// Package bcs implements the binary canonical serialization used for
// on-chain objects: fixed-width little-endian integers, one-byte booleans,
// 32-byte addresses and ULEB128 length prefixes for sequences. Values carry
// no tags or framing; the caller's schema decides what comes next.
package bcs

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

const (
	// MaxSequenceLength is the largest length prefix BCS allows.
	MaxSequenceLength = 1<<31 - 1
	// AddressLength is the byte width of an address.
	AddressLength = 32
)

// Reader decodes BCS values from a byte slice. It keeps the first error
// encountered; every later read returns zero values, so callers may check
// Error once after a sequence of reads.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader creates a Reader over buf. The slice is not copied.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Error returns the first error that occurred during reading, if any.
func (r *Reader) Error() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Fail records err as the reader's error unless one is already set. Schema
// code uses it to report semantic failures at the current offset.
func (r *Reader) Fail(typ, reason string, err error) {
	if r.err == nil {
		r.err = &DecodingError{Type: typ, Reason: reason, Offset: r.pos, Err: err}
	}
}

// Finish reports an error if reading failed or if unread bytes remain.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if n := r.Remaining(); n > 0 {
		return &DecodingError{Type: "value", Reason: "unconsumed input", Offset: r.pos, Err: ErrTrailingBytes}
	}
	return nil
}

func (r *Reader) take(n int, typ string) []byte {
	if r.err != nil {
		return nil
	}
	if n > r.Remaining() {
		r.Fail(typ, "read failed", ErrUnexpectedEOF)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// ReadBool decodes a boolean, rejecting any byte other than 0 or 1.
func (r *Reader) ReadBool() bool {
	b := r.take(1, "bool")
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.pos--
		r.Fail("bool", "invalid byte", ErrInvalidBool)
		return false
	}
}

// ReadU8 decodes a uint8 value.
func (r *Reader) ReadU8() uint8 {
	b := r.take(1, "u8")
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU16 decodes a little-endian uint16 value.
func (r *Reader) ReadU16() uint16 {
	b := r.take(2, "u16")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32 decodes a little-endian uint32 value.
func (r *Reader) ReadU32() uint32 {
	b := r.take(4, "u32")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64 decodes a little-endian uint64 value.
func (r *Reader) ReadU64() uint64 {
	b := r.take(8, "u64")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) readWide(n int, typ string) uint256.Int {
	var z uint256.Int
	b := r.take(n, typ)
	if b == nil {
		return z
	}
	be := make([]byte, n)
	for i := range b {
		be[n-1-i] = b[i]
	}
	z.SetBytes(be)
	return z
}

// ReadU128 decodes a 16-byte little-endian integer.
func (r *Reader) ReadU128() uint256.Int {
	return r.readWide(16, "u128")
}

// ReadU256 decodes a 32-byte little-endian integer.
func (r *Reader) ReadU256() uint256.Int {
	return r.readWide(32, "u256")
}

// ReadAddress decodes a 32-byte address.
func (r *Reader) ReadAddress() [AddressLength]byte {
	var a [AddressLength]byte
	if b := r.take(AddressLength, "address"); b != nil {
		copy(a[:], b)
	}
	return a
}

// ReadLength decodes a ULEB128 sequence length. Lengths that exceed the
// remaining input are rejected up front, since every element occupies at
// least one byte.
func (r *Reader) ReadLength() int {
	if r.err != nil {
		return 0
	}
	start := r.pos
	var value uint64
	for shift := uint(0); shift < 35; shift += 7 {
		b := r.take(1, "uleb128")
		if b == nil {
			return 0
		}
		value |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 != 0 {
			continue
		}
		if shift > 0 && b[0] == 0 {
			r.pos = start
			r.Fail("uleb128", "redundant trailing zero byte", ErrNonCanonicalLength)
			return 0
		}
		if value > MaxSequenceLength {
			r.pos = start
			r.Fail("uleb128", "length exceeds maximum", ErrLengthOverflow)
			return 0
		}
		return int(value)
	}
	r.pos = start
	r.Fail("uleb128", "more than 5 bytes", ErrLengthOverflow)
	return 0
}

// ReadSequenceLength is ReadLength plus a bound check against the remaining
// input.
func (r *Reader) ReadSequenceLength(typ string) int {
	n := r.ReadLength()
	if r.err == nil && n > r.Remaining() {
		r.Fail(typ, "declared length exceeds remaining input", ErrUnexpectedEOF)
		return 0
	}
	return n
}

// ReadBytes decodes a length-prefixed byte sequence. The result is a copy.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadSequenceLength("vector<u8>")
	b := r.take(n, "vector<u8>")
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
