package bcs

import (
	"encoding/binary"
	"io"

	"github.com/holiman/uint256"
)

// Writer encodes Go values in BCS format.
// It wraps an io.Writer and keeps the first
// error encountered; later writes are no-ops.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a new BCS Writer that writes to the provided io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Error returns the first error that occurred during writing, if any.
func (w *Writer) Error() error {
	return w.err
}

// Fail records err unless an error is already set.
func (w *Writer) Fail(typ, reason string, err error) {
	if w.err == nil {
		w.err = &EncodingError{Type: typ, Reason: reason, Err: err}
	}
}

func (w *Writer) write(p []byte, typ string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(p); err != nil {
		w.Fail(typ, "write failed", err)
	}
}

// WriteBool encodes a boolean as a single 0 or 1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.write([]byte{1}, "bool")
	} else {
		w.write([]byte{0}, "bool")
	}
}

// WriteU8 encodes a uint8 value.
func (w *Writer) WriteU8(v uint8) {
	w.write([]byte{v}, "u8")
}

// WriteU16 encodes a uint16 value in little-endian order.
func (w *Writer) WriteU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.write(buf[:], "u16")
}

// WriteU32 encodes a uint32 value in little-endian order.
func (w *Writer) WriteU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:], "u32")
}

// WriteU64 encodes a uint64 value in little-endian order.
func (w *Writer) WriteU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.write(buf[:], "u64")
}

func (w *Writer) writeWide(v *uint256.Int, n int, typ string) {
	if v.BitLen() > n*8 {
		w.Fail(typ, "value too wide", ErrValueOverflow)
		return
	}
	be := v.Bytes32()
	le := make([]byte, n)
	for i := 0; i < n; i++ {
		le[i] = be[31-i]
	}
	w.write(le, typ)
}

// WriteU128 encodes v as 16 little-endian bytes. Values wider than 128 bits
// fail with ErrValueOverflow.
func (w *Writer) WriteU128(v *uint256.Int) {
	w.writeWide(v, 16, "u128")
}

// WriteU256 encodes v as 32 little-endian bytes.
func (w *Writer) WriteU256(v *uint256.Int) {
	w.writeWide(v, 32, "u256")
}

// WriteAddress encodes a 32-byte address.
func (w *Writer) WriteAddress(a [AddressLength]byte) {
	w.write(a[:], "address")
}

// WriteLength encodes a ULEB128 sequence length.
func (w *Writer) WriteLength(n int) {
	if n < 0 || n > MaxSequenceLength {
		w.Fail("uleb128", "length out of range", ErrLengthOverflow)
		return
	}
	var buf [5]byte
	i := 0
	v := uint32(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf[i] = b
			i++
			break
		}
		buf[i] = b | 0x80
		i++
	}
	w.write(buf[:i], "uleb128")
}

// WriteBytes encodes a length-prefixed byte sequence.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteLength(len(b))
	if len(b) > 0 {
		w.write(b, "vector<u8>")
	}
}
