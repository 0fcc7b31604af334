// Package wire implements the little-endian varint/zigzag primitives and
// envelope framing used to put simulation state on the network.
package wire

import (
	"bytes"
	"errors"
	"io"
)

// ErrVarIntTooLong is returned when a varuint would require more than the
// maximum 10 bytes (enough for a full 64-bit value).
var ErrVarIntTooLong = errors.New("wire: varint exceeds 10 bytes")

const maxVarIntBytes = 10

// WriteVarUint writes an unsigned LEB128-style varint to w.
func WriteVarUint(w *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.WriteByte(b | 0x80)
		} else {
			w.WriteByte(b)
			return
		}
	}
}

// ReadVarUint reads an unsigned varint from r.
func ReadVarUint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, ErrVarIntTooLong
}

// VarUintSize reports how many bytes WriteVarUint would emit for v.
func VarUintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ZigZagEncode maps a signed value onto an unsigned one so small magnitude
// values (positive or negative) stay small in varint form.
func ZigZagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigZagDecode reverses ZigZagEncode.
func ZigZagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// WriteVarInt writes a zigzag-encoded signed varint.
func WriteVarInt(w *bytes.Buffer, v int64) {
	WriteVarUint(w, ZigZagEncode(v))
}

// ReadVarInt reads a zigzag-encoded signed varint.
func ReadVarInt(r io.ByteReader) (int64, error) {
	u, err := ReadVarUint(r)
	if err != nil {
		return 0, err
	}
	return ZigZagDecode(u), nil
}

// VarIntSize reports how many bytes WriteVarInt would emit for v.
func VarIntSize(v int64) int {
	return VarUintSize(ZigZagEncode(v))
}

// WriteBytes writes a length-prefixed byte slice: varuint(len) || raw(len).
func WriteBytes(w *bytes.Buffer, b []byte) {
	WriteVarUint(w, uint64(len(b)))
	w.Write(b)
}

// ReadBytes reads a length-prefixed byte slice, bounds-checking the
// declared length against what remains in r.
func ReadBytes(r *bytes.Reader) ([]byte, error) {
	n, err := ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, errors.New("wire: declared length exceeds remaining bytes")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadVarUintBounded reads a varuint and rejects it if it doesn't fit in
// the given bit width, guarding decoders against out-of-range fields per
// spec.md §4.7 ("Decoders must bounds-check every varuint against target
// width").
func ReadVarUintBounded(r io.ByteReader, bits uint) (uint64, error) {
	v, err := ReadVarUint(r)
	if err != nil {
		return 0, err
	}
	if bits < 64 && v >= (uint64(1)<<bits) {
		return 0, errors.New("wire: varint out of range for target width")
	}
	return v, nil
}
