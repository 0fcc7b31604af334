package wire

import (
	"bytes"
	"encoding/binary"
)

// WriteUint32 writes a little-endian uint32.
func WriteUint32(w *bytes.Buffer, v uint32) {
	binary.Write(w, binary.LittleEndian, v)
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteFloat64 writes a little-endian IEEE-754 double.
func WriteFloat64(w *bytes.Buffer, v float64) {
	binary.Write(w, binary.LittleEndian, v)
}

// ReadFloat64 reads a little-endian IEEE-754 double.
func ReadFloat64(r *bytes.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
