package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// Kind is the closed set of envelope payload kinds, carried on the wire.
type Kind uint8

const (
	KindControl            Kind = 1
	KindCommand             Kind = 2
	KindChunkSnapshot       Kind = 3
	KindChunkSnapshotBatch  Kind = 4
)

// EnvelopeVersion is the only version this codec understands.
const EnvelopeVersion uint8 = 1

var (
	// ErrUnsupportedVersion is returned when the envelope version byte is
	// not EnvelopeVersion.
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
	// ErrUnknownKind is returned when the kind byte is outside the closed set.
	ErrUnknownKind = errors.New("wire: unknown envelope kind")
	// ErrLengthMismatch is returned when the declared payload length does
	// not equal the number of bytes remaining after the header.
	ErrLengthMismatch = errors.New("wire: declared length does not match remaining bytes")
)

// Envelope is the outer v1 framing around every datagram:
// u8 version || u8 kind || varuint(len) || raw(len).
type Envelope struct {
	Kind    Kind
	Payload []byte
}

func validKind(k Kind) bool {
	switch k {
	case KindControl, KindCommand, KindChunkSnapshot, KindChunkSnapshotBatch:
		return true
	default:
		return false
	}
}

// Encode serializes the envelope to a fresh byte slice.
func Encode(e Envelope) []byte {
	var buf bytes.Buffer
	buf.WriteByte(EnvelopeVersion)
	buf.WriteByte(byte(e.Kind))
	WriteVarUint(&buf, uint64(len(e.Payload)))
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses an envelope from raw bytes, validating version, kind, and
// that the declared length consumes exactly the remaining bytes.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) < 2 {
		return Envelope{}, fmt.Errorf("wire: envelope too short (%d bytes)", len(raw))
	}
	version := raw[0]
	if version != EnvelopeVersion {
		return Envelope{}, ErrUnsupportedVersion
	}
	kind := Kind(raw[1])
	if !validKind(kind) {
		return Envelope{}, ErrUnknownKind
	}

	r := bytes.NewReader(raw[2:])
	n, err := ReadVarUint(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: bad length varint: %w", err)
	}
	if n != uint64(r.Len()) {
		return Envelope{}, ErrLengthMismatch
	}
	payload := make([]byte, n)
	copy(payload, raw[len(raw)-r.Len():])
	return Envelope{Kind: kind, Payload: payload}, nil
}
