package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ChunkSnapshot is the wire-level representation of a chunk's tile
// contents: varint(cx) || varint(cy) || varuint(tile_count) || raw(tile_count*2).
type ChunkSnapshot struct {
	CX, CY int32
	Tiles  []uint16
}

// EncodeChunkSnapshot serializes a chunk snapshot payload (the bytes that
// go inside a KindChunkSnapshot envelope).
func EncodeChunkSnapshot(s ChunkSnapshot) []byte {
	var buf bytes.Buffer
	WriteVarInt(&buf, int64(s.CX))
	WriteVarInt(&buf, int64(s.CY))
	WriteVarUint(&buf, uint64(len(s.Tiles)))
	for _, t := range s.Tiles {
		binary.Write(&buf, binary.LittleEndian, t)
	}
	return buf.Bytes()
}

// DecodeChunkSnapshot parses a single chunk snapshot payload and returns the
// number of bytes it consumed from raw (used by the batch splitter).
func DecodeChunkSnapshot(raw []byte) (ChunkSnapshot, int, error) {
	r := bytes.NewReader(raw)
	start := r.Len()

	cx, err := ReadVarInt(r)
	if err != nil {
		return ChunkSnapshot{}, 0, fmt.Errorf("wire: chunk snapshot cx: %w", err)
	}
	cy, err := ReadVarInt(r)
	if err != nil {
		return ChunkSnapshot{}, 0, fmt.Errorf("wire: chunk snapshot cy: %w", err)
	}
	count, err := ReadVarUint(r)
	if err != nil {
		return ChunkSnapshot{}, 0, fmt.Errorf("wire: chunk snapshot tile_count: %w", err)
	}
	needed := int(count) * 2
	if needed < 0 || needed > r.Len() {
		return ChunkSnapshot{}, 0, errors.New("wire: chunk snapshot tile data truncated")
	}
	tiles := make([]uint16, count)
	for i := range tiles {
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return ChunkSnapshot{}, 0, fmt.Errorf("wire: chunk snapshot tile %d: %w", i, err)
		}
		tiles[i] = v
	}
	consumed := start - r.Len()
	return ChunkSnapshot{CX: int32(cx), CY: int32(cy), Tiles: tiles}, consumed, nil
}

// EncodeChunkSnapshotBatch serializes varuint(N) || concat(snapshot_i).
func EncodeChunkSnapshotBatch(snaps []ChunkSnapshot) []byte {
	var buf bytes.Buffer
	WriteVarUint(&buf, uint64(len(snaps)))
	for _, s := range snaps {
		buf.Write(EncodeChunkSnapshot(s))
	}
	return buf.Bytes()
}

// DecodeChunkSnapshotBatch parses a snapshot batch, rejecting the whole
// batch if any member snapshot fails to parse.
func DecodeChunkSnapshotBatch(raw []byte) ([]ChunkSnapshot, error) {
	r := bytes.NewReader(raw)
	n, err := ReadVarUint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: chunk snapshot batch count: %w", err)
	}

	out := make([]ChunkSnapshot, 0, n)
	remaining := raw[len(raw)-r.Len():]
	for i := uint64(0); i < n; i++ {
		snap, consumed, err := DecodeChunkSnapshot(remaining)
		if err != nil {
			return nil, fmt.Errorf("wire: chunk snapshot batch member %d: %w", i, err)
		}
		out = append(out, snap)
		remaining = remaining[consumed:]
	}
	return out, nil
}
