package world

import "github.com/novaria-game/core/pkg/materials"

// Side is the tile count along one edge of a chunk (S in spec.md §3).
const Side = 32

// TilesPerChunk is S*S.
const TilesPerChunk = Side * Side

// Key identifies a chunk by signed chunk coordinates.
type Key struct {
	CX, CY int32
}

// Chunk is a fixed S*S square of tile material ids plus a dirty flag set
// on every mutation and cleared when consumed for replication.
type Chunk struct {
	Tiles [TilesPerChunk]uint16
	Dirty bool
}

func localIndex(lx, ly int) int {
	return ly*Side + lx
}

// floorDiv is floor division for negative-aware chunk coordinate mapping.
func floorDiv(v, d int32) int32 {
	q := v / d
	if (v%d != 0) && ((v < 0) != (d < 0)) {
		q--
	}
	return q
}

// positiveMod returns v mod d in [0, d).
func positiveMod(v, d int32) int32 {
	m := v % d
	if m < 0 {
		m += d
	}
	return m
}

// TileToChunk maps a world tile coordinate to its owning chunk key and the
// tile's local index within that chunk.
func TileToChunk(x, y int32) (Key, int) {
	cx := floorDiv(x, Side)
	cy := floorDiv(y, Side)
	lx := int(positiveMod(x, Side))
	ly := int(positiveMod(y, Side))
	return Key{CX: cx, CY: cy}, localIndex(lx, ly)
}

// seedChunk populates a freshly created chunk with the fixed profile of
// spec.md §3: air above y=0, dirt for 0<=y<32, stone for y>=32 (a pure
// function of world y; no terrain noise, so the round-trip invariant in
// spec.md §8 scenario 1 stays byte-exact across runs).
func seedChunk(cy int32) *Chunk {
	c := &Chunk{}
	for ly := 0; ly < Side; ly++ {
		worldY := cy*Side + int32(ly)
		var mat uint16
		switch {
		case worldY < 0:
			mat = materials.Air
		case worldY < Side:
			mat = materials.Dirt
		default:
			mat = materials.Stone
		}
		for lx := 0; lx < Side; lx++ {
			c.Tiles[localIndex(lx, ly)] = mat
		}
	}
	return c
}

// Snapshot is the value-typed representation of a chunk's contents,
// equal by coordinate and tile contents (spec.md §3).
type Snapshot struct {
	CX, CY int32
	Tiles  [TilesPerChunk]uint16
}

// Equal reports whether two snapshots have the same coordinates and tiles.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.CX != o.CX || s.CY != o.CY {
		return false
	}
	return s.Tiles == o.Tiles
}
