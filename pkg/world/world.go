// Package world owns the chunked tile store: lazy chunk creation, tile
// mutation with dirty tracking, and the snapshot codec boundary consumed
// by replication.
package world

import (
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/novaria-game/core/pkg/materials"
)

// ErrNotInitialized is returned by operations invoked before Init.
var ErrNotInitialized = errors.New("world: service not initialized")

// ErrNotFound is returned when a snapshot is requested for a chunk that
// isn't loaded.
var ErrNotFound = errors.New("world: chunk not found")

// Service owns the mapping (cx,cy) -> Chunk described in spec.md §4.3.
type Service struct {
	mu        sync.Mutex
	chunks    map[Key]*Chunk
	materials *materials.Catalog
	ready     bool
}

// NewService constructs an uninitialized world service.
func NewService(cat *materials.Catalog) *Service {
	return &Service{chunks: make(map[Key]*Chunk), materials: cat}
}

// Init brings the service up; idempotent.
func (s *Service) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks == nil {
		s.chunks = make(map[Key]*Chunk)
	}
	s.ready = true
	return nil
}

// Shutdown tears the service down, discarding all loaded chunks.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[Key]*Chunk)
	s.ready = false
	return nil
}

// Materials returns the catalog this service samples tile traits from.
func (s *Service) Materials() *materials.Catalog { return s.materials }

// LoadChunk idempotently ensures the chunk at (cx,cy) exists, creating it
// from the seed profile if absent.
func (s *Service) LoadChunk(cx, cy int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}
	s.loadLocked(cx, cy)
	return nil
}

func (s *Service) loadLocked(cx, cy int32) *Chunk {
	key := Key{CX: cx, CY: cy}
	if c, ok := s.chunks[key]; ok {
		return c
	}
	c := seedChunk(cy)
	s.chunks[key] = c
	return c
}

// UnloadChunk removes the chunk entry at (cx,cy), discarding any dirty state.
func (s *Service) UnloadChunk(cx, cy int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}
	delete(s.chunks, Key{CX: cx, CY: cy})
	return nil
}

// TryReadTile returns the material at (x,y), or (0,false) when the owning
// chunk is not loaded.
func (s *Service) TryReadTile(x, y int32) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, idx := TileToChunk(x, y)
	c, ok := s.chunks[key]
	if !ok {
		return 0, false
	}
	return c.Tiles[idx], true
}

// ApplyTileMutation auto-creates the owning chunk if absent, overwrites the
// tile, and marks the chunk dirty.
func (s *Service) ApplyTileMutation(x, y int32, mat uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}
	key, idx := TileToChunk(x, y)
	c := s.loadLocked(key.CX, key.CY)
	c.Tiles[idx] = mat
	c.Dirty = true
	return nil
}

// BuildSnapshot returns a value-typed snapshot of the chunk at (cx,cy).
func (s *Service) BuildSnapshot(cx, cy int32) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[Key{CX: cx, CY: cy}]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{CX: cx, CY: cy, Tiles: c.Tiles}, nil
}

// ApplySnapshot replaces the tile contents of the referenced chunk,
// creating it if absent. It does NOT mark the chunk dirty: replication is
// for locally originated changes only (spec.md §4.3).
func (s *Service) ApplySnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}
	c := s.loadLocked(snap.CX, snap.CY)
	c.Tiles = snap.Tiles
	return nil
}

// ConsumeDirty returns the coordinates of chunks currently dirty and
// atomically clears their dirty flags. Iteration order is unspecified but
// stable within the call.
func (s *Service) ConsumeDirty() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dirty []Key
	for key, c := range s.chunks {
		if c.Dirty {
			dirty = append(dirty, key)
			c.Dirty = false
		}
	}
	return dirty
}

// LoadedChunkCount reports how many chunks are currently realized, used by
// diagnostics and tests.
func (s *Service) LoadedChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Fingerprint returns a 64-bit digest of the material catalog and chunk
// side, recomputed on each call (SPEC_FULL.md §3). The admin /status
// endpoint reports it; chunk snapshot and batch payloads do not carry it.
func (s *Service) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [2]byte
	buf[0] = byte(Side)
	buf[1] = byte(Side >> 8)
	h.Write(buf[:])
	for _, id := range sortedIDs(s.materials.IDs()) {
		t := s.materials.Lookup(id)
		h.Write([]byte{byte(id), byte(id >> 8), byte(t.Shape), byte(t.HarvestTools)})
	}
	return h.Sum64()
}

func sortedIDs(ids []uint16) []uint16 {
	out := append([]uint16(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Hash returns a short stable identifier for a chunk key, used in log
// lines and diagnostics (not on the wire).
func (k Key) Hash() uint64 {
	var buf [8]byte
	buf[0], buf[1], buf[2], buf[3] = byte(k.CX), byte(k.CX>>8), byte(k.CX>>16), byte(k.CX>>24)
	buf[4], buf[5], buf[6], buf[7] = byte(k.CY), byte(k.CY>>8), byte(k.CY>>16), byte(k.CY>>24)
	return xxhash.Sum64(buf[:])
}
