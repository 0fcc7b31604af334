package world

import (
	"testing"

	"github.com/novaria-game/core/pkg/materials"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(materials.New())
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

// TestChunkRoundTrip exercises spec.md §8 scenario 1 verbatim.
func TestChunkRoundTrip(t *testing.T) {
	s := newTestService(t)
	if err := s.LoadChunk(0, 0); err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if err := s.ApplyTileMutation(0, 0, 77); err != nil {
		t.Fatalf("ApplyTileMutation: %v", err)
	}

	dirty := s.ConsumeDirty()
	if len(dirty) != 1 || dirty[0] != (Key{CX: 0, CY: 0}) {
		t.Fatalf("ConsumeDirty = %v, want [(0,0)]", dirty)
	}

	snap, err := s.BuildSnapshot(0, 0)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if snap.Tiles[0] != 77 {
		t.Fatalf("tile 0 = %d, want 77", snap.Tiles[0])
	}
	for i := 1; i < len(snap.Tiles); i++ {
		if snap.Tiles[i] != materials.Dirt {
			t.Fatalf("tile %d = %d, want seeded dirt (row y=0..31 is dirt)", i, snap.Tiles[i])
		}
	}

	other := newTestService(t)
	if err := other.ApplySnapshot(snap); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	got, ok := other.TryReadTile(0, 0)
	if !ok || got != 77 {
		t.Fatalf("TryReadTile(0,0) on replica = (%d,%v), want (77,true)", got, ok)
	}
}

func TestApplySnapshotDoesNotMarkDirty(t *testing.T) {
	s := newTestService(t)
	snap := Snapshot{CX: 1, CY: 1}
	if err := s.ApplySnapshot(snap); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if dirty := s.ConsumeDirty(); len(dirty) != 0 {
		t.Fatalf("ConsumeDirty after ApplySnapshot = %v, want none", dirty)
	}
}

func TestTryReadTileUnloadedChunk(t *testing.T) {
	s := newTestService(t)
	if _, ok := s.TryReadTile(100, 100); ok {
		t.Fatal("expected not-loaded chunk to return ok=false")
	}
}

func TestUnloadChunkDiscardsDirty(t *testing.T) {
	s := newTestService(t)
	_ = s.ApplyTileMutation(5, 5, 9)
	if err := s.UnloadChunk(0, 0); err != nil {
		t.Fatalf("UnloadChunk: %v", err)
	}
	if _, ok := s.TryReadTile(5, 5); ok {
		t.Fatal("tile should be gone after unload")
	}
	if dirty := s.ConsumeDirty(); len(dirty) != 0 {
		t.Fatalf("expected no dirty chunks after unload, got %v", dirty)
	}
}

func TestSeedProfile(t *testing.T) {
	s := newTestService(t)
	_ = s.LoadChunk(0, -1) // chunk covering y in [-32,0): air
	_ = s.LoadChunk(0, 0)  // chunk covering y in [0,32): dirt
	_ = s.LoadChunk(0, 1)  // chunk covering y in [32,64): stone

	if v, _ := s.TryReadTile(0, -1); v != materials.Air {
		t.Fatalf("y=-1 should be air, got %d", v)
	}
	if v, _ := s.TryReadTile(0, 0); v != materials.Dirt {
		t.Fatalf("y=0 should be dirt, got %d", v)
	}
	if v, _ := s.TryReadTile(0, 40); v != materials.Stone {
		t.Fatalf("y=40 should be stone, got %d", v)
	}
}

func TestTileToChunkNegativeCoordinates(t *testing.T) {
	key, idx := TileToChunk(-1, -1)
	if key != (Key{CX: -1, CY: -1}) {
		t.Fatalf("key = %v, want (-1,-1)", key)
	}
	if idx != localIndex(Side-1, Side-1) {
		t.Fatalf("idx = %d, want last local index", idx)
	}
}

func TestOperationsBeforeInitReturnNotInitialized(t *testing.T) {
	s := NewService(materials.New())
	if err := s.LoadChunk(0, 0); err != ErrNotInitialized {
		t.Fatalf("LoadChunk before Init = %v, want ErrNotInitialized", err)
	}
	if err := s.ApplyTileMutation(0, 0, 1); err != ErrNotInitialized {
		t.Fatalf("ApplyTileMutation before Init = %v, want ErrNotInitialized", err)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := NewService(materials.New())
	b := NewService(materials.New())
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint should be deterministic across identical catalogs")
	}
}
