package motion

import "testing"

// flatFloor treats every tile with ty >= 0 as solid stone, everything
// above as air, regardless of tx. A minimal stand-in for a real
// materials.Catalog + world.Service pairing.
func flatFloor(tileX, tileY int32, localX, localY float64) bool {
	return tileY >= 0
}

func TestStepRestsOnFloor(t *testing.T) {
	s := DefaultSettings()
	st := State{X: 0, Y: -3}
	for i := 0; i < 600; i++ {
		st = Step(st, Input{}, s, 1.0/60.0, flatFloor)
	}
	if !st.OnGround {
		t.Fatalf("expected to settle on ground, got %+v", st)
	}
	// Feet should rest at y=0 within a small epsilon.
	feetY := st.Y + s.Height
	if feetY < -0.05 || feetY > 0.05 {
		t.Fatalf("feetY = %v, want near 0", feetY)
	}
}

func TestStepHorizontalMovement(t *testing.T) {
	s := DefaultSettings()
	st := State{X: 0, Y: -3}
	for i := 0; i < 600; i++ {
		st = Step(st, Input{}, s, 1.0/60.0, flatFloor)
	}
	for i := 0; i < 30; i++ {
		st = Step(st, Input{Axis: 1}, s, 1.0/60.0, flatFloor)
	}
	if st.X <= 0 {
		t.Fatalf("expected positive X displacement, got %v", st.X)
	}
}

func TestJumpLeavesGround(t *testing.T) {
	s := DefaultSettings()
	st := State{X: 0, Y: -3}
	for i := 0; i < 600; i++ {
		st = Step(st, Input{}, s, 1.0/60.0, flatFloor)
	}
	st = Step(st, Input{JumpPressed: true}, s, 1.0/60.0, flatFloor)
	if st.OnGround {
		t.Fatal("expected airborne immediately after jump")
	}
	if st.VY >= 0 {
		t.Fatalf("expected negative (upward) VY after jump, got %v", st.VY)
	}
}

func wallAt(wallX int32) SolidAt {
	return func(tileX, tileY int32, localX, localY float64) bool {
		if tileY >= 0 {
			return true
		}
		return tileX >= wallX
	}
}

func TestHorizontalSweepStopsAtWall(t *testing.T) {
	s := DefaultSettings()
	solid := wallAt(3)
	st := State{X: 0, Y: -3}
	for i := 0; i < 600; i++ {
		st = Step(st, Input{}, s, 1.0/60.0, solid)
	}
	for i := 0; i < 600; i++ {
		st = Step(st, Input{Axis: 1}, s, 1.0/60.0, solid)
	}
	maxX := float64(3) - s.HalfWidth
	if st.X > maxX+0.1 {
		t.Fatalf("X = %v, expected to stop near wall at %v", st.X, maxX)
	}
}
