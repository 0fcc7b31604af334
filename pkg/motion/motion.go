// Package motion implements server-authoritative player movement: swept
// AABB resolution against the tile grid with step-up/step-down handling,
// per spec.md §4.5. Generalized from the teacher's client-trusted
// on-ground/fall bookkeeping in pkg/server/packet_handler.go into a fully
// authoritative solve.
package motion

import "math"

// Settings are the constants governing a player's motion, per spec.md §3.
type Settings struct {
	MaxSpeed     float64
	Accel        float64
	Decel        float64
	Gravity      float64
	JumpSpeed    float64
	MaxFallSpeed float64
	HalfWidth    float64
	Height       float64
	StepHeight   float64
	GroundSnap   float64
}

// DefaultSettings mirrors a typical 2D platformer tuning.
func DefaultSettings() Settings {
	return Settings{
		MaxSpeed:     4.3,
		Accel:        20,
		Decel:        18,
		Gravity:      24,
		JumpSpeed:    8.0,
		MaxFallSpeed: 30,
		HalfWidth:    0.3,
		Height:       1.8,
		StepHeight:   0.55,
		GroundSnap:   0.2,
	}
}

// State is the Player Motion State of spec.md §3.
type State struct {
	X, Y     float64
	VX, VY   float64
	OnGround bool
}

// SolidAt samples material solidity at a local point within a tile, as
// exposed by materials.Catalog.IsSolidAt, addressed by world tile
// coordinates plus a fractional offset in [0,1)^2.
type SolidAt func(tileX, tileY int32, localX, localY float64) bool

const sweepIterations = 10
const edgeInset = 0.02

// Input is the per-tick player input driving the resolver.
type Input struct {
	Axis        float64 // -1..1 horizontal intent
	JumpPressed bool
}

// Step advances state by dt using s, resolving collisions against solid.
func Step(state State, input Input, s Settings, dt float64, solid SolidAt) State {
	// 1. Horizontal velocity toward axis*max_speed.
	target := input.Axis * s.MaxSpeed
	if input.Axis != 0 {
		state.VX = approach(state.VX, target, s.Accel*dt)
	} else {
		state.VX = approach(state.VX, 0, s.Decel*dt)
	}

	// 2. Jump.
	if input.JumpPressed && state.OnGround {
		state.VY = -s.JumpSpeed
		state.OnGround = false
	}

	// 3. Gravity.
	state.VY = math.Min(state.VY+s.Gravity*dt, s.MaxFallSpeed)

	// 4. Horizontal sweep.
	state = sweepHorizontal(state, s, dt, solid)

	// 5. Vertical sweep.
	state = sweepVertical(state, s, dt, solid)

	return state
}

func approach(current, target, maxDelta float64) float64 {
	if current < target {
		return math.Min(current+maxDelta, target)
	}
	return math.Max(current-maxDelta, target)
}

func isRowSolid(state State, s Settings, x float64, solid SolidAt) bool {
	top := state.Y
	bottom := state.Y + s.Height
	for _, y := range sampleEdges(top, bottom) {
		tx, fx := split(x)
		ty, fy := split(y)
		if solid(tx, ty, fx, fy) {
			return true
		}
	}
	return false
}

func sampleEdges(lo, hi float64) []float64 {
	return []float64{lo + edgeInset, (lo + hi) / 2, hi - edgeInset}
}

func split(v float64) (int32, float64) {
	t := math.Floor(v)
	return int32(t), v - t
}

func sweepHorizontal(state State, s Settings, dt float64, solid SolidAt) State {
	if state.VX == 0 {
		return state
	}
	dx := state.VX * dt
	targetX := state.X + dx
	edgeX := targetX + sign(dx)*s.HalfWidth

	if !isRowSolid(state, s, edgeX, solid) {
		state.X = targetX
		return state
	}

	if state.OnGround && state.VY >= 0 {
		if floorY, ok := bestStepFloor(state, s, targetX, solid); ok {
			stepped := state
			stepped.Y = floorY - s.Height
			if !isRowSolid(stepped, s, edgeX, solid) {
				state.X = targetX
				state.Y = stepped.Y
				state.VY = 0
				return state
			}
		}
	}

	frac := binarySearchSafeFraction(state, s, dx, solid)
	state.X += dx * frac
	state.VX = 0
	return state
}

func bestStepFloor(state State, s Settings, targetX float64, solid SolidAt) (float64, bool) {
	lo := targetX - s.HalfWidth
	hi := targetX + s.HalfWidth
	feetY := state.Y + s.Height
	bestY := feetY + s.GroundSnap
	found := false
	for y := feetY - s.StepHeight; y <= feetY+s.GroundSnap; y += 0.05 {
		if isRowSolidAtFeet(lo, hi, y, solid) && y < bestY {
			bestY = y
			found = true
		}
	}
	return bestY, found
}

func isRowSolidAtFeet(lo, hi, y float64, solid SolidAt) bool {
	for _, x := range []float64{lo, (lo + hi) / 2, hi} {
		tx, fx := split(x)
		ty, fy := split(y)
		if solid(tx, ty, fx, fy) {
			return true
		}
	}
	return false
}

func binarySearchSafeFraction(state State, s Settings, dx float64, solid SolidAt) float64 {
	lo, hi := 0.0, 1.0
	for i := 0; i < sweepIterations; i++ {
		mid := (lo + hi) / 2
		x := state.X + dx*mid + sign(dx)*s.HalfWidth
		if isRowSolid(state, s, x, solid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

func sweepVertical(state State, s Settings, dt float64, solid SolidAt) State {
	dy := state.VY * dt
	if dy < 0 {
		// Rising: binary-search safe fraction against ceiling overlap.
		frac := 1.0
		if isRowSolidAtFeet(state.X-s.HalfWidth, state.X+s.HalfWidth, state.Y+dy-edgeInset, solid) {
			frac = binarySearchVertical(state, s, dy, solid)
			state.VY = 0
		}
		state.Y += dy * frac
		state.OnGround = false
		return state
	}

	// Descending (or stationary): scan floor within [0, max(dy, groundSnap)].
	scanRange := math.Max(dy, s.GroundSnap)
	feetY := state.Y + s.Height
	lo := feetY
	hi := feetY + scanRange
	left := state.X - s.HalfWidth
	right := state.X + s.HalfWidth

	landedY, landed := scanFloor(lo, hi, left, right, solid)
	if landed {
		state.Y = landedY - s.Height
		state.VY = 0
		state.OnGround = true
		return state
	}

	state.Y += dy
	state.OnGround = false
	return state
}

func scanFloor(lo, hi, left, right float64, solid SolidAt) (float64, bool) {
	const step = 0.02
	for y := lo; y <= hi; y += step {
		if isRowSolidAtFeet(left, right, y+edgeInset, solid) {
			return y, true
		}
	}
	return 0, false
}

func binarySearchVertical(state State, s Settings, dy float64, solid SolidAt) float64 {
	lo, hi := 0.0, 1.0
	left := state.X - s.HalfWidth
	right := state.X + s.HalfWidth
	for i := 0; i < sweepIterations; i++ {
		mid := (lo + hi) / 2
		y := state.Y + dy*mid - edgeInset
		if isRowSolidAtFeet(left, right, y, solid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
