// Package ecs implements the single-threaded sparse-component entity
// runtime: projectile/drop/hostile lifecycle, collision, damage, and
// pickup resolution, run as the fixed phase pipeline of spec.md §4.4.
package ecs

// EntityID is an opaque entity handle. Handles increase monotonically so
// iteration by EntityID gives a reproducible total order across replays
// (spec.md §9 open question on pickup-probe ordering).
type EntityID uint32

// Transform is continuous world tile coordinates.
type Transform struct {
	X, Y float64
}

// Velocity is in tiles/second.
type Velocity struct {
	VX, VY float64
}

// Collider is a circular collision volume.
type Collider struct {
	Radius float64
}

// Faction ties-breaks projectile-vs-hostile collision.
type Faction struct {
	ID uint32
}

// Health is current hit points.
type Health struct {
	Value int32
}

// Lifetime counts down to zero, then the entity is destroyed.
type Lifetime struct {
	TicksRemaining uint16
}

// Projectile marks an entity as a fired projectile.
type Projectile struct {
	OwnerPlayerID uint32
	Damage        int32
}

// HostileTarget marks an entity as a valid combat target that rewards
// kills.
type HostileTarget struct {
	RewardKillCount uint32
}

// WorldDrop marks an entity as a pickup-able item drop on the ground.
type WorldDrop struct {
	MaterialID uint16
	Amount     uint32
}
