package ecs

// HostileDefeated is emitted when a hostile's health reaches zero, per
// spec.md §4.4 phase 4.
type HostileDefeated struct {
	RewardKillCount uint32
}

// PickupResolved is emitted when a pickup probe claims a drop, per
// spec.md §4.4 phase 5.
type PickupResolved struct {
	PlayerID   uint32
	TX, TY     int32
	MaterialID uint16
	Amount     uint32
}

// CombatEvent is the closed set of combat-facing events the ruleset
// consumes.
type CombatEvent struct {
	HostileDefeated *HostileDefeated
}

// GameplayEvent is the closed set of gameplay-facing events the ruleset
// consumes.
type GameplayEvent struct {
	PickupResolved *PickupResolved
}

// ProjectileSpawnRequest queues a projectile for the Spawn phase.
type ProjectileSpawnRequest struct {
	OwnerPlayerID  uint32
	X, Y           float64
	VX, VY         float64
	Radius         float64
	FactionID      uint32
	Damage         int32
	LifetimeTicks  uint16
}

// DropSpawnRequest queues a world drop for the Spawn phase. Drops merge
// with an existing same-tile same-material drop by adding amounts
// (spec.md §3 invariant).
type DropSpawnRequest struct {
	TX, TY     int32
	MaterialID uint16
	Amount     uint32
}

// PickupProbeRequest queues a pickup probe for the Spawn phase.
type PickupProbeRequest struct {
	PlayerID uint32
	TX, TY   int32
}

// damageRequest is internal bookkeeping produced by the Collision phase
// and consumed by the Damage phase within the same tick.
type damageRequest struct {
	target EntityID
	amount int32
}
