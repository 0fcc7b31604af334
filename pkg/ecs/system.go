package ecs

import "github.com/novaria-game/core/pkg/core"

// Diagnostics mirrors the counters spec.md §8 scenario 2/3 assert against.
type Diagnostics struct {
	TotalProjectileSpawned  uint64
	TotalProjectileRecycled uint64
	TotalDamageInstances    uint64
	TotalHostileDefeated    uint64
	TotalDropSpawned        uint64
	TotalDropPickedUp       uint64
}

// World runs the spawn/movement/collision/damage/pickup/lifetime phase
// pipeline of spec.md §4.4 over a Registry.
type World struct {
	Registry *Registry

	spawnProjectiles []ProjectileSpawnRequest
	spawnDrops       []DropSpawnRequest
	pickupProbes     []PickupProbeRequest
	activeProbes     []PickupProbeRequest

	combatEvents   []CombatEvent
	gameplayEvents []GameplayEvent

	diag Diagnostics
}

// NewWorld constructs an empty ECS world.
func NewWorld() *World {
	return &World{Registry: NewRegistry()}
}

// Init seeds the fixed training hostile described in spec.md §4.4: tile
// (8,-4), health 25, radius 0.45, faction 2, reward 1.
func (w *World) Init() error {
	id := w.Registry.Spawn()
	w.Registry.SetTransform(id, Transform{X: 8, Y: -4})
	w.Registry.SetVelocity(id, Velocity{})
	w.Registry.SetCollider(id, Collider{Radius: 0.45})
	w.Registry.SetFaction(id, Faction{ID: 2})
	w.Registry.SetHealth(id, Health{Value: 25})
	w.Registry.SetHostileTarget(id, HostileTarget{RewardKillCount: 1})
	return nil
}

// QueueProjectile enqueues a projectile spawn request for the next tick's
// Spawn phase.
func (w *World) QueueProjectile(req ProjectileSpawnRequest) { w.spawnProjectiles = append(w.spawnProjectiles, req) }

// QueueDrop enqueues a world-drop spawn request.
func (w *World) QueueDrop(req DropSpawnRequest) { w.spawnDrops = append(w.spawnDrops, req) }

// QueuePickupProbe enqueues a pickup probe.
func (w *World) QueuePickupProbe(req PickupProbeRequest) { w.pickupProbes = append(w.pickupProbes, req) }

// Diagnostics returns a value-typed copy of the running counters.
func (w *World) Diagnostics() Diagnostics { return w.diag }

// ActiveDropCount reports how many WorldDrop entities remain alive.
func (w *World) ActiveDropCount() int { return len(w.Registry.Drops()) }

// ConsumeCombatEvents returns and clears the internal combat event queue.
func (w *World) ConsumeCombatEvents() []CombatEvent {
	out := w.combatEvents
	w.combatEvents = nil
	return out
}

// ConsumeGameplayEvents returns and clears the internal gameplay event
// queue.
func (w *World) ConsumeGameplayEvents() []GameplayEvent {
	out := w.gameplayEvents
	w.gameplayEvents = nil
	return out
}

// Tick runs the six fixed phases of spec.md §4.4 in order.
func (w *World) Tick(ctx core.TickContext) {
	w.phaseSpawn()
	w.phaseMovement(ctx)
	requests := w.phaseCollision()
	w.phaseDamage(requests)
	w.phasePickup()
	w.phaseLifetime()
}

func (w *World) phaseSpawn() {
	for _, req := range w.spawnProjectiles {
		id := w.Registry.Spawn()
		w.Registry.SetTransform(id, Transform{X: req.X, Y: req.Y})
		w.Registry.SetVelocity(id, Velocity{VX: req.VX, VY: req.VY})
		w.Registry.SetCollider(id, Collider{Radius: req.Radius})
		w.Registry.SetFaction(id, Faction{ID: req.FactionID})
		w.Registry.SetLifetime(id, Lifetime{TicksRemaining: req.LifetimeTicks})
		w.Registry.SetProjectile(id, Projectile{OwnerPlayerID: req.OwnerPlayerID, Damage: req.Damage})
		w.diag.TotalProjectileSpawned++
	}
	w.spawnProjectiles = nil

	for _, req := range w.spawnDrops {
		if merged := w.mergeDrop(req); merged {
			w.diag.TotalDropSpawned++
			continue
		}
		id := w.Registry.Spawn()
		w.Registry.SetTransform(id, Transform{X: float64(req.TX), Y: float64(req.TY)})
		w.Registry.SetWorldDrop(id, WorldDrop{MaterialID: req.MaterialID, Amount: req.Amount})
		w.diag.TotalDropSpawned++
	}
	w.spawnDrops = nil

	// Pickup probes queued this tick are resolved in the Pickup phase; the
	// Spawn phase only drains the request list into a per-tick working set.
	w.activeProbes = append(w.activeProbes, w.pickupProbes...)
	w.pickupProbes = nil
}

func (w *World) mergeDrop(req DropSpawnRequest) bool {
	for _, id := range w.Registry.Drops() {
		t, _ := w.Registry.Transform(id)
		d, _ := w.Registry.WorldDrop(id)
		if int32(t.X) == req.TX && int32(t.Y) == req.TY && d.MaterialID == req.MaterialID {
			d.Amount += req.Amount
			w.Registry.SetWorldDrop(id, d)
			return true
		}
	}
	return false
}

func (w *World) phaseMovement(ctx core.TickContext) {
	dt := ctx.FixedDeltaSeconds
	for _, id := range w.Registry.Moveable() {
		t, _ := w.Registry.Transform(id)
		v, _ := w.Registry.Velocity(id)
		t.X += v.VX * dt
		t.Y += v.VY * dt
		w.Registry.SetTransform(id, t)
	}
}

func (w *World) phaseCollision() []damageRequest {
	var requests []damageRequest
	recycled := make(map[EntityID]bool)

	for _, pid := range w.Registry.Projectiles() {
		if recycled[pid] {
			continue
		}
		pt, _ := w.Registry.Transform(pid)
		pc, _ := w.Registry.Collider(pid)
		pf, _ := w.Registry.Faction(pid)
		proj, _ := w.Registry.Projectile(pid)

		for _, hid := range w.Registry.Hostiles() {
			hf, _ := w.Registry.Faction(hid)
			if hf.ID == pf.ID {
				continue
			}
			ht, ok := w.Registry.Transform(hid)
			if !ok {
				continue
			}
			hc, _ := w.Registry.Collider(hid)
			dx := pt.X - ht.X
			dy := pt.Y - ht.Y
			rr := pc.Radius + hc.Radius
			if dx*dx+dy*dy <= rr*rr {
				requests = append(requests, damageRequest{target: hid, amount: proj.Damage})
				w.Registry.Destroy(pid)
				recycled[pid] = true
				w.diag.TotalProjectileRecycled++
				break
			}
		}
	}
	return requests
}

func (w *World) phaseDamage(requests []damageRequest) {
	for _, req := range requests {
		if !w.Registry.Alive(req.target) {
			w.diag.TotalDamageInstances++
			continue
		}
		h, ok := w.Registry.Health(req.target)
		if ok {
			h.Value -= req.amount
			w.Registry.SetHealth(req.target, h)
			if h.Value <= 0 {
				if ht, ok := w.Registry.HostileTarget(req.target); ok {
					w.combatEvents = append(w.combatEvents, CombatEvent{
						HostileDefeated: &HostileDefeated{RewardKillCount: ht.RewardKillCount},
					})
					w.diag.TotalHostileDefeated++
					w.Registry.Destroy(req.target)
				}
			}
		}
		w.diag.TotalDamageInstances++
	}
}

func (w *World) phasePickup() {
	claimed := make(map[EntityID]bool)
	for _, probe := range w.activeProbes {
		for _, id := range w.Registry.Drops() {
			if claimed[id] {
				continue
			}
			t, _ := w.Registry.Transform(id)
			if int32(t.X) != probe.TX || int32(t.Y) != probe.TY {
				continue
			}
			d, _ := w.Registry.WorldDrop(id)
			w.gameplayEvents = append(w.gameplayEvents, GameplayEvent{
				PickupResolved: &PickupResolved{
					PlayerID:   probe.PlayerID,
					TX:         probe.TX,
					TY:         probe.TY,
					MaterialID: d.MaterialID,
					Amount:     d.Amount,
				},
			})
			claimed[id] = true
			w.Registry.Destroy(id)
			w.diag.TotalDropPickedUp++
			break
		}
	}
	w.activeProbes = nil
}

func (w *World) phaseLifetime() {
	for _, id := range w.Registry.WithLifetime() {
		l, _ := w.Registry.Lifetime(id)
		if l.TicksRemaining == 0 {
			w.Registry.Destroy(id)
			continue
		}
		l.TicksRemaining--
		if l.TicksRemaining == 0 {
			if _, isProjectile := w.Registry.Projectile(id); isProjectile {
				w.diag.TotalProjectileRecycled++
			}
			w.Registry.Destroy(id)
			continue
		}
		w.Registry.SetLifetime(id, l)
	}
}
