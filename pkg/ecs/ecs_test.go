package ecs

import (
	"testing"

	"github.com/novaria-game/core/pkg/core"
)

func tick(w *World, n int, dt float64) {
	for i := 0; i < n; i++ {
		w.Tick(core.TickContext{TickIndex: uint64(i), FixedDeltaSeconds: dt})
	}
}

// TestProjectileKill exercises spec.md §8 scenario 2.
func TestProjectileKill(t *testing.T) {
	w := NewWorld()
	if err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i := 0; i < 2; i++ {
		w.QueueProjectile(ProjectileSpawnRequest{
			OwnerPlayerID: 7,
			X:             1, Y: -4,
			VX: 4.5, VY: 0,
			Radius:        0.25,
			FactionID:     1,
			Damage:        13,
			LifetimeTicks: 180,
		})
	}

	tick(w, 240, 1.0/60.0)

	diag := w.Diagnostics()
	if diag.TotalProjectileSpawned != 2 {
		t.Fatalf("TotalProjectileSpawned = %d, want 2", diag.TotalProjectileSpawned)
	}
	if diag.TotalDamageInstances < 2 {
		t.Fatalf("TotalDamageInstances = %d, want >= 2", diag.TotalDamageInstances)
	}
	if diag.TotalHostileDefeated < 1 {
		t.Fatalf("TotalHostileDefeated = %d, want >= 1", diag.TotalHostileDefeated)
	}
	if diag.TotalProjectileRecycled < 2 {
		t.Fatalf("TotalProjectileRecycled = %d, want >= 2", diag.TotalProjectileRecycled)
	}

	var defeated []HostileDefeated
	for _, e := range w.ConsumeCombatEvents() {
		if e.HostileDefeated != nil {
			defeated = append(defeated, *e.HostileDefeated)
		}
	}
	if len(defeated) != 1 || defeated[0].RewardKillCount != 1 {
		t.Fatalf("combat events = %+v, want exactly one HostileDefeated{reward=1}", defeated)
	}
}

// TestPickupEvent exercises spec.md §8 scenario 3.
func TestPickupEvent(t *testing.T) {
	w := NewWorld()
	if err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	w.QueueDrop(DropSpawnRequest{TX: 2, TY: -3, MaterialID: 2, Amount: 2})
	tick(w, 1, 1.0/60.0)

	w.QueuePickupProbe(PickupProbeRequest{PlayerID: 42, TX: 2, TY: -3})
	tick(w, 1, 1.0/60.0)

	var resolved []PickupResolved
	for _, e := range w.ConsumeGameplayEvents() {
		if e.PickupResolved != nil {
			resolved = append(resolved, *e.PickupResolved)
		}
	}
	if len(resolved) != 1 {
		t.Fatalf("gameplay events = %+v, want exactly one PickupResolved", resolved)
	}
	got := resolved[0]
	if got.PlayerID != 42 || got.MaterialID != 2 || got.Amount != 2 || got.TX != 2 || got.TY != -3 {
		t.Fatalf("PickupResolved = %+v, want player=42 material=2 amount=2 tile=(2,-3)", got)
	}

	if w.ActiveDropCount() != 0 {
		t.Fatalf("ActiveDropCount = %d, want 0", w.ActiveDropCount())
	}
	diag := w.Diagnostics()
	if diag.TotalDropSpawned != 1 {
		t.Fatalf("TotalDropSpawned = %d, want 1 (the seed hostile has no drop)", diag.TotalDropSpawned)
	}
	if diag.TotalDropPickedUp != 1 {
		t.Fatalf("TotalDropPickedUp = %d, want 1", diag.TotalDropPickedUp)
	}
}

func TestDropMergeSameTileSameMaterial(t *testing.T) {
	w := NewWorld()
	w.QueueDrop(DropSpawnRequest{TX: 0, TY: 0, MaterialID: 5, Amount: 1})
	w.QueueDrop(DropSpawnRequest{TX: 0, TY: 0, MaterialID: 5, Amount: 3})
	tick(w, 1, 1.0/60.0)

	if w.ActiveDropCount() != 1 {
		t.Fatalf("ActiveDropCount = %d, want 1 merged drop", w.ActiveDropCount())
	}
	id := w.Registry.Drops()[0]
	d, _ := w.Registry.WorldDrop(id)
	if d.Amount != 4 {
		t.Fatalf("merged amount = %d, want 4", d.Amount)
	}
}

func TestLifetimeExpiryDestroysEntityAndCountsRecycle(t *testing.T) {
	w := NewWorld()
	w.QueueProjectile(ProjectileSpawnRequest{
		X: 0, Y: 0, VX: 0, VY: 0, Radius: 0.1, FactionID: 99, Damage: 1, LifetimeTicks: 2,
	})
	tick(w, 1, 1.0/60.0)
	if len(w.Registry.Projectiles()) != 1 {
		t.Fatal("projectile should still be alive after 1 tick of a 2-tick lifetime")
	}
	tick(w, 1, 1.0/60.0)
	if len(w.Registry.Projectiles()) != 0 {
		t.Fatal("projectile should expire after its lifetime elapses")
	}
	if w.Diagnostics().TotalProjectileRecycled != 1 {
		t.Fatalf("TotalProjectileRecycled = %d, want 1", w.Diagnostics().TotalProjectileRecycled)
	}
}

func TestPickupProbeNeverClaimsAlreadyClaimedDropSameTick(t *testing.T) {
	w := NewWorld()
	w.QueueDrop(DropSpawnRequest{TX: 1, TY: 1, MaterialID: 9, Amount: 1})
	tick(w, 1, 1.0/60.0)

	w.QueuePickupProbe(PickupProbeRequest{PlayerID: 1, TX: 1, TY: 1})
	w.QueuePickupProbe(PickupProbeRequest{PlayerID: 2, TX: 1, TY: 1})
	tick(w, 1, 1.0/60.0)

	events := w.ConsumeGameplayEvents()
	if len(events) != 1 {
		t.Fatalf("expected exactly one probe to claim the single drop, got %d events", len(events))
	}
}
