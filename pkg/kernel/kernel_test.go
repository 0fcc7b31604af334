package kernel

import (
	"testing"

	"github.com/novaria-game/core/pkg/core"
	"github.com/novaria-game/core/pkg/gameplay"
	"github.com/novaria-game/core/pkg/materials"
	"github.com/novaria-game/core/pkg/motion"
	"github.com/novaria-game/core/pkg/wire"
	"github.com/novaria-game/core/pkg/world"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k := New(Config{
		Materials:      materials.New(),
		MotionSettings: motion.DefaultSettings(),
		Authority:      Authoritative,
	}, nil, nil)
	if err := k.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return k
}

// TestProgressLoop exercises spec.md §8 scenario 4 without a script
// bridge: CraftRecipe would no-op because ScriptModule is empty, so the
// progression calls are made directly on the ruleset and one Update then
// runs over the resulting state.
func TestProgressLoop(t *testing.T) {
	k := newTestKernel(t)

	k.Ruleset().CollectResource(0, 20) // wood
	k.Ruleset().CollectResource(1, 20) // stone
	k.Ruleset().MarkWorkbenchBuilt()
	k.Ruleset().MarkSwordCrafted()

	for i := 0; i < 3; i++ {
		if err := k.Ruleset().ExecuteAttackEnemy(); err != nil {
			t.Fatalf("attack enemy: %v", err)
		}
	}
	for k.Ruleset().Progress().BossHealth > 0 {
		if err := k.Ruleset().ExecuteAttackBoss(); err != nil {
			t.Fatalf("attack boss: %v", err)
		}
	}

	k.Update(1.0 / 60.0)

	p := k.Ruleset().Progress()
	if !p.PlayableLoopComplete || !p.BossDefeated {
		t.Fatalf("progress = %+v, want playable_loop_complete && boss_defeated", p)
	}
}

// TestSubmitLocalCommandDispatchesOnUpdate exercises the §6 public
// inbound contract: a command queued via SubmitLocalCommand must be
// dispatched against the kernel's own authoritative state on the next
// Update call, even with no transport attached.
func TestSubmitLocalCommandDispatchesOnUpdate(t *testing.T) {
	k := newTestKernel(t)
	k.SubmitLocalCommand(Command{Kind: CommandWorldSetTile, TileX: 2, TileY: 3, MaterialID: materials.Stone})

	if _, ok := k.World().TryReadTile(2, 3); ok {
		t.Fatal("tile mutated before Update; SubmitLocalCommand should defer to the next Update")
	}

	k.Update(1.0 / 60.0)

	mat, ok := k.World().TryReadTile(2, 3)
	if !ok || mat != materials.Stone {
		t.Fatalf("tile = (%v,%v), want (stone,true) after Update", mat, ok)
	}
}

func TestGameplayInteractionCommandEmitsMilestone(t *testing.T) {
	k := newTestKernel(t)
	k.SubmitLocalCommand(Command{Kind: CommandGameplayInteraction})
	k.Update(1.0 / 60.0)

	// Update drains ruleset milestones into staged script events.
	events := k.ConsumeScriptEvents()
	found := false
	for _, e := range events {
		if e.Name == "gameplay."+string(gameplay.MilestoneInteraction) {
			found = true
		}
	}
	if !found {
		t.Fatalf("script events = %v, want gameplay.interaction included", events)
	}
}

func TestWorldSetTileCommandMutatesWorld(t *testing.T) {
	k := newTestKernel(t)
	k.dispatch(core.TickContext{}, Command{Kind: CommandWorldSetTile, TileX: 5, TileY: 5, MaterialID: materials.Stone})

	mat, ok := k.World().TryReadTile(5, 5)
	if !ok || mat != materials.Stone {
		t.Fatalf("tile = (%v,%v), want (stone,true)", mat, ok)
	}
}

func TestCombatFireProjectileDefaultsRadius(t *testing.T) {
	k := newTestKernel(t)
	k.dispatch(core.TickContext{}, Command{
		Kind: CommandCombatFireProjectile,
		ProjectileX: 0, ProjectileY: 0, ProjectileVX: 0, ProjectileVY: 0,
		ProjectileFactionID: 1, ProjectileDamage: 25, ProjectileLifetimeTicks: 10,
	})
	k.ecs.Tick(core.TickContext{})
	ids := k.ecs.Registry.Projectiles()
	if len(ids) != 1 {
		t.Fatal("expected one projectile spawned with default radius")
	}
	if c, _ := k.ecs.Registry.Collider(ids[0]); c.Radius != DefaultProjectileRadius {
		t.Fatalf("projectile radius = %v, want %v", c.Radius, DefaultProjectileRadius)
	}
}

func TestCommandEncodeDecodeRoundTrip(t *testing.T) {
	cmd := Command{
		Kind: CommandCombatFireProjectile,
		PlayerID: 3,
		ProjectileX: 1.5, ProjectileY: -2.5,
		ProjectileVX: 4, ProjectileVY: 0,
		ProjectileRadius: 0.3, ProjectileFactionID: 1, ProjectileDamage: 10, ProjectileLifetimeTicks: 60,
	}
	raw := encodeCommand(cmd)
	got, err := decodeCommand(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlayerID != 3 || got.ProjectileDamage != 10 || got.ProjectileLifetimeTicks != 60 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestApplyRemoteChunkPayloadAppliesSnapshot(t *testing.T) {
	k := newTestKernel(t)

	var tiles [world.TilesPerChunk]uint16
	for i := range tiles {
		tiles[i] = uint16(materials.Stone)
	}
	payload := wire.EncodeChunkSnapshot(wire.ChunkSnapshot{CX: 1, CY: 2, Tiles: tiles[:]})

	if err := k.ApplyRemoteChunkPayload(payload); err != nil {
		t.Fatalf("ApplyRemoteChunkPayload: %v", err)
	}

	mat, ok := k.World().TryReadTile(1*world.Side, 2*world.Side)
	if !ok || mat != materials.Stone {
		t.Fatalf("tile = (%v,%v), want (stone,true)", mat, ok)
	}
}

func TestApplyRemoteChunkPayloadRejectsMalformed(t *testing.T) {
	k := newTestKernel(t)
	if err := k.ApplyRemoteChunkPayload([]byte{0xFF}); err == nil {
		t.Fatal("expected error decoding malformed chunk payload")
	}
}

func TestRestoreGameplayProgressClampsBossHealth(t *testing.T) {
	k := newTestKernel(t)
	k.RestoreGameplayProgress(gameplay.Progress{
		WorkbenchBuilt: true,
		SwordCrafted:   true,
		EnemyKillCount: 3,
		BossHealth:     999,
	})

	p := k.Ruleset().Progress()
	if p.BossHealth != gameplay.BossMaxHealth {
		t.Fatalf("boss health = %d, want clamped to %d", p.BossHealth, gameplay.BossMaxHealth)
	}

	k.RestoreGameplayProgress(gameplay.Progress{BossHealth: -40})
	if p := k.Ruleset().Progress(); p.BossHealth != 0 {
		t.Fatalf("boss health = %d, want clamped to 0", p.BossHealth)
	}
}

func TestRestoreGameplayProgressIsIdempotent(t *testing.T) {
	k := newTestKernel(t)
	snapshot := gameplay.Progress{
		WorkbenchBuilt:       true,
		SwordCrafted:         true,
		EnemyKillCount:       3,
		BossHealth:           0,
		BossDefeated:         true,
		PlayableLoopComplete: true,
	}
	k.RestoreGameplayProgress(snapshot)
	k.Ruleset().ConsumeMilestones()

	k.RestoreGameplayProgress(snapshot)
	if milestones := k.Ruleset().ConsumeMilestones(); len(milestones) != 0 {
		t.Fatalf("milestones = %v, want none re-emitted on repeated restore", milestones)
	}
}

func TestDecodeCommandRejectsTrailingBytes(t *testing.T) {
	raw := append(encodeCommand(Command{Kind: CommandGameplayAttackEnemy}), 0xFF)
	if _, err := decodeCommand(raw); err == nil {
		t.Fatal("expected rejection of trailing bytes")
	}
}
