package gameplay

import (
	"testing"

	"github.com/novaria-game/core/pkg/ecs"
)

type stubBridge struct {
	result CraftResult
	err    error
}

func (s stubBridge) CraftRecipe(recipeIndex uint32, workbenchReachable bool, wood, stone uint32) (CraftResult, error) {
	return s.result, s.err
}

// TestPlayableLoop exercises spec.md §8 scenario 4.
func TestPlayableLoop(t *testing.T) {
	r := New(stubBridge{result: CraftResult{Accepted: true, WoodDelta: -WorkbenchWoodCost, CraftedKind: 1}})

	r.CollectResource(ResourceWood, 20)
	r.CollectResource(ResourceStone, 20)

	if _, err := r.CraftRecipe(0, true); err != nil {
		t.Fatalf("craft workbench: %v", err)
	}
	if !r.Progress().WorkbenchBuilt {
		t.Fatal("expected workbench_built after craft")
	}

	r.bridge = stubBridge{result: CraftResult{Accepted: true, WoodDelta: -SwordWoodCost, CraftedKind: 2}}
	if _, err := r.CraftRecipe(1, true); err != nil {
		t.Fatalf("craft sword: %v", err)
	}
	if !r.Progress().SwordCrafted {
		t.Fatal("expected sword_crafted after craft")
	}

	for i := 0; i < 3; i++ {
		if err := r.ExecuteAttackEnemy(); err != nil {
			t.Fatalf("attack enemy %d: %v", i, err)
		}
	}

	for r.Progress().BossHealth > 0 {
		if err := r.ExecuteAttackBoss(); err != nil {
			t.Fatalf("attack boss: %v", err)
		}
	}

	p := r.Progress()
	if !p.PlayableLoopComplete || !p.BossDefeated {
		t.Fatalf("progress = %+v, want playable_loop_complete && boss_defeated", p)
	}
}

func TestAttackEnemyRequiresSword(t *testing.T) {
	r := New(nil)
	if err := r.ExecuteAttackEnemy(); err != ErrSwordRequired {
		t.Fatalf("err = %v, want ErrSwordRequired", err)
	}
}

func TestAttackBossRequiresThreeKills(t *testing.T) {
	r := New(nil)
	r.MarkSwordCrafted()
	if err := r.ExecuteAttackBoss(); err != ErrBossUnavailable {
		t.Fatalf("err = %v, want ErrBossUnavailable", err)
	}
}

func TestPlayableLoopMilestoneFiresOnce(t *testing.T) {
	r := New(nil)
	r.MarkWorkbenchBuilt()
	r.MarkSwordCrafted()
	for i := 0; i < KillThreshold; i++ {
		_ = r.ExecuteAttackEnemy()
	}
	for r.Progress().BossHealth > 0 {
		_ = r.ExecuteAttackBoss()
	}

	var count int
	for _, m := range r.ConsumeMilestones() {
		if m == MilestonePlayableLoopComplete {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("playable_loop_complete fired %d times, want 1", count)
	}

	// Further calls after the loop is already complete must not refire it.
	r.CollectResource(ResourceWood, 1)
	for _, m := range r.ConsumeMilestones() {
		if m == MilestonePlayableLoopComplete {
			t.Fatal("playable_loop_complete fired a second time")
		}
	}
}

func TestProcessCombatAndGameplayEvents(t *testing.T) {
	r := New(nil)
	r.MarkSwordCrafted()
	r.ProcessCombatEvents([]ecs.CombatEvent{
		{HostileDefeated: &ecs.HostileDefeated{RewardKillCount: 2}},
	})
	if r.Progress().EnemyKillCount != 2 {
		t.Fatalf("EnemyKillCount = %d, want 2", r.Progress().EnemyKillCount)
	}

	r.ProcessGameplayEvents([]ecs.GameplayEvent{
		{PickupResolved: &ecs.PickupResolved{PlayerID: 1, MaterialID: 5, Amount: 3}},
	})
	notes := r.ConsumePickupNotifications()
	if len(notes) != 1 || notes[0].MaterialID != 5 || notes[0].Amount != 3 {
		t.Fatalf("notifications = %+v", notes)
	}
}
