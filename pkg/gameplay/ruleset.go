// Package gameplay tracks progression counters and bridges authoritative
// rule decisions to the script host via simrpc, per spec.md §4.6.
// Grounded on the teacher's pkg/server/crafting.go (recipe tables) and
// pkg/server/gamemode.go (idempotent state transitions broadcast as
// events), generalized from Minecraft recipe/gamemode bookkeeping into
// the progression-latch state machine the spec requires.
package gameplay

import "github.com/novaria-game/core/pkg/ecs"

// Balance constants, defaults per spec.md §4.6.
const (
	WorkbenchWoodCost = 10
	SwordWoodCost     = 7
	BossMaxHealth     = 60
	BossDamagePerHit  = 10
	KillThreshold     = 3
)

// Resource identifies a collectible resource kind.
type Resource uint8

const (
	ResourceWood Resource = iota
	ResourceStone
)

// Progress is the Gameplay Progress state of spec.md §3.
type Progress struct {
	WoodCollected       uint32
	StoneCollected      uint32
	WorkbenchBuilt      bool
	SwordCrafted        bool
	EnemyKillCount       uint32
	BossHealth           int32
	BossDefeated         bool
	PlayableLoopComplete bool
}

// Milestone is a single progression event emitted by a state-changing
// ruleset call.
type Milestone string

const (
	MilestoneCollectWood          Milestone = "collect_wood"
	MilestoneCollectStone         Milestone = "collect_stone"
	MilestoneWorkbenchBuilt       Milestone = "workbench_built"
	MilestoneSwordCrafted         Milestone = "sword_crafted"
	MilestoneInteraction          Milestone = "interaction"
	MilestoneAttackEnemy          Milestone = "attack_enemy"
	MilestoneAttackBoss           Milestone = "attack_boss"
	MilestoneDefeatBoss           Milestone = "defeat_boss"
	MilestonePlayableLoopComplete Milestone = "playable_loop_complete"
)

// PickupNotification is materialized from a PickupResolved gameplay
// event for later consumption by the UI/save layer.
type PickupNotification struct {
	PlayerID   uint32
	MaterialID uint16
	Amount     uint32
}

// Ruleset holds progression counters and routes rule decisions through
// the script bridge (ScriptBridge) when a call requires authoritative
// script-side validation.
type Ruleset struct {
	progress Progress

	loopCompletedOnce bool
	milestones        []Milestone
	pickups           []PickupNotification

	bridge ScriptBridge
}

// ScriptBridge is the narrow surface the ruleset needs from the script
// host / simrpc layer: routing CraftRecipe requests to obtain
// authoritative deltas, per spec.md §4.9 step 5.
type ScriptBridge interface {
	CraftRecipe(recipeIndex uint32, workbenchReachable bool, wood, stone uint32) (CraftResult, error)
}

// CraftResult is the subset of a simrpc CraftRecipe response the ruleset
// acts on.
type CraftResult struct {
	Accepted   bool
	WoodDelta  int32
	StoneDelta int32
	CraftedKind uint8 // 0 = none, 1 = workbench, 2 = sword
}

// New constructs a fresh ruleset. bridge may be nil; CraftRecipe calls
// then fail closed (Accepted=false) rather than panicking.
func New(bridge ScriptBridge) *Ruleset {
	return &Ruleset{
		progress: Progress{BossHealth: BossMaxHealth},
		bridge:   bridge,
	}
}

// Progress returns a value-typed snapshot of current progression state.
func (r *Ruleset) Progress() Progress { return r.progress }

// ConsumeMilestones returns and clears the pending milestone queue.
func (r *Ruleset) ConsumeMilestones() []Milestone {
	out := r.milestones
	r.milestones = nil
	return out
}

// ConsumePickupNotifications returns and clears pending pickup
// notifications produced by ProcessGameplayEvents.
func (r *Ruleset) ConsumePickupNotifications() []PickupNotification {
	out := r.pickups
	r.pickups = nil
	return out
}

func (r *Ruleset) emit(m Milestone) { r.milestones = append(r.milestones, m) }

// reevaluateLoop re-checks playable_loop_complete and emits its
// milestone exactly once per run, on the rising edge.
func (r *Ruleset) reevaluateLoop() {
	complete := r.progress.WorkbenchBuilt &&
		r.progress.SwordCrafted &&
		r.progress.EnemyKillCount >= KillThreshold &&
		r.progress.BossDefeated
	r.progress.PlayableLoopComplete = complete
	if complete && !r.loopCompletedOnce {
		r.loopCompletedOnce = true
		r.emit(MilestonePlayableLoopComplete)
	}
}

// CollectResource increments a resource counter and emits a progress
// milestone. A zero amount is a no-op.
func (r *Ruleset) CollectResource(resource Resource, amount uint32) {
	if amount == 0 {
		return
	}
	switch resource {
	case ResourceWood:
		r.progress.WoodCollected += amount
		r.emit(MilestoneCollectWood)
	case ResourceStone:
		r.progress.StoneCollected += amount
		r.emit(MilestoneCollectStone)
	}
	r.reevaluateLoop()
}

// ExecuteInteraction emits the interaction milestone. Unlike the combat
// operations it has no preconditions; the caller (the kernel's command
// dispatch) is responsible for any target validation before reaching
// here.
func (r *Ruleset) ExecuteInteraction() {
	r.emit(MilestoneInteraction)
}

// Restore idempotently replaces the progression counters from a
// previously saved snapshot, clamping boss_health to [0, BossMaxHealth]
// and re-deriving boss_defeated/playable_loop_complete so a snapshot
// taken mid-fight can't resurrect a defeated boss or leave the loop
// latch stuck open.
func (r *Ruleset) Restore(snapshot Progress) {
	r.progress.WoodCollected = snapshot.WoodCollected
	r.progress.StoneCollected = snapshot.StoneCollected
	r.progress.WorkbenchBuilt = snapshot.WorkbenchBuilt
	r.progress.SwordCrafted = snapshot.SwordCrafted
	r.progress.EnemyKillCount = snapshot.EnemyKillCount

	bossHealth := snapshot.BossHealth
	if bossHealth > BossMaxHealth {
		bossHealth = BossMaxHealth
	}
	if bossHealth < 0 {
		bossHealth = 0
	}
	r.progress.BossHealth = bossHealth
	r.progress.BossDefeated = snapshot.BossDefeated || bossHealth == 0

	complete := snapshot.PlayableLoopComplete ||
		(r.progress.WorkbenchBuilt &&
			r.progress.SwordCrafted &&
			r.progress.EnemyKillCount >= KillThreshold &&
			r.progress.BossDefeated)
	r.progress.PlayableLoopComplete = complete
	r.loopCompletedOnce = complete
}

// MarkWorkbenchBuilt is an idempotent latch; only the first call emits a
// milestone and re-evaluates loop completion.
func (r *Ruleset) MarkWorkbenchBuilt() {
	if r.progress.WorkbenchBuilt {
		return
	}
	r.progress.WorkbenchBuilt = true
	r.emit(MilestoneWorkbenchBuilt)
	r.reevaluateLoop()
}

// MarkSwordCrafted is an idempotent latch.
func (r *Ruleset) MarkSwordCrafted() {
	if r.progress.SwordCrafted {
		return
	}
	r.progress.SwordCrafted = true
	r.emit(MilestoneSwordCrafted)
	r.reevaluateLoop()
}

// ErrSwordRequired is returned by combat operations that require the
// sword_crafted latch.
var ErrSwordRequired = errSwordRequired{}

type errSwordRequired struct{}

func (errSwordRequired) Error() string { return "gameplay: sword_crafted required" }

// ExecuteAttackEnemy requires sword_crafted; increments enemy_kill_count
// and emits a milestone.
func (r *Ruleset) ExecuteAttackEnemy() error {
	if !r.progress.SwordCrafted {
		return ErrSwordRequired
	}
	r.progress.EnemyKillCount++
	r.emit(MilestoneAttackEnemy)
	r.reevaluateLoop()
	return nil
}

// ErrBossUnavailable is returned when attack_boss preconditions are not
// met (no sword, insufficient kills, or already defeated).
var ErrBossUnavailable = errBossUnavailable{}

type errBossUnavailable struct{}

func (errBossUnavailable) Error() string { return "gameplay: attack_boss preconditions not met" }

// ExecuteAttackBoss requires sword_crafted ∧ enemy_kill_count ≥
// KillThreshold ∧ ¬boss_defeated. Subtracts BossDamagePerHit (clamped
// at 0); on reaching 0 latches boss_defeated and emits defeat_boss,
// otherwise emits attack_boss.
func (r *Ruleset) ExecuteAttackBoss() error {
	if !r.progress.SwordCrafted || r.progress.EnemyKillCount < KillThreshold || r.progress.BossDefeated {
		return ErrBossUnavailable
	}
	r.progress.BossHealth -= BossDamagePerHit
	if r.progress.BossHealth < 0 {
		r.progress.BossHealth = 0
	}
	if r.progress.BossHealth == 0 {
		r.progress.BossDefeated = true
		r.emit(MilestoneDefeatBoss)
	} else {
		r.emit(MilestoneAttackBoss)
	}
	r.reevaluateLoop()
	return nil
}

// CraftRecipe routes the request through the script bridge and applies
// the authoritative deltas it returns.
func (r *Ruleset) CraftRecipe(recipeIndex uint32, workbenchReachable bool) (CraftResult, error) {
	if r.bridge == nil {
		return CraftResult{}, nil
	}
	res, err := r.bridge.CraftRecipe(recipeIndex, workbenchReachable, r.progress.WoodCollected, r.progress.StoneCollected)
	if err != nil || !res.Accepted {
		return res, err
	}
	r.progress.WoodCollected = addDelta(r.progress.WoodCollected, res.WoodDelta)
	r.progress.StoneCollected = addDelta(r.progress.StoneCollected, res.StoneDelta)
	switch res.CraftedKind {
	case 1:
		r.MarkWorkbenchBuilt()
	case 2:
		r.MarkSwordCrafted()
	}
	r.reevaluateLoop()
	return res, nil
}

func addDelta(base uint32, delta int32) uint32 {
	v := int64(base) + int64(delta)
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// ProcessCombatEvents adds reward_kill_count to enemy kills for each
// HostileDefeated event.
func (r *Ruleset) ProcessCombatEvents(events []ecs.CombatEvent) {
	changed := false
	for _, e := range events {
		if e.HostileDefeated != nil {
			r.progress.EnemyKillCount += e.HostileDefeated.RewardKillCount
			changed = true
		}
	}
	if changed {
		r.reevaluateLoop()
	}
}

// ProcessGameplayEvents materializes a pending pickup notification for
// each PickupResolved event.
func (r *Ruleset) ProcessGameplayEvents(events []ecs.GameplayEvent) {
	for _, e := range events {
		if e.PickupResolved != nil {
			r.pickups = append(r.pickups, PickupNotification{
				PlayerID:   e.PickupResolved.PlayerID,
				MaterialID: e.PickupResolved.MaterialID,
				Amount:     e.PickupResolved.Amount,
			})
		}
	}
}
