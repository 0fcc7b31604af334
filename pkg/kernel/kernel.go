// Package kernel implements the Simulation Kernel of spec.md §4.9: the
// single-threaded orchestrator whose one public operation, Update, runs
// the ten ordered phases over the World Service, ECS, Player Motion,
// Gameplay Ruleset, Script Host, and UDP Peer Transport. Grounded on
// the teacher's cmd/server/main.go + pkg/server.Server wiring shape
// (config struct, New/Start, best-effort init sequence), generalized
// from a single TCP accept loop into a fixed ten-phase tick function.
package kernel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/novaria-game/core/pkg/core"
	"github.com/novaria-game/core/pkg/ecs"
	"github.com/novaria-game/core/pkg/gameplay"
	"github.com/novaria-game/core/pkg/materials"
	"github.com/novaria-game/core/pkg/motion"
	"github.com/novaria-game/core/pkg/script"
	"github.com/novaria-game/core/pkg/simrpc"
	"github.com/novaria-game/core/pkg/transport"
	"github.com/novaria-game/core/pkg/wire"
	"github.com/novaria-game/core/pkg/world"
)

// AuthorityMode selects whether motion commands are applied locally
// (Authoritative) or only via replicated snapshots (Replica), per
// spec.md §4.9 step 5.
type AuthorityMode uint8

const (
	Authoritative AuthorityMode = iota
	Replica
)

// Tuning constants, defaults per spec.md §4.9.
const (
	AutoReconnectRetryIntervalTicks uint64 = 300
	MaxPendingLocalCommands                = 1024
	SessionStateEventMinIntervalTicks uint64 = 30
)

// Diagnostics aggregates the kernel's own counters, layered over the
// component diagnostics exposed by World/ECS/Transport.
type Diagnostics struct {
	TickIndex                uint64
	DroppedLocalCommandCount uint64
	DroppedRemoteCommandCount uint64
	DroppedChunkPayloadCount uint64
	AutoReconnectCount       uint64
}

// ScriptEvent is a staged net.session or gameplay milestone event meant
// for dispatch into the script host.
type ScriptEvent struct {
	Name    string
	Payload []byte
}

// Config wires together the kernel's dependencies.
type Config struct {
	Materials     *materials.Catalog
	MotionSettings motion.Settings
	Authority     AuthorityMode
	ScriptModule  string // module name the ruleset's simrpc bridge talks to
	Logger        *zap.SugaredLogger
}

// Kernel is the single-threaded simulation orchestrator.
type Kernel struct {
	cfg Config

	world    *world.Service
	ecs      *ecs.World
	ruleset  *gameplay.Ruleset
	scriptHost *script.Host
	transport  *transport.Peer

	tickIndex uint64

	nextAutoReconnectTick uint64
	lastObservedState     transport.SessionState
	lastSessionEventTick  uint64

	motionStates map[uint32]motion.State

	localCommandQueue []Command

	pendingScriptEvents []ScriptEvent

	diag Diagnostics

	logger *zap.SugaredLogger
}

// New constructs a kernel. Call Init before the first Update.
func New(cfg Config, t *transport.Peer, logger *zap.SugaredLogger) *Kernel {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Kernel{
		cfg:          cfg,
		transport:    t,
		motionStates: make(map[uint32]motion.State),
		logger:       logger,
	}
}

// Init runs the best-effort initialization sequence of spec.md §4.9:
// world -> transport -> script -> ecs -> ruleset. On failure of any
// stage it rolls back already-initialized stages in reverse order and
// returns the first error.
func (k *Kernel) Init() (err error) {
	k.world = world.NewService(k.cfg.Materials)
	if err = k.world.Init(); err != nil {
		return fmt.Errorf("kernel: world init: %w", err)
	}
	defer func() {
		if err != nil {
			k.world.Shutdown()
		}
	}()

	// transport is constructed by the caller and passed in; "init" here
	// is limited to requesting the first connection attempt.
	if k.transport != nil {
		k.transport.RequestConnect()
		defer func() {
			if err != nil {
				k.transport.RequestDisconnect()
			}
		}()
	}

	k.scriptHost = script.NewHost(script.DefaultLimits(), k.logger)

	k.ecs = ecs.NewWorld()
	if err = k.ecs.Init(); err != nil {
		return fmt.Errorf("kernel: ecs init: %w", err)
	}

	var bridge gameplay.ScriptBridge
	if k.cfg.ScriptModule != "" {
		bridge = &simrpcCraftBridge{client: simrpc.NewClient(k.scriptHost, k.cfg.ScriptModule)}
	}
	k.ruleset = gameplay.New(bridge)

	return nil
}

// simrpcCraftBridge adapts a simrpc.Client to gameplay.ScriptBridge.
type simrpcCraftBridge struct {
	client *simrpc.Client
}

func (b *simrpcCraftBridge) CraftRecipe(recipeIndex uint32, workbenchReachable bool, wood, stone uint32) (gameplay.CraftResult, error) {
	resp := b.client.CraftRecipe(simrpc.CraftRecipeRequest{
		RecipeIndex:        recipeIndex,
		WorkbenchReachable: workbenchReachable,
		InventoryCounts:    []uint32{wood, stone},
	})
	if resp.Result != simrpc.ActionPlace {
		return gameplay.CraftResult{Accepted: false}, nil
	}
	var woodDelta, stoneDelta int32
	if len(resp.InventoryDeltas) > 0 {
		woodDelta = resp.InventoryDeltas[0]
	}
	if len(resp.InventoryDeltas) > 1 {
		stoneDelta = resp.InventoryDeltas[1]
	}
	return gameplay.CraftResult{
		Accepted:    true,
		WoodDelta:   woodDelta,
		StoneDelta:  stoneDelta,
		CraftedKind: uint8(resp.CraftedKind),
	}, nil
}

// Diagnostics returns a value-typed snapshot of the kernel's own
// counters.
func (k *Kernel) Diagnostics() Diagnostics { return k.diag }

// World exposes the world service for callers that need direct
// chunk access (e.g. an admin surface).
func (k *Kernel) World() *world.Service { return k.world }

// ScriptHost exposes the script sandbox host so the owning process can
// load the module named by Config.ScriptModule before the first Update.
// Returns nil until Init has run.
func (k *Kernel) ScriptHost() *script.Host { return k.scriptHost }

// ECS exposes the entity/component runtime.
func (k *Kernel) ECS() *ecs.World { return k.ecs }

// Ruleset exposes the gameplay ruleset.
func (k *Kernel) Ruleset() *gameplay.Ruleset { return k.ruleset }

// SubmitLocalCommand enqueues a command for dispatch on a future
// Update call, bounded at MaxPendingLocalCommands.
func (k *Kernel) SubmitLocalCommand(cmd Command) {
	if len(k.localCommandQueue) >= MaxPendingLocalCommands {
		k.diag.DroppedLocalCommandCount++
		return
	}
	k.localCommandQueue = append(k.localCommandQueue, cmd)
}

// ConsumeScriptEvents returns and clears staged script events (net
// session transitions and gameplay milestones) ready for dispatch.
func (k *Kernel) ConsumeScriptEvents() []ScriptEvent {
	out := k.pendingScriptEvents
	k.pendingScriptEvents = nil
	return out
}

// ApplyRemoteChunkPayload decodes and applies a single chunk snapshot
// payload directly against the world, bypassing the transport's
// per-tick queue. This is the save-state loader's entry point at boot
// (spec.md §6), called before the first Update.
func (k *Kernel) ApplyRemoteChunkPayload(raw []byte) error {
	snap, _, err := wire.DecodeChunkSnapshot(raw)
	if err != nil {
		return fmt.Errorf("kernel: decode chunk payload: %w", err)
	}
	tiles, ok := toTileArray(snap.Tiles)
	if !ok {
		return fmt.Errorf("kernel: chunk payload has %d tiles, want %d", len(snap.Tiles), world.TilesPerChunk)
	}
	return k.world.ApplySnapshot(world.Snapshot{CX: snap.CX, CY: snap.CY, Tiles: tiles})
}

// RestoreGameplayProgress idempotently restores the ruleset's
// progression counters from a save-state snapshot (spec.md §6); boss
// health is clamped to [0, gameplay.BossMaxHealth] by the ruleset.
func (k *Kernel) RestoreGameplayProgress(snapshot gameplay.Progress) {
	k.ruleset.Restore(snapshot)
}

// Update runs the ten ordered phases of spec.md §4.9 exactly once.
func (k *Kernel) Update(fixedDeltaSeconds float64) {
	ctx := core.TickContext{TickIndex: k.tickIndex, FixedDeltaSeconds: fixedDeltaSeconds}

	k.phaseAutoReconnect(ctx)
	k.phaseTransportTick(ctx)
	k.phaseFlushLocalCommands(ctx)
	k.phaseDispatchRemoteCommands(ctx)
	k.phaseApplyRemoteChunks(ctx)
	k.ecs.Tick(ctx)
	k.phaseRulesetProcess()
	k.phasePublishDirtyChunks()
	k.phaseQueueSessionEvent(ctx)

	if k.scriptHost != nil {
		k.scriptHost.DispatchTick(ctx.TickIndex, ctx.FixedDeltaSeconds)
		for _, evt := range k.pendingScriptEvents {
			k.scriptHost.DispatchEvent(evt.Name, evt.Payload)
		}
	}

	k.tickIndex++
	k.diag.TickIndex = k.tickIndex
}

func (k *Kernel) phaseAutoReconnect(ctx core.TickContext) {
	if k.transport == nil {
		return
	}
	if k.transport.State() == transport.Disconnected && ctx.TickIndex >= k.nextAutoReconnectTick {
		k.transport.RequestConnect()
		k.nextAutoReconnectTick = ctx.TickIndex + AutoReconnectRetryIntervalTicks
		k.diag.AutoReconnectCount++
	}
}

func (k *Kernel) phaseTransportTick(ctx core.TickContext) {
	if k.transport == nil {
		return
	}
	k.transport.Tick(ctx.TickIndex)
}

// phaseFlushLocalCommands dispatches every command queued by
// SubmitLocalCommand against this kernel's own world/ecs/ruleset, and,
// when a transport is attached, also forwards it over the wire so a
// connected peer observes the same command (spec.md §4.9 step 4->5).
func (k *Kernel) phaseFlushLocalCommands(ctx core.TickContext) {
	for _, cmd := range k.localCommandQueue {
		if k.transport != nil {
			k.transport.SubmitLocalCommand(encodeCommand(cmd))
		}
		k.dispatch(ctx, cmd)
	}
	k.localCommandQueue = nil
}

func (k *Kernel) phaseDispatchRemoteCommands(ctx core.TickContext) {
	if k.transport == nil {
		return
	}
	for _, raw := range k.transport.DrainRemoteCommands() {
		cmd, err := decodeCommand(raw)
		if err != nil {
			k.diag.DroppedRemoteCommandCount++
			continue
		}
		k.dispatch(ctx, cmd)
	}
}

func (k *Kernel) dispatch(ctx core.TickContext, cmd Command) {
	switch cmd.Kind {
	case CommandJump, CommandAttack, CommandPlayerMotionInput:
		if k.cfg.Authority != Authoritative {
			return
		}
		state := k.motionStates[cmd.PlayerID]
		state = motion.Step(state, motion.Input{Axis: cmd.Axis, JumpPressed: cmd.JumpPressed}, k.cfg.MotionSettings, ctx.FixedDeltaSeconds, k.solidAt)
		k.motionStates[cmd.PlayerID] = state

	case CommandWorldSetTile:
		k.world.ApplyTileMutation(cmd.TileX, cmd.TileY, cmd.MaterialID)
	case CommandLoadChunk:
		k.world.LoadChunk(cmd.ChunkCX, cmd.ChunkCY)
	case CommandUnloadChunk:
		k.world.UnloadChunk(cmd.ChunkCX, cmd.ChunkCY)

	case CommandGameplayCollectResource:
		k.ruleset.CollectResource(gameplay.Resource(cmd.ResourceID), cmd.Amount)
	case CommandGameplaySpawnDrop:
		k.ecs.QueueDrop(ecs.DropSpawnRequest{TX: cmd.DropTX, TY: cmd.DropTY, MaterialID: cmd.DropMaterialID, Amount: cmd.DropAmount})
	case CommandGameplayPickupProbe:
		k.ecs.QueuePickupProbe(ecs.PickupProbeRequest{PlayerID: cmd.PlayerID, TX: cmd.ProbeTX, TY: cmd.ProbeTY})
	case CommandGameplayInteraction:
		k.ruleset.ExecuteInteraction()
	case CommandGameplayActionPrimary:
		if k.cfg.ScriptModule != "" {
			client := simrpc.NewClient(k.scriptHost, k.cfg.ScriptModule)
			_ = client.ActionPrimary(simrpc.ActionPrimaryRequest{
				TargetX: cmd.TargetX, TargetY: cmd.TargetY,
				HotbarRow: cmd.HotbarRow, HotbarSlot: cmd.HotbarSlot,
				InventoryCounts: cmd.InventoryCounts,
				ToolFlags:       cmd.ToolFlags,
				TargetIsAir:     cmd.TargetIsAir,
				HarvestTicks:    cmd.HarvestTicks,
				HarvestToolBits: cmd.HarvestToolBits,
			})
		}
	case CommandGameplayCraftRecipe:
		_, _ = k.ruleset.CraftRecipe(cmd.RecipeIndex, cmd.WorkbenchReachable)
	case CommandGameplayAttackEnemy:
		_ = k.ruleset.ExecuteAttackEnemy()
	case CommandGameplayAttackBoss:
		_ = k.ruleset.ExecuteAttackBoss()

	case CommandCombatFireProjectile:
		radius := cmd.ProjectileRadius
		if radius == 0 {
			radius = DefaultProjectileRadius
		}
		k.ecs.QueueProjectile(ecs.ProjectileSpawnRequest{
			OwnerPlayerID: cmd.PlayerID,
			X:             cmd.ProjectileX, Y: cmd.ProjectileY,
			VX: cmd.ProjectileVX, VY: cmd.ProjectileVY,
			Radius:        radius,
			FactionID:     cmd.ProjectileFactionID,
			Damage:        cmd.ProjectileDamage,
			LifetimeTicks: cmd.ProjectileLifetimeTicks,
		})
	}
}

func (k *Kernel) solidAt(tileX, tileY int32, localX, localY float64) bool {
	mat, ok := k.world.TryReadTile(tileX, tileY)
	if !ok {
		return false
	}
	return k.cfg.Materials.IsSolidAt(mat, localX, localY)
}

func (k *Kernel) phaseApplyRemoteChunks(ctx core.TickContext) {
	if k.transport == nil {
		return
	}
	for _, raw := range k.transport.DrainRemoteChunkPayloads() {
		snap, _, err := wire.DecodeChunkSnapshot(raw)
		if err != nil {
			k.diag.DroppedChunkPayloadCount++
			continue
		}
		tiles, ok := toTileArray(snap.Tiles)
		if !ok {
			k.diag.DroppedChunkPayloadCount++
			continue
		}
		k.world.ApplySnapshot(world.Snapshot{CX: snap.CX, CY: snap.CY, Tiles: tiles})
	}
}

func toTileArray(tiles []uint16) (array [world.TilesPerChunk]uint16, ok bool) {
	if len(tiles) != world.TilesPerChunk {
		return array, false
	}
	copy(array[:], tiles)
	return array, true
}

func fromTileArray(tiles [world.TilesPerChunk]uint16) []uint16 {
	out := make([]uint16, world.TilesPerChunk)
	copy(out, tiles[:])
	return out
}

func (k *Kernel) phaseRulesetProcess() {
	k.ruleset.ProcessCombatEvents(k.ecs.ConsumeCombatEvents())
	k.ruleset.ProcessGameplayEvents(k.ecs.ConsumeGameplayEvents())
	for _, m := range k.ruleset.ConsumeMilestones() {
		k.pendingScriptEvents = append(k.pendingScriptEvents, ScriptEvent{Name: "gameplay." + string(m)})
	}
}

func (k *Kernel) phasePublishDirtyChunks() {
	if k.transport == nil {
		k.world.ConsumeDirty()
		return
	}
	dirty := k.world.ConsumeDirty()
	if len(dirty) == 0 {
		return
	}
	snaps := make([]wire.ChunkSnapshot, 0, len(dirty))
	for _, key := range dirty {
		snap, err := k.world.BuildSnapshot(key.CX, key.CY)
		if err != nil {
			continue
		}
		snaps = append(snaps, wire.ChunkSnapshot{CX: snap.CX, CY: snap.CY, Tiles: fromTileArray(snap.Tiles)})
	}
	k.transport.PublishWorldSnapshot(snaps)
}

func (k *Kernel) phaseQueueSessionEvent(ctx core.TickContext) {
	if k.transport == nil {
		return
	}
	current := k.transport.State()
	if current == k.lastObservedState {
		return
	}
	if ctx.TickIndex-k.lastSessionEventTick < SessionStateEventMinIntervalTicks && k.lastSessionEventTick != 0 {
		return
	}
	k.lastObservedState = current
	k.lastSessionEventTick = ctx.TickIndex
	k.pendingScriptEvents = append(k.pendingScriptEvents, ScriptEvent{Name: "net.session", Payload: []byte(current.String())})
}

// ErrShutdown is an exported sentinel for kernel shutdown; neither Init
// nor Shutdown returns or wraps it.
var ErrShutdown = errors.New("kernel: shutdown")

// Shutdown tears down the kernel's owned resources in reverse
// initialization order.
func (k *Kernel) Shutdown() error {
	if k.transport != nil {
		k.transport.RequestDisconnect()
	}
	if k.world != nil {
		k.world.Shutdown()
	}
	return nil
}
