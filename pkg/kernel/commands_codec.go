package kernel

import (
	"bytes"
	"fmt"

	"github.com/novaria-game/core/pkg/wire"
)

// encodeCommand serializes cmd for transport as a Command envelope
// payload: u8 kind followed by the fields relevant to that kind, all
// integers as varuint/zigzag-varint per pkg/wire.
func encodeCommand(cmd Command) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(cmd.Kind))
	wire.WriteVarUint(&buf, uint64(cmd.PlayerID))

	switch cmd.Kind {
	case CommandJump, CommandAttack, CommandPlayerMotionInput:
		wire.WriteFloat64(&buf, cmd.Axis)
		writeBool(&buf, cmd.JumpPressed)

	case CommandWorldSetTile:
		wire.WriteVarInt(&buf, int64(cmd.TileX))
		wire.WriteVarInt(&buf, int64(cmd.TileY))
		wire.WriteVarUint(&buf, uint64(cmd.MaterialID))
	case CommandLoadChunk, CommandUnloadChunk:
		wire.WriteVarInt(&buf, int64(cmd.ChunkCX))
		wire.WriteVarInt(&buf, int64(cmd.ChunkCY))

	case CommandGameplayCollectResource:
		buf.WriteByte(cmd.ResourceID)
		wire.WriteVarUint(&buf, uint64(cmd.Amount))
	case CommandGameplaySpawnDrop:
		wire.WriteVarInt(&buf, int64(cmd.DropTX))
		wire.WriteVarInt(&buf, int64(cmd.DropTY))
		wire.WriteVarUint(&buf, uint64(cmd.DropMaterialID))
		wire.WriteVarUint(&buf, uint64(cmd.DropAmount))
	case CommandGameplayPickupProbe:
		wire.WriteVarInt(&buf, int64(cmd.ProbeTX))
		wire.WriteVarInt(&buf, int64(cmd.ProbeTY))
	case CommandGameplayInteraction:
		// no additional fields

	case CommandGameplayActionPrimary:
		wire.WriteFloat64(&buf, cmd.TargetX)
		wire.WriteFloat64(&buf, cmd.TargetY)
		wire.WriteVarUint(&buf, uint64(cmd.HotbarRow))
		wire.WriteVarUint(&buf, uint64(cmd.HotbarSlot))
		wire.WriteVarUint(&buf, uint64(len(cmd.InventoryCounts)))
		for _, c := range cmd.InventoryCounts {
			wire.WriteVarUint(&buf, uint64(c))
		}
		wire.WriteVarUint(&buf, uint64(cmd.ToolFlags))
		writeBool(&buf, cmd.TargetIsAir)
		wire.WriteVarUint(&buf, uint64(cmd.HarvestTicks))
		wire.WriteVarUint(&buf, uint64(cmd.HarvestToolBits))

	case CommandGameplayCraftRecipe:
		wire.WriteVarUint(&buf, uint64(cmd.RecipeIndex))
		writeBool(&buf, cmd.WorkbenchReachable)

	case CommandGameplayAttackEnemy, CommandGameplayAttackBoss:
		// no additional fields

	case CommandCombatFireProjectile:
		wire.WriteFloat64(&buf, cmd.ProjectileX)
		wire.WriteFloat64(&buf, cmd.ProjectileY)
		wire.WriteFloat64(&buf, cmd.ProjectileVX)
		wire.WriteFloat64(&buf, cmd.ProjectileVY)
		wire.WriteFloat64(&buf, cmd.ProjectileRadius)
		wire.WriteVarUint(&buf, uint64(cmd.ProjectileFactionID))
		wire.WriteVarInt(&buf, int64(cmd.ProjectileDamage))
		wire.WriteVarUint(&buf, uint64(cmd.ProjectileLifetimeTicks))
	}
	return buf.Bytes()
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

// decodeCommand parses a Command envelope payload. Malformed payloads
// (short reads, out-of-range varints, unknown kind byte) are rejected
// and the command is dropped by the caller.
func decodeCommand(raw []byte) (Command, error) {
	r := bytes.NewReader(raw)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Command{}, fmt.Errorf("kernel: read kind: %w", err)
	}
	kind := CommandKind(kindByte)
	playerID, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return Command{}, fmt.Errorf("kernel: read player id: %w", err)
	}
	cmd := Command{Kind: kind, PlayerID: uint32(playerID)}

	switch kind {
	case CommandJump, CommandAttack, CommandPlayerMotionInput:
		if cmd.Axis, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.JumpPressed, err = readBool(r); err != nil {
			return Command{}, err
		}

	case CommandWorldSetTile:
		tx, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		ty, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		mat, err := wire.ReadVarUintBounded(r, 16)
		if err != nil {
			return Command{}, err
		}
		cmd.TileX, cmd.TileY, cmd.MaterialID = int32(tx), int32(ty), uint16(mat)

	case CommandLoadChunk, CommandUnloadChunk:
		cx, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		cy, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		cmd.ChunkCX, cmd.ChunkCY = int32(cx), int32(cy)

	case CommandGameplayCollectResource:
		resourceID, err := r.ReadByte()
		if err != nil {
			return Command{}, err
		}
		amount, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.ResourceID, cmd.Amount = resourceID, uint32(amount)

	case CommandGameplaySpawnDrop:
		tx, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		ty, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		mat, err := wire.ReadVarUintBounded(r, 16)
		if err != nil {
			return Command{}, err
		}
		amount, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.DropTX, cmd.DropTY, cmd.DropMaterialID, cmd.DropAmount = int32(tx), int32(ty), uint16(mat), uint32(amount)

	case CommandGameplayPickupProbe:
		tx, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		ty, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		cmd.ProbeTX, cmd.ProbeTY = int32(tx), int32(ty)

	case CommandGameplayInteraction:
		// no additional fields

	case CommandGameplayActionPrimary:
		if cmd.TargetX, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.TargetY, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		row, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		slot, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.HotbarRow, cmd.HotbarSlot = uint32(row), uint32(slot)
		n, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.InventoryCounts = make([]uint32, n)
		for i := range cmd.InventoryCounts {
			c, err := wire.ReadVarUintBounded(r, 32)
			if err != nil {
				return Command{}, err
			}
			cmd.InventoryCounts[i] = uint32(c)
		}
		toolFlags, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.ToolFlags = uint32(toolFlags)
		if cmd.TargetIsAir, err = readBool(r); err != nil {
			return Command{}, err
		}
		ticks, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.HarvestTicks = uint32(ticks)
		toolBits, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.HarvestToolBits = uint32(toolBits)

	case CommandGameplayCraftRecipe:
		idx, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.RecipeIndex = uint32(idx)
		if cmd.WorkbenchReachable, err = readBool(r); err != nil {
			return Command{}, err
		}

	case CommandGameplayAttackEnemy, CommandGameplayAttackBoss:
		// no additional fields

	case CommandCombatFireProjectile:
		if cmd.ProjectileX, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.ProjectileY, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.ProjectileVX, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.ProjectileVY, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		if cmd.ProjectileRadius, err = wire.ReadFloat64(r); err != nil {
			return Command{}, err
		}
		factionID, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return Command{}, err
		}
		cmd.ProjectileFactionID = uint32(factionID)
		damage, err := wire.ReadVarInt(r)
		if err != nil {
			return Command{}, err
		}
		cmd.ProjectileDamage = int32(damage)
		lifetime, err := wire.ReadVarUintBounded(r, 16)
		if err != nil {
			return Command{}, err
		}
		cmd.ProjectileLifetimeTicks = uint16(lifetime)

	default:
		return Command{}, fmt.Errorf("kernel: unknown command kind %d", kindByte)
	}

	if r.Len() != 0 {
		return Command{}, fmt.Errorf("kernel: trailing bytes after command kind %d", kindByte)
	}
	return cmd, nil
}
