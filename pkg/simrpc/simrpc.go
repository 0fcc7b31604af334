// Package simrpc implements the binary request/response protocol that
// bridges the Gameplay Ruleset to the Script Sandbox Host, per
// spec.md §4.7. Every message is prefixed by (u8 version=1, u8 command)
// and built on the varuint/zigzag primitives of pkg/wire, the same way
// the teacher's pkg/protocol builds fixed packets atop raw byte writes.
package simrpc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/novaria-game/core/pkg/wire"
)

// Version is the only simrpc wire version this codec understands.
const Version uint8 = 1

// Command is the closed set of simrpc request kinds.
type Command uint8

const (
	CommandValidate      Command = 1
	CommandActionPrimary Command = 2
	CommandCraftRecipe   Command = 3
)

// ErrUnsupportedVersion is returned when the leading version byte isn't
// Version.
var ErrUnsupportedVersion = errors.New("simrpc: unsupported version")

// ErrUnknownCommand is returned when the command byte is outside the
// closed set.
var ErrUnknownCommand = errors.New("simrpc: unknown command")

// ErrTrailingBytes is returned when a decode leaves unconsumed bytes,
// per spec.md §4.7 ("fully consumed on decode; trailing bytes cause
// rejection").
var ErrTrailingBytes = errors.New("simrpc: trailing bytes after decode")

func writeHeader(w *bytes.Buffer, cmd Command) {
	w.WriteByte(Version)
	w.WriteByte(byte(cmd))
}

func readHeader(r *bytes.Reader, want Command) error {
	version, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("simrpc: read version: %w", err)
	}
	if version != Version {
		return ErrUnsupportedVersion
	}
	cmd, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("simrpc: read command: %w", err)
	}
	if Command(cmd) != want {
		return ErrUnknownCommand
	}
	return nil
}

func finish(r *bytes.Reader) error {
	if r.Len() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

// PeekCommand reads the version/command header without consuming the
// full message, for routing an opaque payload to the right decoder.
func PeekCommand(raw []byte) (Command, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("simrpc: message too short (%d bytes)", len(raw))
	}
	if raw[0] != Version {
		return 0, ErrUnsupportedVersion
	}
	switch Command(raw[1]) {
	case CommandValidate, CommandActionPrimary, CommandCraftRecipe:
		return Command(raw[1]), nil
	default:
		return 0, ErrUnknownCommand
	}
}

// ValidateRequest has no fields.
type ValidateRequest struct{}

// EncodeValidateRequest serializes a Validate request.
func EncodeValidateRequest(ValidateRequest) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandValidate)
	return buf.Bytes()
}

// DecodeValidateRequest parses a Validate request.
func DecodeValidateRequest(raw []byte) (ValidateRequest, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandValidate); err != nil {
		return ValidateRequest{}, err
	}
	if err := finish(r); err != nil {
		return ValidateRequest{}, err
	}
	return ValidateRequest{}, nil
}

// ValidateResponse carries a single ok byte.
type ValidateResponse struct {
	OK bool
}

// EncodeValidateResponse serializes a Validate response.
func EncodeValidateResponse(resp ValidateResponse) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandValidate)
	if resp.OK {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeValidateResponse parses a Validate response.
func DecodeValidateResponse(raw []byte) (ValidateResponse, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandValidate); err != nil {
		return ValidateResponse{}, err
	}
	b, err := r.ReadByte()
	if err != nil {
		return ValidateResponse{}, err
	}
	if err := finish(r); err != nil {
		return ValidateResponse{}, err
	}
	return ValidateResponse{OK: b != 0}, nil
}

// ActionResult is the closed set of ActionPrimary outcomes.
type ActionResult uint8

const (
	ActionReject  ActionResult = 0
	ActionHarvest ActionResult = 1
	ActionPlace   ActionResult = 2
)

// ActionPrimaryRequest is what the kernel sends for a primary-action
// command, per spec.md §4.7's request field list.
type ActionPrimaryRequest struct {
	PlayerX, PlayerY float64
	TargetX, TargetY float64
	HotbarRow        uint32
	HotbarSlot       uint32
	InventoryCounts  []uint32
	ToolFlags        uint32
	TargetIsAir      bool
	HarvestTicks     uint32
	HarvestToolBits  uint32
}

// EncodeActionPrimaryRequest serializes an ActionPrimary request.
func EncodeActionPrimaryRequest(req ActionPrimaryRequest) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandActionPrimary)
	wire.WriteFloat64(&buf, req.PlayerX)
	wire.WriteFloat64(&buf, req.PlayerY)
	wire.WriteFloat64(&buf, req.TargetX)
	wire.WriteFloat64(&buf, req.TargetY)
	wire.WriteVarUint(&buf, uint64(req.HotbarRow))
	wire.WriteVarUint(&buf, uint64(req.HotbarSlot))
	wire.WriteVarUint(&buf, uint64(len(req.InventoryCounts)))
	for _, c := range req.InventoryCounts {
		wire.WriteVarUint(&buf, uint64(c))
	}
	wire.WriteVarUint(&buf, uint64(req.ToolFlags))
	if req.TargetIsAir {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	wire.WriteVarUint(&buf, uint64(req.HarvestTicks))
	wire.WriteVarUint(&buf, uint64(req.HarvestToolBits))
	return buf.Bytes()
}

// DecodeActionPrimaryRequest parses an ActionPrimary request,
// bounds-checking every varuint field against its target width.
func DecodeActionPrimaryRequest(raw []byte) (ActionPrimaryRequest, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandActionPrimary); err != nil {
		return ActionPrimaryRequest{}, err
	}
	var req ActionPrimaryRequest
	var err error
	if req.PlayerX, err = wire.ReadFloat64(r); err != nil {
		return ActionPrimaryRequest{}, err
	}
	if req.PlayerY, err = wire.ReadFloat64(r); err != nil {
		return ActionPrimaryRequest{}, err
	}
	if req.TargetX, err = wire.ReadFloat64(r); err != nil {
		return ActionPrimaryRequest{}, err
	}
	if req.TargetY, err = wire.ReadFloat64(r); err != nil {
		return ActionPrimaryRequest{}, err
	}
	row, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.HotbarRow = uint32(row)
	slot, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.HotbarSlot = uint32(slot)
	n, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.InventoryCounts = make([]uint32, n)
	for i := range req.InventoryCounts {
		c, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return ActionPrimaryRequest{}, err
		}
		req.InventoryCounts[i] = uint32(c)
	}
	toolFlags, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.ToolFlags = uint32(toolFlags)
	airByte, err := r.ReadByte()
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.TargetIsAir = airByte != 0
	ticks, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.HarvestTicks = uint32(ticks)
	toolBits, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryRequest{}, err
	}
	req.HarvestToolBits = uint32(toolBits)
	if err := finish(r); err != nil {
		return ActionPrimaryRequest{}, err
	}
	return req, nil
}

// ActionPrimaryResponse is the script host's authoritative decision.
type ActionPrimaryResponse struct {
	Result        ActionResult
	PlaceKind     uint32
	RequiredTicks uint32
}

// EncodeActionPrimaryResponse serializes an ActionPrimary response.
func EncodeActionPrimaryResponse(resp ActionPrimaryResponse) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandActionPrimary)
	buf.WriteByte(byte(resp.Result))
	wire.WriteVarUint(&buf, uint64(resp.PlaceKind))
	wire.WriteVarUint(&buf, uint64(resp.RequiredTicks))
	return buf.Bytes()
}

// DecodeActionPrimaryResponse parses an ActionPrimary response.
func DecodeActionPrimaryResponse(raw []byte) (ActionPrimaryResponse, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandActionPrimary); err != nil {
		return ActionPrimaryResponse{}, err
	}
	resultByte, err := r.ReadByte()
	if err != nil {
		return ActionPrimaryResponse{}, err
	}
	result := ActionResult(resultByte)
	if result != ActionReject && result != ActionHarvest && result != ActionPlace {
		return ActionPrimaryResponse{}, fmt.Errorf("simrpc: invalid ActionResult %d", resultByte)
	}
	placeKind, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryResponse{}, err
	}
	requiredTicks, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return ActionPrimaryResponse{}, err
	}
	if err := finish(r); err != nil {
		return ActionPrimaryResponse{}, err
	}
	return ActionPrimaryResponse{Result: result, PlaceKind: uint32(placeKind), RequiredTicks: uint32(requiredTicks)}, nil
}

// CraftRecipeRequest is what the ruleset sends to resolve a craft.
type CraftRecipeRequest struct {
	PlayerX, PlayerY   float64
	RecipeIndex        uint32
	WorkbenchReachable bool
	InventoryCounts    []uint32
}

// EncodeCraftRecipeRequest serializes a CraftRecipe request.
func EncodeCraftRecipeRequest(req CraftRecipeRequest) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandCraftRecipe)
	wire.WriteFloat64(&buf, req.PlayerX)
	wire.WriteFloat64(&buf, req.PlayerY)
	wire.WriteVarUint(&buf, uint64(req.RecipeIndex))
	if req.WorkbenchReachable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	wire.WriteVarUint(&buf, uint64(len(req.InventoryCounts)))
	for _, c := range req.InventoryCounts {
		wire.WriteVarUint(&buf, uint64(c))
	}
	return buf.Bytes()
}

// DecodeCraftRecipeRequest parses a CraftRecipe request.
func DecodeCraftRecipeRequest(raw []byte) (CraftRecipeRequest, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandCraftRecipe); err != nil {
		return CraftRecipeRequest{}, err
	}
	var req CraftRecipeRequest
	var err error
	if req.PlayerX, err = wire.ReadFloat64(r); err != nil {
		return CraftRecipeRequest{}, err
	}
	if req.PlayerY, err = wire.ReadFloat64(r); err != nil {
		return CraftRecipeRequest{}, err
	}
	idx, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return CraftRecipeRequest{}, err
	}
	req.RecipeIndex = uint32(idx)
	reachByte, err := r.ReadByte()
	if err != nil {
		return CraftRecipeRequest{}, err
	}
	req.WorkbenchReachable = reachByte != 0
	n, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return CraftRecipeRequest{}, err
	}
	req.InventoryCounts = make([]uint32, n)
	for i := range req.InventoryCounts {
		c, err := wire.ReadVarUintBounded(r, 32)
		if err != nil {
			return CraftRecipeRequest{}, err
		}
		req.InventoryCounts[i] = uint32(c)
	}
	if err := finish(r); err != nil {
		return CraftRecipeRequest{}, err
	}
	return req, nil
}

// CraftRecipeResponse carries the authoritative craft outcome.
type CraftRecipeResponse struct {
	Result          ActionResult
	InventoryDeltas []int32
	CraftedKind     uint32
	MilestoneFlags  uint32
}

// EncodeCraftRecipeResponse serializes a CraftRecipe response.
func EncodeCraftRecipeResponse(resp CraftRecipeResponse) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, CommandCraftRecipe)
	buf.WriteByte(byte(resp.Result))
	wire.WriteVarUint(&buf, uint64(len(resp.InventoryDeltas)))
	for _, d := range resp.InventoryDeltas {
		wire.WriteVarInt(&buf, int64(d))
	}
	wire.WriteVarUint(&buf, uint64(resp.CraftedKind))
	wire.WriteVarUint(&buf, uint64(resp.MilestoneFlags))
	return buf.Bytes()
}

// DecodeCraftRecipeResponse parses a CraftRecipe response.
func DecodeCraftRecipeResponse(raw []byte) (CraftRecipeResponse, error) {
	r := bytes.NewReader(raw)
	if err := readHeader(r, CommandCraftRecipe); err != nil {
		return CraftRecipeResponse{}, err
	}
	resultByte, err := r.ReadByte()
	if err != nil {
		return CraftRecipeResponse{}, err
	}
	n, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return CraftRecipeResponse{}, err
	}
	deltas := make([]int32, n)
	for i := range deltas {
		d, err := wire.ReadVarInt(r)
		if err != nil {
			return CraftRecipeResponse{}, err
		}
		deltas[i] = int32(d)
	}
	craftedKind, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return CraftRecipeResponse{}, err
	}
	milestoneFlags, err := wire.ReadVarUintBounded(r, 32)
	if err != nil {
		return CraftRecipeResponse{}, err
	}
	if err := finish(r); err != nil {
		return CraftRecipeResponse{}, err
	}
	return CraftRecipeResponse{
		Result:          ActionResult(resultByte),
		InventoryDeltas: deltas,
		CraftedKind:     uint32(craftedKind),
		MilestoneFlags:  uint32(milestoneFlags),
	}, nil
}
