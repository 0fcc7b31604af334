package simrpc

import "testing"

func TestValidateRoundTrip(t *testing.T) {
	raw := EncodeValidateRequest(ValidateRequest{})
	if _, err := DecodeValidateRequest(raw); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	resp := EncodeValidateResponse(ValidateResponse{OK: true})
	got, err := DecodeValidateResponse(resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.OK {
		t.Fatal("want OK=true")
	}
}

func TestActionPrimaryRoundTrip(t *testing.T) {
	req := ActionPrimaryRequest{
		PlayerX: 1.5, PlayerY: -2.25,
		TargetX: 2.5, TargetY: -2.25,
		HotbarRow: 0, HotbarSlot: 3,
		InventoryCounts: []uint32{4, 0, 9},
		ToolFlags:       2,
		TargetIsAir:     false,
		HarvestTicks:    30,
		HarvestToolBits: 1,
	}
	raw := EncodeActionPrimaryRequest(req)
	got, err := DecodeActionPrimaryRequest(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlayerX != req.PlayerX || got.HotbarSlot != req.HotbarSlot || len(got.InventoryCounts) != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	resp := ActionPrimaryResponse{Result: ActionHarvest, PlaceKind: 0, RequiredTicks: 30}
	rawResp := EncodeActionPrimaryResponse(resp)
	gotResp, err := DecodeActionPrimaryResponse(rawResp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if gotResp != resp {
		t.Fatalf("response round trip mismatch: %+v != %+v", gotResp, resp)
	}
}

func TestCraftRecipeRoundTrip(t *testing.T) {
	req := CraftRecipeRequest{
		PlayerX: 0, PlayerY: 0,
		RecipeIndex:        1,
		WorkbenchReachable: true,
		InventoryCounts:    []uint32{7, 3},
	}
	raw := EncodeCraftRecipeRequest(req)
	got, err := DecodeCraftRecipeRequest(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RecipeIndex != 1 || !got.WorkbenchReachable {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	resp := CraftRecipeResponse{
		Result:          ActionPlace,
		InventoryDeltas: []int32{-7, 0},
		CraftedKind:     1,
		MilestoneFlags:  1,
	}
	rawResp := EncodeCraftRecipeResponse(resp)
	gotResp, err := DecodeCraftRecipeResponse(rawResp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if gotResp.InventoryDeltas[0] != -7 || gotResp.CraftedKind != 1 {
		t.Fatalf("response round trip mismatch: %+v", gotResp)
	}
}

func TestTrailingBytesRejected(t *testing.T) {
	raw := append(EncodeValidateRequest(ValidateRequest{}), 0xFF)
	if _, err := DecodeValidateRequest(raw); err != ErrTrailingBytes {
		t.Fatalf("err = %v, want ErrTrailingBytes", err)
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	raw := EncodeValidateRequest(ValidateRequest{})
	raw[0] = 2
	if _, err := DecodeValidateRequest(raw); err != ErrUnsupportedVersion {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestPeekCommand(t *testing.T) {
	raw := EncodeCraftRecipeRequest(CraftRecipeRequest{})
	cmd, err := PeekCommand(raw)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if cmd != CommandCraftRecipe {
		t.Fatalf("cmd = %v, want CommandCraftRecipe", cmd)
	}
}

type failingCaller struct{}

func (failingCaller) TryCallModuleFunction(module, fn string, payload []byte) ([]byte, error) {
	return nil, errModuleMissing
}

var errModuleMissing = fmtErrorf("module missing")

func fmtErrorf(s string) error { return simpleError(s) }

type simpleError string

func (e simpleError) Error() string { return string(e) }

func TestActionPrimaryFallsBackToRejectOnCallerFailure(t *testing.T) {
	c := NewClient(failingCaller{}, "player_loop")
	resp := c.ActionPrimary(ActionPrimaryRequest{})
	if resp.Result != ActionReject {
		t.Fatalf("Result = %v, want ActionReject", resp.Result)
	}
}

func TestCraftRecipeFallsBackToRejectOnCallerFailure(t *testing.T) {
	c := NewClient(failingCaller{}, "player_loop")
	resp := c.CraftRecipe(CraftRecipeRequest{})
	if resp.Result != ActionReject {
		t.Fatalf("Result = %v, want ActionReject", resp.Result)
	}
}
