package simrpc

import "fmt"

// ModuleCaller is the narrow surface simrpc needs from the script host:
// try_call_module_function(module, fn, bytes) -> bytes, per spec.md
// §4.7. Implemented by pkg/script.Host.
type ModuleCaller interface {
	TryCallModuleFunction(module, fn string, payload []byte) ([]byte, error)
}

// Client routes simrpc requests to a named script module's RPC
// functions and decodes the response, falling back to a reject outcome
// on any failure rather than propagating a crash into the kernel.
type Client struct {
	Caller ModuleCaller
	Module string
}

// NewClient builds a simrpc client bound to a single module.
func NewClient(caller ModuleCaller, module string) *Client {
	return &Client{Caller: caller, Module: module}
}

// Validate calls the module's validate entry point.
func (c *Client) Validate() (ValidateResponse, error) {
	raw, err := c.Caller.TryCallModuleFunction(c.Module, "validate", EncodeValidateRequest(ValidateRequest{}))
	if err != nil {
		return ValidateResponse{OK: false}, fmt.Errorf("simrpc: validate: %w", err)
	}
	resp, err := DecodeValidateResponse(raw)
	if err != nil {
		return ValidateResponse{OK: false}, fmt.Errorf("simrpc: validate decode: %w", err)
	}
	return resp, nil
}

// ActionPrimary calls the module's action_primary entry point. On any
// failure it returns the fallback reject outcome described in spec.md
// §4.7, never an error the kernel must special-case.
func (c *Client) ActionPrimary(req ActionPrimaryRequest) ActionPrimaryResponse {
	raw, err := c.Caller.TryCallModuleFunction(c.Module, "action_primary", EncodeActionPrimaryRequest(req))
	if err != nil {
		return ActionPrimaryResponse{Result: ActionReject}
	}
	resp, err := DecodeActionPrimaryResponse(raw)
	if err != nil {
		return ActionPrimaryResponse{Result: ActionReject}
	}
	return resp
}

// CraftRecipe calls the module's craft_recipe entry point, falling back
// to reject on any failure.
func (c *Client) CraftRecipe(req CraftRecipeRequest) CraftRecipeResponse {
	raw, err := c.Caller.TryCallModuleFunction(c.Module, "craft_recipe", EncodeCraftRecipeRequest(req))
	if err != nil {
		return CraftRecipeResponse{Result: ActionReject}
	}
	resp, err := DecodeCraftRecipeResponse(raw)
	if err != nil {
		return CraftRecipeResponse{Result: ActionReject}
	}
	return resp
}
