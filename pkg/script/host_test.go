package script

import (
	"errors"
	"testing"
	"time"
)

const echoModuleSource = `
function validate(payload) {
  return payload;
}
function slow(payload) {
  var x = 0;
  while (true) { x++; }
  return payload;
}
`

func echoModule(name string) Module {
	return Module{
		Name:         name,
		Source:       echoModuleSource,
		APIVersion:   APIVersion,
		Capabilities: []Capability{CapabilityTickReceive, CapabilityEventReceive},
	}
}

func TestLoadModulesAndCall(t *testing.T) {
	h := NewHost(DefaultLimits(), nil)
	if err := h.LoadModules([]Module{echoModule("player_loop")}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}

	out, err := h.TryCallModuleFunction("player_loop", "validate", []byte("ping"))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(out) != "ping" {
		t.Fatalf("out = %q, want %q", out, "ping")
	}
}

func TestLoadModulesRejectsWrongAPIVersion(t *testing.T) {
	h := NewHost(DefaultLimits(), nil)
	m := echoModule("bad")
	m.APIVersion = "novaria.v0"
	if err := h.LoadModules([]Module{m}); err == nil {
		t.Fatal("expected rejection of mismatched api version")
	}
	if len(h.LoadedModules()) != 0 {
		t.Fatal("rejected set must not partially load")
	}
}

func TestLoadModulesRejectsWholeSetOnOneBadModule(t *testing.T) {
	h := NewHost(DefaultLimits(), nil)
	good := echoModule("good")
	bad := Module{Name: "bad", Source: "this is not valid js {{{", APIVersion: APIVersion}
	if err := h.LoadModules([]Module{good, bad}); err == nil {
		t.Fatal("expected rejection of the whole set")
	}
	if len(h.LoadedModules()) != 0 {
		t.Fatal("a failed load must not leave the good module installed")
	}
}

func TestCallUnknownModule(t *testing.T) {
	h := NewHost(DefaultLimits(), nil)
	if _, err := h.TryCallModuleFunction("missing", "validate", nil); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("err = %v, want ErrModuleNotFound", err)
	}
}

func TestCallMissingFunctionIsNotCallable(t *testing.T) {
	h := NewHost(DefaultLimits(), nil)
	if err := h.LoadModules([]Module{echoModule("m")}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	if _, err := h.TryCallModuleFunction("m", "does_not_exist", nil); !errors.Is(err, ErrFunctionNotCallable) {
		t.Fatalf("err = %v, want ErrFunctionNotCallable", err)
	}
}

func TestCallExceedingBudgetIsInterrupted(t *testing.T) {
	limits := Limits{MemoryBytes: DefaultLimits().MemoryBytes, CallBudget: 5 * time.Millisecond}
	h := NewHost(limits, nil)
	if err := h.LoadModules([]Module{echoModule("slow_mod")}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	if _, err := h.TryCallModuleFunction("slow_mod", "slow", nil); err != ErrBudgetExceeded {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
}
