// Package script implements the Script Sandbox Host of spec.md §4.7: a
// single-threaded embedded JS runtime per module, isolated behind a
// memory cap and a wall-clock-approximated instruction budget, exposing
// only a whitelisted "novaria" API table. Built on
// github.com/dop251/goja, grounded on the goja references in the
// ethereum-go-ethereum and prysmaticlabs-prysm dependency manifests
// under the example pack (this repo's teacher carries no script VM of
// its own).
package script

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Capability is one of the closed set of permissions a module can
// declare, per spec.md §4.7.
type Capability string

const (
	CapabilityEventReceive Capability = "event.receive"
	CapabilityTickReceive  Capability = "tick.receive"
)

// APIVersion is the only module API-version string this host accepts.
const APIVersion = "novaria.v1"

// Module is a script source bundle awaiting load.
type Module struct {
	Name         string
	Source       string
	APIVersion   string
	Capabilities []Capability
}

// ErrInvalidModuleSet is returned by LoadModules when any module in the
// set has the wrong API version, declares an unsupported capability, or
// fails to run; the whole set is rejected atomically.
var ErrInvalidModuleSet = errors.New("script: invalid module set")

// ErrModuleNotFound is returned by TryCallModuleFunction when no such
// module is currently loaded.
var ErrModuleNotFound = errors.New("script: module not found")

// ErrFunctionNotCallable covers a missing, non-function, or
// invalid-environment-table target of TryCallModuleFunction.
var ErrFunctionNotCallable = errors.New("script: function not callable")

// ErrBudgetExceeded is returned when a call is interrupted by the
// instruction-budget watchdog.
var ErrBudgetExceeded = errors.New("script: instruction budget exceeded")

// ErrReturnNotBytes is returned when a module function returns a value
// that is not a byte string.
var ErrReturnNotBytes = errors.New("script: return value is not a byte string")

// Limits bounds a single module environment.
type Limits struct {
	MemoryBytes  uint64
	CallBudget   time.Duration
}

// DefaultLimits mirrors a conservative per-module sandbox budget.
func DefaultLimits() Limits {
	return Limits{MemoryBytes: 32 << 20, CallBudget: 25 * time.Millisecond}
}

type environment struct {
	name    string
	runtime *goja.Runtime
	caps    map[Capability]bool
}

// Host owns the set of currently loaded module environments.
type Host struct {
	mu     sync.Mutex
	limits Limits
	envs   map[string]*environment
	logger *zap.SugaredLogger
}

// NewHost constructs an empty host.
func NewHost(limits Limits, logger *zap.SugaredLogger) *Host {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Host{limits: limits, envs: make(map[string]*environment), logger: logger}
}

// bootstrapSource installs the shared novaria API table. It is
// intentionally minimal: logging and a byte-string helper, matching the
// "pure primitives and sandbox-safe stdlib subset" contract of
// spec.md §4.7. Dangerous introspection is never exposed because
// goja's runtime never has Node/CommonJS globals wired in.
const bootstrapSource = `
var novaria = {
  log: function(msg) { __novaria_log(String(msg)); },
  bytes: function(arr) { return arr; },
};
`

// LoadModules compiles and initializes every module in set into its own
// isolated runtime. On any failure the whole set is rejected and the
// host's existing modules are left untouched.
func (h *Host) LoadModules(set []Module) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make(map[string]*environment, len(set))
	for _, m := range set {
		if m.APIVersion != APIVersion {
			return fmt.Errorf("%w: module %q has api version %q, want %q", ErrInvalidModuleSet, m.Name, m.APIVersion, APIVersion)
		}
		for _, c := range m.Capabilities {
			if c != CapabilityEventReceive && c != CapabilityTickReceive {
				return fmt.Errorf("%w: module %q declares unsupported capability %q", ErrInvalidModuleSet, m.Name, c)
			}
		}
		env, err := h.buildEnvironment(m)
		if err != nil {
			return fmt.Errorf("%w: module %q: %v", ErrInvalidModuleSet, m.Name, err)
		}
		next[m.Name] = env
	}
	h.envs = next
	return nil
}

func (h *Host) buildEnvironment(m Module) (*environment, error) {
	rt := goja.New()
	if err := rt.SetMemoryLimit(h.limits.MemoryBytes); err != nil {
		return nil, fmt.Errorf("set memory limit: %w", err)
	}

	name := m.Name
	logger := h.logger
	rt.Set("__novaria_log", func(msg string) {
		logger.Infow("script log", "module", name, "msg", msg)
	})

	if _, err := rt.RunString(bootstrapSource); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if _, err := rt.RunString(m.Source); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	caps := make(map[Capability]bool, len(m.Capabilities))
	for _, c := range m.Capabilities {
		caps[c] = true
	}
	return &environment{name: m.Name, runtime: rt, caps: caps}, nil
}

// TryCallModuleFunction invokes fn on module's entry table with payload
// as its sole argument under the instruction-budget watchdog, returning
// the byte-string result. Any failure short-circuits to an error; the
// caller (simrpc.Client) is responsible for falling back to a reject
// outcome rather than propagating a crash into the kernel.
func (h *Host) TryCallModuleFunction(module, fn string, payload []byte) ([]byte, error) {
	h.mu.Lock()
	env, ok := h.envs[module]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, module)
	}

	value := env.runtime.Get(fn)
	if value == nil || goja.IsUndefined(value) {
		return nil, fmt.Errorf("%w: %q.%q", ErrFunctionNotCallable, module, fn)
	}
	callable, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("%w: %q.%q", ErrFunctionNotCallable, module, fn)
	}

	timer := time.AfterFunc(h.limits.CallBudget, func() {
		env.runtime.Interrupt(ErrBudgetExceeded)
	})
	defer timer.Stop()

	result, err := callable(goja.Undefined(), env.runtime.ToValue(payload))
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return nil, ErrBudgetExceeded
		}
		return nil, fmt.Errorf("script: call %q.%q: %w", module, fn, err)
	}

	exported := result.Export()
	bytesOut, ok := exported.([]byte)
	if !ok {
		return nil, ErrReturnNotBytes
	}
	return bytesOut, nil
}

// DispatchTick calls on_tick(tick, dt) on every loaded module that
// declared tick.receive and defines the handler; modules without it
// silently skip dispatch.
func (h *Host) DispatchTick(tick uint64, dt float64) {
	h.mu.Lock()
	envs := make([]*environment, 0, len(h.envs))
	for _, e := range h.envs {
		envs = append(envs, e)
	}
	h.mu.Unlock()

	for _, env := range envs {
		if !env.caps[CapabilityTickReceive] {
			continue
		}
		value := env.runtime.Get("on_tick")
		if value == nil || goja.IsUndefined(value) {
			continue
		}
		fn, ok := goja.AssertFunction(value)
		if !ok {
			continue
		}
		if _, err := fn(goja.Undefined(), env.runtime.ToValue(tick), env.runtime.ToValue(dt)); err != nil {
			h.logger.Warnw("on_tick failed", "module", env.name, "error", err)
		}
	}
}

// DispatchEvent calls on_event(name, payload) on every loaded module
// that declared event.receive and defines the handler.
func (h *Host) DispatchEvent(name string, payload []byte) {
	h.mu.Lock()
	envs := make([]*environment, 0, len(h.envs))
	for _, e := range h.envs {
		envs = append(envs, e)
	}
	h.mu.Unlock()

	for _, env := range envs {
		if !env.caps[CapabilityEventReceive] {
			continue
		}
		value := env.runtime.Get("on_event")
		if value == nil || goja.IsUndefined(value) {
			continue
		}
		fn, ok := goja.AssertFunction(value)
		if !ok {
			continue
		}
		if _, err := fn(goja.Undefined(), env.runtime.ToValue(name), env.runtime.ToValue(payload)); err != nil {
			h.logger.Warnw("on_event failed", "module", env.name, "error", err)
		}
	}
}

// LoadedModules returns the names of every currently loaded module.
func (h *Host) LoadedModules() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.envs))
	for name := range h.envs {
		names = append(names, name)
	}
	return names
}
