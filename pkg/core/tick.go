// Package core holds the few types shared across every simulation
// component. spec.md §9 notes that the teacher's upstream history had the
// tick-context type drifting between a "core" and a "sim" namespace; this
// package is the single canonical home so nobody re-declares it locally.
package core

// TickContext is built once per kernel.Update call and threaded through
// every component that advances with the tick.
type TickContext struct {
	TickIndex          uint64
	FixedDeltaSeconds  float64
}
