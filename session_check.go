//go:build arangodebug

package arango

import "go.uber.org/atomic"

// sessionGuard asserts the confinement invariant in debug builds: a session
// must never be entered by two goroutines at once. Violations panic so the
// offending call site shows up in the stack trace.
type sessionGuard struct {
	busy atomic.Bool
}

func (g *sessionGuard) enter() {
	if !g.busy.CAS(false, true) {
		panic("arango: session accessed concurrently; a unit of work is confined to one execution context")
	}
}

func (g *sessionGuard) leave() {
	g.busy.Store(false)
}
