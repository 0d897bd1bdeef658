//go:build !arangodebug

package arango

// sessionGuard compiles away outside debug builds; confinement of a session
// to one execution context is the caller's contract.
type sessionGuard struct{}

func (sessionGuard) enter() {}
func (sessionGuard) leave() {}
