package arango

import (
	"context"

	"github.com/pkg/errors"
)

type sessionKey struct{}

// session is the per-execution-context transaction registry: at most one
// bound transactionHolder per database name, plus the resolver slot the
// QueryBridge reads. It is carried by value-identity inside a
// context.Context and mutated in place, which is safe only because exactly
// one logical execution context owns a unit of work at a time; the library
// takes no locks here. Sharing a Txn context between goroutines running
// concurrently breaks that invariant (build with -tags arangodebug to have
// it checked).
type session struct {
	resources map[string]*transactionHolder
	resolver  TransactionResolver

	guard sessionGuard
}

func newSession() *session {
	return &session{resources: make(map[string]*transactionHolder)}
}

func sessionFromContext(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

// ensureSession returns the session bound in ctx, installing a fresh one
// into a derived context when none is bound yet.
func ensureSession(ctx context.Context) (*session, context.Context) {
	if s := sessionFromContext(ctx); s != nil {
		return s, ctx
	}
	s := newSession()
	return s, context.WithValue(ctx, sessionKey{}, s)
}

func (s *session) resource(database string) *transactionHolder {
	s.guard.enter()
	defer s.guard.leave()
	return s.resources[database]
}

func (s *session) bind(database string, holder *transactionHolder) error {
	s.guard.enter()
	defer s.guard.leave()
	if _, ok := s.resources[database]; ok {
		return errors.Wrapf(ErrIllegalTransactionState, "holder already bound for database %q", database)
	}
	s.resources[database] = holder
	return nil
}

func (s *session) unbind(database string) {
	s.guard.enter()
	defer s.guard.leave()
	delete(s.resources, database)
}

func (s *session) setResolver(r TransactionResolver) {
	s.guard.enter()
	defer s.guard.leave()
	s.resolver = r
}

func (s *session) clearResolver() {
	s.guard.enter()
	defer s.guard.leave()
	s.resolver = nil
}

func (s *session) currentResolver() TransactionResolver {
	s.guard.enter()
	defer s.guard.leave()
	return s.resolver
}
