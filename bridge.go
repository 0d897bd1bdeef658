package arango

import (
	"context"

	driver "github.com/arangodb/go-driver"
)

// TransactionResolver answers, for a query about to touch the given
// collections, whether a stream transaction is in force and what its id is.
// A zero id with a nil error means the query runs outside any transaction.
// Resolving may lazily begin the native transaction.
type TransactionResolver interface {
	ResolveTransaction(ctx context.Context, collections []string) (driver.TransactionID, error)
}

// QueryBridge is the only channel through which query execution code learns
// about the transaction in force, so query derivation never holds the
// transaction machinery itself. The manager installs a resolver at begin and
// clears it on completion; the resolver slot lives in the session carried by
// the context, one slot per logical execution context.
type QueryBridge struct{}

func NewQueryBridge() *QueryBridge {
	return &QueryBridge{}
}

// SetCurrentTransaction installs the resolver for the unit of work and
// returns the context carrying it.
func (b *QueryBridge) SetCurrentTransaction(ctx context.Context, resolver TransactionResolver) context.Context {
	s, ctx := ensureSession(ctx)
	s.setResolver(resolver)
	return ctx
}

// ClearCurrentTransaction removes the resolver. Safe to call at any time,
// even when nothing was set.
func (b *QueryBridge) ClearCurrentTransaction(ctx context.Context) {
	if s := sessionFromContext(ctx); s != nil {
		s.clearResolver()
	}
}

// CurrentTransaction reports the id queries touching the given collections
// must carry. Without an active unit of work it reports no transaction.
func (b *QueryBridge) CurrentTransaction(ctx context.Context, collections []string) (driver.TransactionID, error) {
	s := sessionFromContext(ctx)
	if s == nil {
		return "", nil
	}
	resolver := s.currentResolver()
	if resolver == nil {
		return "", nil
	}
	return resolver.ResolveTransaction(ctx, collections)
}
