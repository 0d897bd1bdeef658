package arango

import (
	"context"
	"fmt"
	"time"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// transactionObject is one unit of work's view onto the shared holder. It
// resolves the effective timeout and collection hints for this unit of work
// and lazily starts the stream transaction on the first real operation. The
// manager hands it to the QueryBridge as the TransactionResolver for the
// duration of the unit of work.
type transactionObject struct {
	db           streamTransactions
	holder       *transactionHolder
	timeout      time.Duration
	relaxedScope bool
	log          *zap.Logger
}

func newTransactionObject(db streamTransactions, defaultTimeout time.Duration, holder *transactionHolder, relaxedScope bool, log *zap.Logger) *transactionObject {
	if holder == nil {
		holder = newTransactionHolder()
	}
	return &transactionObject{
		db:           db,
		holder:       holder,
		timeout:      defaultTimeout,
		relaxedScope: relaxedScope,
		log:          log,
	}
}

func (o *transactionObject) getHolder() *transactionHolder { return o.holder }

// configure applies a unit-of-work definition. Before the stream transaction
// starts it may run any number of times; afterwards only settings that change
// nothing are accepted.
func (o *transactionObject) configure(def *Definition) error {
	handle := o.holder.transaction()
	if def.Timeout > 0 {
		if handle != nil && handle.isActive() && def.Timeout != o.timeout {
			return errors.Wrap(ErrIllegalTransactionState, "cannot change the timeout of a running stream transaction")
		}
		o.timeout = def.Timeout
	}
	if len(def.Read) == 0 && len(def.Write) == 0 {
		return nil
	}
	return o.holder.ensureTransaction(o.db, o.log).declare(def.Read, def.Write)
}

// getOrBegin returns the id of the stream transaction covering the given
// collections, beginning it when this is the first real operation.
func (o *transactionObject) getOrBegin(ctx context.Context, collections []string) (driver.TransactionID, error) {
	handle := o.holder.ensureTransaction(o.db, o.log)
	if o.relaxedScope && handle.isActive() && len(collections) > 0 && !handle.overlaps(collections) {
		// Unrelated to the transaction's scope: let the query run outside.
		return "", nil
	}
	return handle.getOrBegin(ctx, collections, o.timeout)
}

// ResolveTransaction makes the object the resolver queries reach through the
// QueryBridge.
func (o *transactionObject) ResolveTransaction(ctx context.Context, collections []string) (driver.TransactionID, error) {
	return o.getOrBegin(ctx, collections)
}

func (o *transactionObject) commit(ctx context.Context) error {
	handle := o.holder.transaction()
	if handle == nil {
		return errors.WithStack(ErrNoTransactionActive)
	}
	return handle.commit(ctx)
}

func (o *transactionObject) rollback(ctx context.Context) error {
	handle := o.holder.transaction()
	if handle == nil {
		return errors.WithStack(ErrNoTransactionActive)
	}
	return handle.abort(ctx)
}

// active reports whether the stream transaction has begun and not completed.
func (o *transactionObject) active() bool {
	handle := o.holder.transaction()
	return handle != nil && handle.isActive()
}

func (o *transactionObject) transactionID() driver.TransactionID {
	if handle := o.holder.transaction(); handle != nil {
		return handle.id
	}
	return ""
}

func (o *transactionObject) String() string {
	handle := o.holder.transaction()
	if handle == nil || handle.id == "" {
		return "stream transaction (not started)"
	}
	return fmt.Sprintf("stream transaction %s (%s)", handle.id, handle.state)
}
