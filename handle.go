package arango

import (
	"context"
	"sort"
	"time"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// streamTransactions is the slice of the native transaction protocol the
// subsystem calls; driver.Database satisfies it.
type streamTransactions interface {
	BeginTransaction(ctx context.Context, cols driver.TransactionCollections, opts *driver.BeginTransactionOptions) (driver.TransactionID, error)
	CommitTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.CommitTransactionOptions) error
	AbortTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.AbortTransactionOptions) error
}

type handleState int

const (
	handleNotStarted handleState = iota
	handleActive
	handleCommitted
	handleRolledBack
)

func (s handleState) String() string {
	switch s {
	case handleNotStarted:
		return "not started"
	case handleActive:
		return "active"
	case handleCommitted:
		return "committed"
	case handleRolledBack:
		return "rolled back"
	}
	return "invalid"
}

// transactionHandle wraps one stream transaction: its opaque id once begun
// and the read/write collections it was declared for. Declarations
// accumulate freely until the transaction begins; afterwards the sets are
// frozen because the store cannot extend a running stream transaction. The
// id is assigned exactly once, on the not-started to active transition, and
// commit/abort are terminal whether or not the native call succeeds.
type transactionHandle struct {
	db    streamTransactions
	log   *zap.Logger
	id    driver.TransactionID
	state handleState
	read  map[string]struct{}
	write map[string]struct{}
}

func newTransactionHandle(db streamTransactions, log *zap.Logger) *transactionHandle {
	return &transactionHandle{
		db:    db,
		log:   log,
		read:  make(map[string]struct{}),
		write: make(map[string]struct{}),
	}
}

// declare records collections the transaction must cover. Once the stream
// transaction is active the declared scope cannot grow anymore; declaring a
// collection outside it fails without reaching the store.
func (h *transactionHandle) declare(read, write []string) error {
	switch h.state {
	case handleNotStarted:
		for _, name := range read {
			h.read[name] = struct{}{}
		}
		for _, name := range write {
			h.write[name] = struct{}{}
		}
		return nil
	case handleActive:
		for _, name := range read {
			if !h.inScope(name) {
				return errors.Wrapf(ErrTransactionConfiguration, "collection %q was not declared before stream transaction %s began", name, h.id)
			}
		}
		for _, name := range write {
			if !h.inScope(name) {
				return errors.Wrapf(ErrTransactionConfiguration, "collection %q was not declared before stream transaction %s began", name, h.id)
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrIllegalTransactionState, "stream transaction %s already %s", h.id, h.state)
	}
}

// getOrBegin declares the write collections and starts the stream
// transaction on first use. An active transaction returns its id unchanged.
func (h *transactionHandle) getOrBegin(ctx context.Context, write []string, timeout time.Duration) (driver.TransactionID, error) {
	if err := h.declare(nil, write); err != nil {
		return "", err
	}
	if h.state == handleActive {
		return h.id, nil
	}

	cols := driver.TransactionCollections{
		Read:  h.readList(),
		Write: setToSorted(h.write),
	}
	opts := &driver.BeginTransactionOptions{
		AllowImplicit: true,
		LockTimeout:   timeout,
	}
	id, err := h.db.BeginTransaction(ctx, cols, opts)
	if err != nil {
		return "", systemError("begin", "", err)
	}
	h.id = id
	h.state = handleActive
	h.log.Debug("begin stream transaction",
		zap.String("id", string(id)),
		zap.Strings("read", cols.Read),
		zap.Strings("write", cols.Write),
		zap.Duration("lock_timeout", timeout))
	return id, nil
}

func (h *transactionHandle) commit(ctx context.Context) error {
	if err := h.complete(handleCommitted); err != nil {
		return err
	}
	h.log.Debug("commit stream transaction", zap.String("id", string(h.id)))
	return systemError("commit", h.id, h.db.CommitTransaction(ctx, h.id, nil))
}

func (h *transactionHandle) abort(ctx context.Context) error {
	if err := h.complete(handleRolledBack); err != nil {
		return err
	}
	h.log.Debug("abort stream transaction", zap.String("id", string(h.id)))
	return systemError("abort", h.id, h.db.AbortTransaction(ctx, h.id, nil))
}

func (h *transactionHandle) complete(next handleState) error {
	switch h.state {
	case handleActive:
		h.state = next
		return nil
	case handleNotStarted:
		return errors.WithStack(ErrNoTransactionActive)
	default:
		return errors.Wrapf(ErrIllegalTransactionState, "stream transaction %s already %s", h.id, h.state)
	}
}

func (h *transactionHandle) isActive() bool { return h.state == handleActive }

func (h *transactionHandle) inScope(name string) bool {
	if _, ok := h.write[name]; ok {
		return true
	}
	_, ok := h.read[name]
	return ok
}

// overlaps reports whether any given collection is inside the declared scope.
func (h *transactionHandle) overlaps(collections []string) bool {
	for _, name := range collections {
		if h.inScope(name) {
			return true
		}
	}
	return false
}

// readList drops names that are also declared for write; a write declaration
// already grants reads.
func (h *transactionHandle) readList() []string {
	names := make([]string, 0, len(h.read))
	for name := range h.read {
		if _, ok := h.write[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func setToSorted(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
