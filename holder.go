package arango

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// transactionHolder is the shared state of all units of work participating
// in one stream transaction. It is bound into the session registry for the
// duration of the outermost unit of work and is owned by a single logical
// execution context; the registry binding is what keeps holders apart
// across contexts, so no locking happens here.
type transactionHolder struct {
	handle       *transactionHandle
	depth        atomic.Int32
	rollbackOnly atomic.Bool
}

func newTransactionHolder() *transactionHolder {
	return &transactionHolder{}
}

// transaction returns the handle, or nil while no operation has needed one.
func (h *transactionHolder) transaction() *transactionHandle {
	return h.handle
}

// ensureTransaction materializes the shared handle so collection
// declarations outlive the unit of work that made them.
func (h *transactionHolder) ensureTransaction(db streamTransactions, log *zap.Logger) *transactionHandle {
	if h.handle == nil {
		h.handle = newTransactionHandle(db, log)
	}
	return h.handle
}

// setRollbackOnly is one-way and idempotent.
func (h *transactionHolder) setRollbackOnly() {
	h.rollbackOnly.Store(true)
}

func (h *transactionHolder) isRollbackOnly() bool {
	return h.rollbackOnly.Load()
}

func (h *transactionHolder) enterParticipation() {
	h.depth.Inc()
}

func (h *transactionHolder) leaveParticipation() {
	if h.depth.Dec() < 0 {
		h.depth.Store(0)
	}
}

func (h *transactionHolder) participationDepth() int32 {
	return h.depth.Load()
}
