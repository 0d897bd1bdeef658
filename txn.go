// Package arango provides object mapping and stream-transaction management
// for ArangoDB databases.
package arango

import (
	"context"

	driver "github.com/arangodb/go-driver"
)

// Txn is one unit of work. It is created by Manager.Begin or Database.Txn
// and is confined to a single logical execution context: pass Context() to
// every operation made inside it, and begin nested units of work from
// Context() so they participate in this one.
type Txn struct {
	ctx      context.Context
	manager  *Manager
	object   *transactionObject
	life     *lifecycle
	database string
	db       *Database

	newTransaction     bool
	newSynchronization bool
	completed          bool
}

// Context returns the context the unit of work lives in. Derive all work
// from it; operations made with an unrelated context run outside the
// transaction.
func (txn *Txn) Context() context.Context {
	return txn.ctx
}

// Model binds a model to this unit of work.
func (txn *Txn) Model(model any) *Model {
	return NewModel(txn, model)
}

// Commit completes the unit of work through the manager.
func (txn *Txn) Commit() error {
	return txn.manager.Commit(txn)
}

// Rollback aborts the unit of work through the manager.
func (txn *Txn) Rollback() error {
	return txn.manager.Rollback(txn)
}

// SetRollbackOnly demands that the outermost unit of work rolls back instead
// of committing.
func (txn *Txn) SetRollbackOnly() {
	txn.manager.SetRollbackOnly(txn)
}

// IsNewTransaction reports whether this unit of work owns the transaction,
// as opposed to participating in an outer one.
func (txn *Txn) IsNewTransaction() bool {
	return txn.newTransaction
}

// IsRollbackOnly reports whether any unit of work sharing the transaction
// demanded rollback.
func (txn *Txn) IsRollbackOnly() bool {
	return txn.object.getHolder().isRollbackOnly()
}

// IsCompleted reports whether Commit or Rollback already ran.
func (txn *Txn) IsCompleted() bool {
	return txn.completed
}

// ID returns the stream transaction id. It is empty until the first
// operation forces the stream transaction to begin.
func (txn *Txn) ID() driver.TransactionID {
	return txn.object.transactionID()
}

// template returns the document operations behind this unit of work, nil
// when the manager was built on some other Operations implementation.
func (txn *Txn) template() *Template {
	if txn.db != nil {
		return txn.db.template
	}
	if tpl, ok := txn.manager.operations.(*Template); ok {
		return tpl
	}
	return nil
}

// complete retires the unit of work. The lifecycle is already in a
// completing state here, so the final transition cannot fail.
func (txn *Txn) complete() {
	_ = txn.life.transition(stateIdle)
	txn.object.getHolder().leaveParticipation()
	txn.completed = true
}
