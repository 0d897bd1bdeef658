package arango

import (
	"context"
	"time"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Operations is the document-operations collaborator the manager drives: it
// tells the manager which database a unit of work is scoped to and hands it
// the native handle for begin/commit/abort calls. Template implements it.
type Operations interface {
	DatabaseName() string
	Database() driver.Database
}

// SynchronizationMode controls whether completing units of work bind their
// holder into the session context. Stream transactions need the binding to
// share one transaction across participants, so SynchronizationNever is
// rejected at construction.
type SynchronizationMode int

const (
	SynchronizationOnActualTransaction SynchronizationMode = iota
	SynchronizationAlways
	SynchronizationNever
)

// Manager maps units of work onto ArangoDB stream transactions. A unit of
// work begun while another one is bound for the same database in the same
// context participates in it: the stream transaction, if any, is shared and
// completion is deferred to the outermost unit of work. The stream
// transaction itself begins lazily on the first operation, scoped to the
// collections declared until then.
type Manager struct {
	operations Operations
	bridge     *QueryBridge
	log        *zap.Logger

	defaultTimeout time.Duration
	relaxedScope   bool

	nestedAllowed           bool
	rollbackOnParticipation bool
	synchronization         SynchronizationMode
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDefaultTimeout sets the stream transaction lock timeout used when a
// unit of work declares none. Zero leaves the store default in place. The
// timeout only applies at begin; a running stream transaction cannot be
// given per-call deadlines.
func WithDefaultTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) { m.defaultTimeout = timeout }
}

func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRelaxedQueryScope lets queries whose collections are entirely outside
// a running transaction's scope run outside the transaction instead of
// failing. Partly overlapping queries always fail: collections cannot be
// added to a running stream transaction.
func WithRelaxedQueryScope() ManagerOption {
	return func(m *Manager) { m.relaxedScope = true }
}

// WithNestedTransactions exists for parity with the generic framework knob;
// the store has no sub-transactions, so only false passes validation.
func WithNestedTransactions(allowed bool) ManagerOption {
	return func(m *Manager) { m.nestedAllowed = allowed }
}

// WithGlobalRollbackOnParticipationFailure exists for parity with the
// generic framework knob; sharing one stream transaction requires it, so
// only true passes validation.
func WithGlobalRollbackOnParticipationFailure(enabled bool) ManagerOption {
	return func(m *Manager) { m.rollbackOnParticipation = enabled }
}

func WithSynchronization(mode SynchronizationMode) ManagerOption {
	return func(m *Manager) { m.synchronization = mode }
}

// NewManager validates the configuration immediately: an unsupported
// combination is a programming error, not something to surface on first use.
func NewManager(operations Operations, bridge *QueryBridge, opts ...ManagerOption) (*Manager, error) {
	if operations == nil {
		return nil, errors.New("operations collaborator is required")
	}
	if bridge == nil {
		return nil, errors.New("query bridge is required")
	}
	m := &Manager{
		operations:              operations,
		bridge:                  bridge,
		log:                     zap.NewNop(),
		rollbackOnParticipation: true,
		synchronization:         SynchronizationOnActualTransaction,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.nestedAllowed {
		return nil, errors.New("nested transactions must not be allowed")
	}
	if !m.rollbackOnParticipation {
		return nil, errors.New("global rollback on participation failure is needed")
	}
	if m.synchronization == SynchronizationNever {
		return nil, errors.New("transaction synchronization is needed always")
	}
	return m, nil
}

// Begin starts or joins a unit of work. The returned Txn carries a derived
// context; operations inside the unit of work must use it, and a nested
// Begin participates only when called with it. Nothing reaches the store
// here; the stream transaction begins on the first real operation.
func (m *Manager) Begin(ctx context.Context, opts ...TxnOption) (*Txn, error) {
	def := newDefinition(opts)
	if def.Isolation != IsolationDefault {
		return nil, errors.Wrap(ErrInvalidIsolationLevel, "stream transactions run on the store's default isolation only")
	}
	if def.Propagation == PropagationNested {
		return nil, errors.Wrap(ErrIllegalTransactionState, "nested propagation is not supported")
	}

	life := newLifecycle()
	database := m.operations.DatabaseName()
	sess, ctx := ensureSession(ctx)
	obj := newTransactionObject(m.operations.Database(), m.defaultTimeout, sess.resource(database), m.relaxedScope, m.log)
	if err := life.transition(stateTransactionCreated); err != nil {
		return nil, err
	}

	if m.isExistingTransaction(sess, database, obj) {
		return m.participate(ctx, database, obj, def, life)
	}
	return m.beginNew(ctx, sess, database, obj, def, life)
}

// isExistingTransaction reports whether the object's holder is exactly the
// one bound in the session, meaning the unit of work joins it instead of
// starting fresh.
func (m *Manager) isExistingTransaction(sess *session, database string, obj *transactionObject) bool {
	bound := sess.resource(database)
	return bound != nil && bound == obj.getHolder()
}

func (m *Manager) participate(ctx context.Context, database string, obj *transactionObject, def *Definition, life *lifecycle) (*Txn, error) {
	if def.Propagation == PropagationRequiresNew {
		return nil, errors.Wrap(ErrSuspensionNotSupported, "cannot start a new transaction while one is bound for the database")
	}
	if err := obj.configure(def); err != nil {
		return nil, err
	}
	if err := life.transition(stateActive); err != nil {
		return nil, err
	}
	holder := obj.getHolder()
	holder.enterParticipation()
	m.log.Debug("participate in unit of work",
		zap.String("database", database),
		zap.Int32("depth", holder.participationDepth()))
	return &Txn{
		ctx:      ctx,
		manager:  m,
		object:   obj,
		life:     life,
		database: database,
	}, nil
}

func (m *Manager) beginNew(ctx context.Context, sess *session, database string, obj *transactionObject, def *Definition, life *lifecycle) (*Txn, error) {
	if def.Propagation == PropagationMandatory {
		return nil, errors.Wrap(ErrIllegalTransactionState, "no existing transaction found for propagation mandatory")
	}
	if err := obj.configure(def); err != nil {
		return nil, err
	}
	// Wire the object into the query path first, then bind the holder;
	// every query issued under the returned context now observes this unit
	// of work.
	ctx = m.bridge.SetCurrentTransaction(ctx, obj)
	newSync := m.synchronization != SynchronizationNever
	if newSync {
		if err := sess.bind(database, obj.getHolder()); err != nil {
			m.bridge.ClearCurrentTransaction(ctx)
			return nil, err
		}
	}
	if err := life.transition(stateActive); err != nil {
		return nil, err
	}
	obj.getHolder().enterParticipation()
	m.log.Debug("begin unit of work",
		zap.String("database", database),
		zap.Duration("timeout", obj.timeout))
	return &Txn{
		ctx:                ctx,
		manager:            m,
		object:             obj,
		life:               life,
		database:           database,
		newTransaction:     true,
		newSynchronization: newSync,
	}, nil
}

// Commit completes the unit of work. A participating unit defers the real
// outcome to the outermost one. The outermost unit commits the stream
// transaction, or aborts it and reports ErrUnexpectedRollback when a
// participant demanded rollback, and always releases the query resolver and
// the bound holder, even when the native call fails.
func (m *Manager) Commit(txn *Txn) error {
	if err := m.completable(txn); err != nil {
		return err
	}
	if !txn.newTransaction {
		if err := txn.life.transition(stateCommitting); err != nil {
			return err
		}
		txn.complete()
		m.log.Debug("deferred commit of participating unit of work", zap.String("database", txn.database))
		return nil
	}

	defer m.cleanupAfterCompletion(txn)

	if txn.object.getHolder().isRollbackOnly() {
		if err := txn.life.transition(stateRollingBack); err != nil {
			return err
		}
		defer txn.complete()
		if txn.object.active() {
			m.log.Debug("rollback "+txn.object.String(), zap.String("database", txn.database))
			if err := txn.object.rollback(txn.ctx); err != nil {
				return err
			}
		}
		return errors.WithStack(ErrUnexpectedRollback)
	}

	if err := txn.life.transition(stateCommitting); err != nil {
		return err
	}
	defer txn.complete()
	if !txn.object.active() {
		m.log.Debug("unit of work made no operations; nothing to commit", zap.String("database", txn.database))
		return nil
	}
	m.log.Debug("commit "+txn.object.String(), zap.String("database", txn.database))
	return txn.object.commit(txn.ctx)
}

// Rollback aborts the unit of work. A participant cannot abort the shared
// stream transaction, so it marks the holder rollback-only and leaves the
// abort to the outermost unit of work.
func (m *Manager) Rollback(txn *Txn) error {
	if err := m.completable(txn); err != nil {
		return err
	}
	if err := txn.life.transition(stateRollingBack); err != nil {
		return err
	}
	if !txn.newTransaction {
		txn.object.getHolder().setRollbackOnly()
		txn.complete()
		m.log.Debug("participating unit of work marked rollback-only", zap.String("database", txn.database))
		return nil
	}

	defer m.cleanupAfterCompletion(txn)
	defer txn.complete()
	if !txn.object.active() {
		m.log.Debug("unit of work made no operations; nothing to roll back", zap.String("database", txn.database))
		return nil
	}
	m.log.Debug("rollback "+txn.object.String(), zap.String("database", txn.database))
	return txn.object.rollback(txn.ctx)
}

// SetRollbackOnly makes the outermost commit turn into a rollback. It does
// not abort anything by itself.
func (m *Manager) SetRollbackOnly(txn *Txn) {
	txn.object.getHolder().setRollbackOnly()
}

// Suspend is part of the generic lifecycle contract; a stream transaction
// cannot be detached from its unit of work.
func (m *Manager) Suspend(*Txn) error {
	return errors.WithStack(ErrSuspensionNotSupported)
}

// Resume is the counterpart of Suspend and equally unsupported.
func (m *Manager) Resume(*Txn) error {
	return errors.WithStack(ErrSuspensionNotSupported)
}

func (m *Manager) completable(txn *Txn) error {
	if txn == nil || txn.object == nil {
		return errors.Wrap(ErrIllegalTransactionState, "no unit of work")
	}
	if txn.completed {
		return errors.Wrap(ErrIllegalTransactionState, "unit of work already completed")
	}
	return nil
}

// cleanupAfterCompletion restores the no-transaction baseline whatever the
// outcome was: the query resolver goes away and the holder is unbound.
func (m *Manager) cleanupAfterCompletion(txn *Txn) {
	m.bridge.ClearCurrentTransaction(txn.ctx)
	if txn.newSynchronization {
		if s := sessionFromContext(txn.ctx); s != nil {
			s.unbind(txn.database)
		}
	}
}
