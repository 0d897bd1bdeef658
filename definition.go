package arango

import "time"

// Propagation decides whether a unit of work joins a transaction already
// bound in the session context or starts its own.
type Propagation int

const (
	// PropagationRequired joins the bound transaction, or starts a new one
	// when none is bound. This is the default.
	PropagationRequired Propagation = iota

	// PropagationMandatory joins the bound transaction and fails when none
	// is bound.
	PropagationMandatory

	// PropagationRequiresNew starts a new transaction. Because a running
	// stream transaction cannot be suspended, it fails when one is bound.
	PropagationRequiresNew

	// PropagationNested is never accepted; the store has no sub-transactions.
	PropagationNested
)

// IsolationLevel of a unit of work. Stream transactions run on the store's
// default isolation only; everything else is rejected at begin.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationSerializable
)

// Definition describes one unit of work: how it propagates, its isolation
// level, the begin timeout and the read/write collections it intends to
// touch. Collections must be declared before the first operation starts the
// stream transaction; the set cannot grow afterwards.
type Definition struct {
	Propagation Propagation
	Isolation   IsolationLevel
	// Timeout is the stream transaction lock timeout applied at begin.
	// Zero means the manager default. Once the transaction has begun no
	// per-call deadline can be imposed anymore.
	Timeout time.Duration
	Read    []string
	Write   []string
}

// TxnOption configures the Definition of one unit of work.
type TxnOption func(*Definition)

func WithRead(collections ...string) TxnOption {
	return func(d *Definition) {
		d.Read = append(d.Read, collections...)
	}
}

func WithWrite(collections ...string) TxnOption {
	return func(d *Definition) {
		d.Write = append(d.Write, collections...)
	}
}

func WithTimeout(timeout time.Duration) TxnOption {
	return func(d *Definition) {
		d.Timeout = timeout
	}
}

func WithIsolation(level IsolationLevel) TxnOption {
	return func(d *Definition) {
		d.Isolation = level
	}
}

func WithPropagation(propagation Propagation) TxnOption {
	return func(d *Definition) {
		d.Propagation = propagation
	}
}

func newDefinition(opts []TxnOption) *Definition {
	def := &Definition{}
	for _, opt := range opts {
		opt(def)
	}
	return def
}
