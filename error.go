package arango

import (
	"fmt"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
)

var (
	ErrInvalidModelName = errors.New("invalid model name")
	ErrNoKey            = errors.New(`not found document key, defined by field tagged json:"_key" or db:"key"`)
	ErrRecordNotFound   = errors.New("record not found")

	// ErrInvalidIsolationLevel is returned before any native call when a
	// unit of work requests an isolation level the store does not support.
	ErrInvalidIsolationLevel = errors.New("isolation level not supported by stream transactions")

	// ErrTransactionConfiguration is returned when an operation needs a
	// collection that was not declared before the stream transaction began.
	// The collection set of a running stream transaction cannot grow.
	ErrTransactionConfiguration = errors.New("collections cannot be added to a running stream transaction")

	// ErrIllegalTransactionState is returned on lifecycle-order violations,
	// such as reconfiguring a unit of work after its transaction started or
	// completing one twice.
	ErrIllegalTransactionState = errors.New("illegal transaction state")

	// ErrNoTransactionActive is returned by commit/rollback on a unit of
	// work whose stream transaction was never started.
	ErrNoTransactionActive = errors.New("no stream transaction active")

	// ErrUnexpectedRollback is returned from the outermost commit when a
	// participating unit of work marked the transaction rollback-only.
	ErrUnexpectedRollback = errors.New("transaction rolled back because it was marked rollback-only")

	// ErrSuspensionNotSupported is returned whenever a unit of work would
	// have to be suspended; stream transactions cannot be suspended.
	ErrSuspensionNotSupported = errors.New("stream transactions cannot be suspended")
)

// SystemError reports a native store failure during begin, commit or abort.
// The driver error is available through Unwrap and Cause.
type SystemError struct {
	Op  string
	ID  driver.TransactionID
	Err error
}

func (e *SystemError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("cannot %s stream transaction: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cannot %s stream transaction %s: %v", e.Op, e.ID, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// Cause keeps compatibility with github.com/pkg/errors chains.
func (e *SystemError) Cause() error { return e.Err }

func systemError(op string, id driver.TransactionID, err error) error {
	if err == nil {
		return nil
	}
	return &SystemError{Op: op, ID: id, Err: err}
}
