package arango

import "github.com/pkg/errors"

// lifecycleState is the phase a unit of work is in from the manager's point
// of view. Begin, Commit and Rollback drive the machine explicitly; an
// out-of-order call surfaces as ErrIllegalTransactionState instead of
// corrupting the unit of work.
type lifecycleState int

const (
	stateIdle lifecycleState = iota
	stateTransactionCreated
	stateActive
	stateCommitting
	stateRollingBack
)

func (s lifecycleState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateTransactionCreated:
		return "transaction created"
	case stateActive:
		return "active"
	case stateCommitting:
		return "committing"
	case stateRollingBack:
		return "rolling back"
	}
	return "invalid"
}

var lifecycleTransitions = map[lifecycleState][]lifecycleState{
	stateIdle:               {stateTransactionCreated},
	stateTransactionCreated: {stateActive},
	stateActive:             {stateCommitting, stateRollingBack},
	stateCommitting:         {stateIdle},
	stateRollingBack:        {stateIdle},
}

type lifecycle struct {
	state lifecycleState
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: stateIdle}
}

func (l *lifecycle) transition(next lifecycleState) error {
	for _, allowed := range lifecycleTransitions[l.state] {
		if allowed == next {
			l.state = next
			return nil
		}
	}
	return errors.Wrapf(ErrIllegalTransactionState, "unit of work cannot move from %s to %s", l.state, next)
}

func (l *lifecycle) current() lifecycleState {
	return l.state
}
