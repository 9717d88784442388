// Package session owns the multi-step booking workflow: an explicit
// state machine per booking, wall-clock timers that survive process
// and page reloads, and the Redis-backed store that replaces scattered
// per-page state.
package session

import "fmt"

// State is the booking lifecycle stage.  Transitions go through Reduce
// exclusively so illegal moves (releasing through the wrong endpoint,
// confirming without a lock) cannot be expressed.
type State string

const (
	StateIdle           State = "IDLE"
	StateLocking        State = "LOCKING"
	StateLocked         State = "LOCKED"
	StateConfirming     State = "CONFIRMING"
	StateConfirmed      State = "CONFIRMED"
	StatePaymentPending State = "PAYMENT_PENDING"
	StateDone           State = "DONE"
	StateReleased       State = "RELEASED"
)

// Event is a lifecycle trigger fed to Reduce.
type Event string

const (
	EventLockRequested    Event = "LOCK_REQUESTED"
	EventLockSucceeded    Event = "LOCK_SUCCEEDED"
	EventLockFailed       Event = "LOCK_FAILED"
	EventConfirmRequested Event = "CONFIRM_REQUESTED"
	EventConfirmSucceeded Event = "CONFIRM_SUCCEEDED"
	EventConfirmFailed    Event = "CONFIRM_FAILED"
	EventCheckoutStarted  Event = "CHECKOUT_STARTED"
	EventPaymentSettled   Event = "PAYMENT_SETTLED"
	EventReleased         Event = "RELEASED"
)

// IllegalTransitionError reports an event that is not valid in the
// current state.
type IllegalTransitionError struct {
	From  State
	Event Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("session: event %s not allowed in state %s", e.Event, e.From)
}

// Reduce is the single transition function of the booking state
// machine.  It returns the next state or an IllegalTransitionError.
func Reduce(s State, ev Event) (State, error) {
	switch ev {
	case EventLockRequested:
		if s == StateIdle {
			return StateLocking, nil
		}
	case EventLockSucceeded:
		if s == StateLocking {
			return StateLocked, nil
		}
	case EventLockFailed:
		// No partial lock state is assumed on failure.
		if s == StateLocking {
			return StateIdle, nil
		}
	case EventConfirmRequested:
		if s == StateLocked {
			return StateConfirming, nil
		}
	case EventConfirmSucceeded:
		if s == StateConfirming {
			return StateConfirmed, nil
		}
	case EventConfirmFailed:
		// The hold survives a rejected confirmation.
		if s == StateConfirming {
			return StateLocked, nil
		}
	case EventCheckoutStarted:
		if s == StateConfirmed {
			return StatePaymentPending, nil
		}
	case EventPaymentSettled:
		if s == StatePaymentPending {
			return StateDone, nil
		}
	case EventReleased:
		switch s {
		case StateLocked, StateConfirming, StateConfirmed, StatePaymentPending:
			return StateReleased, nil
		}
	}
	return s, &IllegalTransitionError{From: s, Event: ev}
}

// ReleaseStage names which external release endpoint applies to a
// state.  The distinction matters: a confirmed hold must be released
// through ReleaseConfirmedLockedSeats, an unconfirmed one through
// ReleaseLockedSeats, and mixing them up leaves seats stuck until the
// external lock self-expires.
type ReleaseStage int

const (
	ReleaseNone      ReleaseStage = iota // nothing locked upstream
	ReleaseLocked                        // ReleaseLockedSeats
	ReleaseConfirmed                     // ReleaseConfirmedLockedSeats
)

// ReleaseStageFor picks the correct release endpoint for a state.
func ReleaseStageFor(s State) ReleaseStage {
	switch s {
	case StateLocked, StateConfirming:
		return ReleaseLocked
	case StateConfirmed, StatePaymentPending:
		return ReleaseConfirmed
	default:
		return ReleaseNone
	}
}
