package sequencer

import (
	"github.com/acme/autodialer/internal/domain"
)

// Observer receives sequencer change notifications. Callbacks run
// synchronously inside the operation that caused the change, after the
// sequencer's state is fully consistent, in registration order. Observers
// must not call back into the sequencer from a callback.
type Observer interface {
	SessionStateChanged(state domain.SessionState)
	CurrentNumberChanged(number domain.PhoneNumber)
	CallCountChanged(count uint64)
	QueueChanged(queue []domain.PhoneNumber)
}

// AttemptObserver is an optional extension carrying per-attempt lifecycle
// records. Observers implementing it additionally receive the attempt at
// dial time and again once a terminal outcome is known.
type AttemptObserver interface {
	AttemptStarted(attempt domain.DialAttempt)
	AttemptEnded(attempt domain.DialAttempt)
}

// Funcs adapts plain functions to the Observer interface. Nil fields are
// skipped.
type Funcs struct {
	OnSessionState  func(domain.SessionState)
	OnCurrentNumber func(domain.PhoneNumber)
	OnCallCount     func(uint64)
	OnQueue         func([]domain.PhoneNumber)
}

func (f Funcs) SessionStateChanged(state domain.SessionState) {
	if f.OnSessionState != nil {
		f.OnSessionState(state)
	}
}

func (f Funcs) CurrentNumberChanged(number domain.PhoneNumber) {
	if f.OnCurrentNumber != nil {
		f.OnCurrentNumber(number)
	}
}

func (f Funcs) CallCountChanged(count uint64) {
	if f.OnCallCount != nil {
		f.OnCallCount(count)
	}
}

func (f Funcs) QueueChanged(queue []domain.PhoneNumber) {
	if f.OnQueue != nil {
		f.OnQueue(queue)
	}
}
