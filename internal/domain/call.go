package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhoneNumber is an opaque, already-validated dialing token. Equality is
// exact string match; normalization happens upstream of this package.
type PhoneNumber string

// IsZero reports whether no number is held.
func (n PhoneNumber) IsZero() bool {
	return n == ""
}

func (n PhoneNumber) String() string {
	return string(n)
}

// WellFormed is the minimal predicate applied at the API edge: non-empty,
// digits with an optional leading plus and common separator characters.
func (n PhoneNumber) WellFormed() bool {
	if n == "" {
		return false
	}
	digits := 0
	for i, r := range n {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits > 0
}

// SessionState enumerates the dialing session states.
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionCalling  SessionState = "calling"
	SessionRinging  SessionState = "ringing"
	SessionAnswered SessionState = "answered"
)

// Active reports whether a call is in flight.
func (s SessionState) Active() bool {
	return s == SessionCalling || s == SessionRinging || s == SessionAnswered
}

// AttemptOutcome enumerates terminal results of a dial attempt.
type AttemptOutcome string

const (
	// OutcomeEnded means the telephony layer reported the call over.
	OutcomeEnded AttemptOutcome = "ended"
	// OutcomeRefused means the initiator could not start the call.
	OutcomeRefused AttemptOutcome = "refused"
	// OutcomeStopped means the session was stopped while the call was live.
	OutcomeStopped AttemptOutcome = "stopped"
)

// DialAttempt records one initiated call.
type DialAttempt struct {
	ID        uuid.UUID
	Number    PhoneNumber
	Seq       uint64 // CallCount value assigned to this attempt
	Answered  bool
	Outcome   AttemptOutcome
	Error     string
	StartedAt time.Time
	EndedAt   *time.Time
}

// SessionSnapshot is a consistent view of the sequencer's observable state.
type SessionSnapshot struct {
	State         SessionState  `json:"state"`
	CurrentNumber PhoneNumber   `json:"current_number,omitempty"`
	CallCount     uint64        `json:"call_count"`
	Queue         []PhoneNumber `json:"queue"`
}
