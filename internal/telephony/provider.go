package telephony

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acme/autodialer/internal/domain"
)

// Dial identifies one outbound call request handed to the initiator.
type Dial struct {
	AttemptID uuid.UUID
	Number    domain.PhoneNumber
	Seq       uint64
}

// Initiator asks the telephony layer to place a call. Place is
// fire-and-forget: it must return promptly, and the outcome of the call is
// learned later through SignalHandler events. A non-nil error means the call
// could not even begin.
type Initiator interface {
	Place(ctx context.Context, dial Dial) error
}

// SignalHandler consumes call-state events from the telephony layer. Events
// carry no payload; each concerns whatever call is currently in flight.
// Stray events outside a session are the handler's problem to ignore.
type SignalHandler interface {
	OnRinging(ctx context.Context)
	OnAnswered(ctx context.Context)
	OnEnded(ctx context.Context)
}

// InitiationError reports that the provider refused to start a call.
type InitiationError struct {
	Number domain.PhoneNumber
	Cause  error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("telephony: initiate call to %s: %v", e.Number, e.Cause)
}

func (e *InitiationError) Unwrap() error {
	return e.Cause
}
