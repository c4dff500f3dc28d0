package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/autodialer/internal/domain"
)

// StatusMessage represents the terminal outcome of one dial attempt as
// published to downstream consumers.
type StatusMessage struct {
	AttemptID   uuid.UUID  `json:"attempt_id"`
	PhoneNumber string     `json:"phone_number"`
	Seq         uint64     `json:"seq"`
	Answered    bool       `json:"answered"`
	Outcome     string     `json:"outcome"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// NewStatusMessage builds the wire representation of a finished attempt.
func NewStatusMessage(attempt domain.DialAttempt) StatusMessage {
	return StatusMessage{
		AttemptID:   attempt.ID,
		PhoneNumber: attempt.Number.String(),
		Seq:         attempt.Seq,
		Answered:    attempt.Answered,
		Outcome:     string(attempt.Outcome),
		Error:       attempt.Error,
		StartedAt:   attempt.StartedAt,
		EndedAt:     attempt.EndedAt,
		OccurredAt:  time.Now().UTC(),
	}
}
