package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/autodialer/internal/domain"
)

type attemptResponse struct {
	ID          uuid.UUID  `json:"id"`
	PhoneNumber string     `json:"phone_number"`
	Seq         uint64     `json:"seq"`
	Answered    bool       `json:"answered"`
	Outcome     string     `json:"outcome,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

func toAttemptResponses(attempts []domain.DialAttempt) []attemptResponse {
	out := make([]attemptResponse, len(attempts))
	for i, a := range attempts {
		out[i] = attemptResponse{
			ID:          a.ID,
			PhoneNumber: a.Number.String(),
			Seq:         a.Seq,
			Answered:    a.Answered,
			Outcome:     string(a.Outcome),
			Error:       a.Error,
			StartedAt:   a.StartedAt,
			EndedAt:     a.EndedAt,
		}
	}
	return out
}
