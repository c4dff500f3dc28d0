package journal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/internal/sequencer"
	"github.com/acme/autodialer/pkg/logger"
)

// Store persists dial attempt records.
type Store interface {
	RecordStart(ctx context.Context, attempt domain.DialAttempt) error
	RecordEnd(ctx context.Context, attempt domain.DialAttempt) error
	Recent(ctx context.Context, limit int) ([]domain.DialAttempt, error)
}

type opKind int

const (
	opStart opKind = iota
	opEnd
)

type journalOp struct {
	kind    opKind
	attempt domain.DialAttempt
}

// Recorder is a sequencer observer that journals every dial attempt.
// Callbacks only enqueue; a worker goroutine performs the store writes so
// no database I/O happens inside the sequencer's atomic step.
type Recorder struct {
	sequencer.Funcs

	store   Store
	logger  *logger.Logger
	pending chan journalOp
}

// NewRecorder constructs a journaling observer backed by store.
func NewRecorder(store Store, lg *logger.Logger) *Recorder {
	return &Recorder{
		store:   store,
		logger:  lg,
		pending: make(chan journalOp, 256),
	}
}

// AttemptStarted is part of the sequencer.AttemptObserver interface.
func (r *Recorder) AttemptStarted(attempt domain.DialAttempt) {
	r.enqueue(journalOp{kind: opStart, attempt: attempt})
}

// AttemptEnded is part of the sequencer.AttemptObserver interface.
func (r *Recorder) AttemptEnded(attempt domain.DialAttempt) {
	r.enqueue(journalOp{kind: opEnd, attempt: attempt})
}

func (r *Recorder) enqueue(op journalOp) {
	select {
	case r.pending <- op:
	default:
		r.logger.Warn("journal: buffer full, dropping record",
			zap.String("attempt_id", op.attempt.ID.String()),
		)
	}
}

// Run drains the journal queue until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-r.pending:
			r.apply(ctx, op)
		}
	}
}

func (r *Recorder) apply(ctx context.Context, op journalOp) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	switch op.kind {
	case opStart:
		err = r.store.RecordStart(writeCtx, op.attempt)
	case opEnd:
		err = r.store.RecordEnd(writeCtx, op.attempt)
	}
	if err != nil {
		r.logger.Error("journal: record attempt",
			zap.String("attempt_id", op.attempt.ID.String()),
			zap.Error(err),
		)
	}
}
