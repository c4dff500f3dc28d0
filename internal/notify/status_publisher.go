package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/internal/sequencer"
	"github.com/acme/autodialer/pkg/logger"
)

// StatusPublisher is a sequencer observer that publishes per-attempt status
// messages to Kafka. Observer callbacks run inside the sequencer's atomic
// step, so the publisher only enqueues there; a worker goroutine does the
// actual writes.
type StatusPublisher struct {
	sequencer.Funcs

	writer  *kafka.Writer
	logger  *logger.Logger
	pending chan StatusMessage
}

// NewStatusPublisher constructs a publisher for the given topic.
func NewStatusPublisher(k *Kafka, topic string, lg *logger.Logger) *StatusPublisher {
	return &StatusPublisher{
		writer:  k.NewWriter(topic),
		logger:  lg,
		pending: make(chan StatusMessage, 256),
	}
}

// AttemptStarted is part of the sequencer.AttemptObserver interface. Only
// terminal outcomes are published.
func (p *StatusPublisher) AttemptStarted(attempt domain.DialAttempt) {}

// AttemptEnded queues the finished attempt for publication. When the buffer
// is full the message is dropped and reported rather than stalling the
// sequencer.
func (p *StatusPublisher) AttemptEnded(attempt domain.DialAttempt) {
	msg := NewStatusMessage(attempt)
	select {
	case p.pending <- msg:
	default:
		p.logger.Warn("status publisher: buffer full, dropping message",
			zap.String("attempt_id", msg.AttemptID.String()),
		)
	}
}

// Run publishes queued messages until the context is cancelled.
func (p *StatusPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.pending:
			if err := p.publish(ctx, msg); err != nil {
				p.logger.Error("status publisher: publish", zap.Error(err))
			}
		}
	}
}

func (p *StatusPublisher) publish(ctx context.Context, msg StatusMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("status publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.AttemptID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("status publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *StatusPublisher) Close() error {
	return p.writer.Close()
}
