package notify

import (
	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/pkg/logger"
)

// LogObserver mirrors every sequencer transition into the structured log.
type LogObserver struct {
	logger *logger.Logger
}

// NewLogObserver constructs a logging observer.
func NewLogObserver(lg *logger.Logger) *LogObserver {
	return &LogObserver{logger: lg.Named("sequencer")}
}

func (o *LogObserver) SessionStateChanged(state domain.SessionState) {
	o.logger.Info("session state", zap.String("state", string(state)))
}

func (o *LogObserver) CurrentNumberChanged(number domain.PhoneNumber) {
	if number.IsZero() {
		o.logger.Info("current number cleared")
		return
	}
	o.logger.Info("dialing", zap.String("number", number.String()))
}

func (o *LogObserver) CallCountChanged(count uint64) {
	o.logger.Info("call count", zap.Uint64("count", count))
}

func (o *LogObserver) QueueChanged(queue []domain.PhoneNumber) {
	o.logger.Info("queue changed", zap.Int("pending", len(queue)))
}

func (o *LogObserver) AttemptStarted(attempt domain.DialAttempt) {
	o.logger.Info("attempt started",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("number", attempt.Number.String()),
		zap.Uint64("seq", attempt.Seq),
	)
}

func (o *LogObserver) AttemptEnded(attempt domain.DialAttempt) {
	fields := []zap.Field{
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("number", attempt.Number.String()),
		zap.String("outcome", string(attempt.Outcome)),
		zap.Bool("answered", attempt.Answered),
	}
	if attempt.Error != "" {
		fields = append(fields, zap.String("error", attempt.Error))
	}
	o.logger.Info("attempt ended", fields...)
}
