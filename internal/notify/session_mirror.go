package notify

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/pkg/logger"
)

// SessionMirror maintains the live session snapshot in Redis so external
// dashboards can read dialer state without holding a connection to the
// daemon. Callbacks are serialized by the sequencer, so the local copy
// needs no locking of its own; writes happen on a worker goroutine.
type SessionMirror struct {
	client  *redis.Client
	logger  *logger.Logger
	key     string
	last    domain.SessionSnapshot
	pending chan domain.SessionSnapshot
}

// NewSessionMirror constructs a mirror writing under the given key prefix.
func NewSessionMirror(client *redis.Client, keyPrefix string, lg *logger.Logger) *SessionMirror {
	if keyPrefix == "" {
		keyPrefix = "autodialer:"
	}
	return &SessionMirror{
		client:  client,
		logger:  lg,
		key:     keyPrefix + "session",
		last:    domain.SessionSnapshot{State: domain.SessionIdle, Queue: []domain.PhoneNumber{}},
		pending: make(chan domain.SessionSnapshot, 64),
	}
}

func (m *SessionMirror) SessionStateChanged(state domain.SessionState) {
	m.last.State = state
	m.enqueue()
}

func (m *SessionMirror) CurrentNumberChanged(number domain.PhoneNumber) {
	m.last.CurrentNumber = number
	m.enqueue()
}

func (m *SessionMirror) CallCountChanged(count uint64) {
	m.last.CallCount = count
	m.enqueue()
}

func (m *SessionMirror) QueueChanged(queue []domain.PhoneNumber) {
	m.last.Queue = queue
	m.enqueue()
}

func (m *SessionMirror) enqueue() {
	select {
	case m.pending <- m.last:
	default:
		// Stale intermediate snapshots are fine to drop; a newer one is
		// already queued behind them.
	}
}

// Run flushes queued snapshots until the context is cancelled.
func (m *SessionMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-m.pending:
			if err := m.write(ctx, snap); err != nil {
				m.logger.Error("session mirror: write", zap.Error(err))
			}
		}
	}
}

func (m *SessionMirror) write(ctx context.Context, snap domain.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.key, payload, 0).Err()
}
