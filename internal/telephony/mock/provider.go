package mock

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/config"
	"github.com/acme/autodialer/internal/telephony"
	"github.com/acme/autodialer/pkg/logger"
)

// Provider simulates outbound call behaviour for local runs: each placed
// call rings, is answered with a configured probability, and ends on its
// own, with the resulting events delivered to the bound SignalHandler.
type Provider struct {
	cfg    config.MockConfig
	logger *logger.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	handler telephony.SignalHandler
}

// NewProvider constructs a mock provider.
func NewProvider(cfg config.MockConfig, lg *logger.Logger) *Provider {
	if cfg.RingDelay <= 0 {
		cfg.RingDelay = 300 * time.Millisecond
	}
	if cfg.MinCallDuration <= 0 {
		cfg.MinCallDuration = time.Second
	}
	if cfg.MaxCallDuration < cfg.MinCallDuration {
		cfg.MaxCallDuration = cfg.MinCallDuration
	}
	if cfg.AnswerRate <= 0 {
		cfg.AnswerRate = 0.8
	}
	return &Provider{
		cfg:    cfg,
		logger: lg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Bind attaches the signal handler receiving simulated call events. Must be
// called before the first Place.
func (p *Provider) Bind(handler telephony.SignalHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// Place starts a simulated call timeline and returns immediately.
func (p *Provider) Place(ctx context.Context, dial telephony.Dial) error {
	p.mu.Lock()
	handler := p.handler
	refused := p.rng.Float64() < p.cfg.RefusalRate
	answered := p.rng.Float64() < p.cfg.AnswerRate
	talk := p.cfg.MinCallDuration
	if spread := p.cfg.MaxCallDuration - p.cfg.MinCallDuration; spread > 0 {
		talk += time.Duration(p.rng.Int63n(int64(spread)))
	}
	p.mu.Unlock()

	if handler == nil {
		return &telephony.InitiationError{Number: dial.Number, Cause: errors.New("mock: no signal handler bound")}
	}
	if refused {
		return &telephony.InitiationError{Number: dial.Number, Cause: errors.New("mock: simulated refusal")}
	}

	// The timeline outlives the command that triggered the dial.
	eventCtx := context.WithoutCancel(ctx)
	go p.runCall(eventCtx, handler, dial, answered, talk)
	return nil
}

func (p *Provider) runCall(ctx context.Context, handler telephony.SignalHandler, dial telephony.Dial, answered bool, talk time.Duration) {
	p.logger.Debug("mock call placed",
		zap.String("attempt_id", dial.AttemptID.String()),
		zap.String("number", dial.Number.String()),
		zap.Bool("answered", answered),
	)

	time.Sleep(p.cfg.RingDelay)
	handler.OnRinging(ctx)

	if answered {
		time.Sleep(p.cfg.RingDelay)
		handler.OnAnswered(ctx)
		time.Sleep(talk)
	} else {
		time.Sleep(talk)
	}

	handler.OnEnded(ctx)
}
