package sequencer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/dialqueue"
	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/internal/telephony"
	"github.com/acme/autodialer/pkg/logger"
)

// Sequencer walks an ordered queue of phone numbers, dialing one at a time
// and advancing whenever the telephony layer reports the current call over.
// It owns the queue, the session state, the current number and the call
// counter as a single consistency unit behind one mutex: user commands and
// telephony events are both serialized through it, in arrival order.
//
// Dialing is fire-and-forget; the sequencer never blocks on the telephony
// hardware and imposes no timeouts of its own. A call that never reports an
// end will hold the session in ringing/answered until Stop.
type Sequencer struct {
	initiator telephony.Initiator
	logger    *logger.Logger

	mu        sync.Mutex
	state     domain.SessionState
	current   domain.PhoneNumber
	attempt   *domain.DialAttempt
	count     uint64
	queue     *dialqueue.Queue
	observers []Observer
}

// New constructs an idle sequencer with an empty queue.
func New(initiator telephony.Initiator, lg *logger.Logger) *Sequencer {
	return &Sequencer{
		initiator: initiator,
		logger:    lg,
		state:     domain.SessionIdle,
		queue:     dialqueue.New(),
	}
}

// Subscribe registers an observer. Notification order follows registration
// order.
func (s *Sequencer) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Start begins a dialing session. It is a silent no-op when a session is
// already running or the queue is empty. The returned error aggregates any
// initiation refusals hit while advancing; the session itself keeps going
// (or settles back to idle) regardless.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionIdle {
		return nil
	}
	if s.queue.IsEmpty() {
		return nil
	}
	return s.dialNextLocked(ctx)
}

// Stop halts auto-advancement and returns the session to idle. The queue is
// left intact, and a call already live on the device is not hung up; that
// authority stays with the telephony layer. Stop is idempotent.
func (s *Sequencer) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionIdle {
		return
	}

	s.finishAttemptLocked(domain.OutcomeStopped, nil)
	s.settleIdleLocked()
}

// AddNumber appends a number to the queue. Legal in any session state.
func (s *Sequencer) AddNumber(ctx context.Context, number domain.PhoneNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Append(number)
	s.publishQueueLocked()
}

// RemoveNumber removes the first queued occurrence of number. The number
// currently being dialed is not part of the queue and is never affected.
func (s *Sequencer) RemoveNumber(ctx context.Context, number domain.PhoneNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Remove(number) {
		s.publishQueueLocked()
	}
}

// ClearQueue empties the queue without touching the call in progress.
func (s *Sequencer) ClearQueue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.IsEmpty() {
		return
	}
	s.queue.Clear()
	s.publishQueueLocked()
}

// OnRinging handles a ring report from the telephony layer. Ignored when
// idle (a stray, out-of-session event) and when already answered (a late
// duplicate signal).
func (s *Sequencer) OnRinging(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.SessionCalling:
		s.state = domain.SessionRinging
		s.publishStateLocked()
	case domain.SessionRinging, domain.SessionIdle, domain.SessionAnswered:
		// no transition
	}
}

// OnAnswered handles an off-hook report. Accepted from any non-idle state:
// answered-before-ringing is trusted as delivered, not reordered.
func (s *Sequencer) OnAnswered(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionIdle || s.state == domain.SessionAnswered {
		return
	}
	s.state = domain.SessionAnswered
	if s.attempt != nil {
		s.attempt.Answered = true
	}
	s.publishStateLocked()
}

// OnEnded handles a call-over report: the current attempt is finished and
// the sequencer auto-advances to the next queued number, or settles to idle
// when the queue is exhausted. A no-op when idle.
func (s *Sequencer) OnEnded(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionIdle {
		return
	}

	s.finishAttemptLocked(domain.OutcomeEnded, nil)
	if err := s.dialNextLocked(ctx); err != nil {
		s.logger.Warn("auto-advance hit initiation refusals", zap.Error(err))
	}
}

// Snapshot returns a consistent view of the observable state.
func (s *Sequencer) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionSnapshot{
		State:         s.state,
		CurrentNumber: s.current,
		CallCount:     s.count,
		Queue:         s.queue.Snapshot(),
	}
}

// State returns the current session state.
func (s *Sequencer) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentNumber returns the number being dialed, empty when idle.
func (s *Sequencer) CurrentNumber() domain.PhoneNumber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CallCount returns the number of dial attempts initiated so far.
func (s *Sequencer) CallCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// dialNextLocked pops and dials queued numbers until one is accepted by the
// initiator or the queue runs out. A refused dial counts as an attempt that
// ended immediately, so the queue keeps advancing instead of stalling.
func (s *Sequencer) dialNextLocked(ctx context.Context) error {
	var refusals error
	for {
		number, err := s.queue.PopFront()
		if err != nil {
			s.settleIdleLocked()
			return refusals
		}

		s.count++
		attempt := &domain.DialAttempt{
			ID:        uuid.New(),
			Number:    number,
			Seq:       s.count,
			StartedAt: time.Now().UTC(),
		}
		s.state = domain.SessionCalling
		s.current = number
		s.attempt = attempt

		s.publishStateLocked()
		s.publishCurrentLocked()
		s.publishCountLocked()
		s.publishQueueLocked()
		s.publishAttemptStartedLocked(*attempt)

		if err := s.initiator.Place(ctx, telephony.Dial{AttemptID: attempt.ID, Number: number, Seq: attempt.Seq}); err != nil {
			s.logger.Warn("call initiation refused",
				zap.String("number", number.String()),
				zap.Error(err),
			)
			s.finishAttemptLocked(domain.OutcomeRefused, err)
			refusals = errors.Join(refusals, err)
			continue
		}
		return refusals
	}
}

// settleIdleLocked returns the session to idle with no current number.
func (s *Sequencer) settleIdleLocked() {
	s.state = domain.SessionIdle
	s.current = ""
	s.attempt = nil
	s.publishStateLocked()
	s.publishCurrentLocked()
}

// finishAttemptLocked stamps a terminal outcome on the in-flight attempt
// and reports it to attempt observers. The session state itself is the
// caller's to settle or advance.
func (s *Sequencer) finishAttemptLocked(outcome domain.AttemptOutcome, cause error) {
	if s.attempt == nil {
		return
	}
	ended := time.Now().UTC()
	s.attempt.Outcome = outcome
	s.attempt.EndedAt = &ended
	if cause != nil {
		s.attempt.Error = cause.Error()
	}
	s.publishAttemptEndedLocked(*s.attempt)
	s.attempt = nil
}

func (s *Sequencer) publishStateLocked() {
	state := s.state
	s.eachObserver(func(o Observer) { o.SessionStateChanged(state) })
}

func (s *Sequencer) publishCurrentLocked() {
	current := s.current
	s.eachObserver(func(o Observer) { o.CurrentNumberChanged(current) })
}

func (s *Sequencer) publishCountLocked() {
	count := s.count
	s.eachObserver(func(o Observer) { o.CallCountChanged(count) })
}

func (s *Sequencer) publishQueueLocked() {
	snapshot := s.queue.Snapshot()
	s.eachObserver(func(o Observer) { o.QueueChanged(snapshot) })
}

func (s *Sequencer) publishAttemptStartedLocked(attempt domain.DialAttempt) {
	s.eachObserver(func(o Observer) {
		if ao, ok := o.(AttemptObserver); ok {
			ao.AttemptStarted(attempt)
		}
	})
}

func (s *Sequencer) publishAttemptEndedLocked(attempt domain.DialAttempt) {
	s.eachObserver(func(o Observer) {
		if ao, ok := o.(AttemptObserver); ok {
			ao.AttemptEnded(attempt)
		}
	})
}

// eachObserver delivers to every observer in registration order. A
// panicking observer is isolated and reported so the rest still get the
// notification.
func (s *Sequencer) eachObserver(deliver func(Observer)) {
	for _, o := range s.observers {
		s.deliverOne(o, deliver)
	}
}

func (s *Sequencer) deliverOne(o Observer, deliver func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked", zap.Any("panic", r))
		}
	}()
	deliver(o)
}
