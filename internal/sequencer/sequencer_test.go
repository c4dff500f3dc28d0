package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/internal/telephony"
	"github.com/acme/autodialer/pkg/logger"
)

// fakeInitiator records placed dials and optionally refuses configured
// numbers without emitting any signal events.
type fakeInitiator struct {
	mu     sync.Mutex
	placed []telephony.Dial
	refuse map[domain.PhoneNumber]error
}

func (f *fakeInitiator) Place(ctx context.Context, dial telephony.Dial) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, dial)
	if err, ok := f.refuse[dial.Number]; ok {
		return &telephony.InitiationError{Number: dial.Number, Cause: err}
	}
	return nil
}

func (f *fakeInitiator) numbers() []domain.PhoneNumber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PhoneNumber, len(f.placed))
	for i, d := range f.placed {
		out[i] = d.Number
	}
	return out
}

func newTestSequencer(refuse map[domain.PhoneNumber]error) (*Sequencer, *fakeInitiator) {
	init := &fakeInitiator{refuse: refuse}
	return New(init, logger.Nop()), init
}

func expectSnapshot(t *testing.T, s *Sequencer, state domain.SessionState, current domain.PhoneNumber, count uint64) {
	t.Helper()
	snap := s.Snapshot()
	if snap.State != state {
		t.Fatalf("expected state %s, got %s", state, snap.State)
	}
	if snap.CurrentNumber != current {
		t.Fatalf("expected current %q, got %q", current, snap.CurrentNumber)
	}
	if snap.CallCount != count {
		t.Fatalf("expected call count %d, got %d", count, snap.CallCount)
	}
	if snap.CurrentNumber.IsZero() == snap.State.Active() {
		t.Fatalf("invariant violated: state=%s current=%q", snap.State, snap.CurrentNumber)
	}
}

func TestSessionWalkthrough(t *testing.T) {
	ctx := context.Background()
	s, init := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	expectSnapshot(t, s, domain.SessionCalling, "+15550100", 1)

	s.OnRinging(ctx)
	expectSnapshot(t, s, domain.SessionRinging, "+15550100", 1)

	s.OnAnswered(ctx)
	expectSnapshot(t, s, domain.SessionAnswered, "+15550100", 1)

	s.OnEnded(ctx)
	expectSnapshot(t, s, domain.SessionCalling, "+15550101", 2)

	s.OnEnded(ctx)
	expectSnapshot(t, s, domain.SessionIdle, "", 2)

	want := []domain.PhoneNumber{"+15550100", "+15550101"}
	got := init.numbers()
	if len(got) != len(want) {
		t.Fatalf("expected %d dials, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dial %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFIFODialOrder(t *testing.T) {
	ctx := context.Background()
	s, init := newTestSequencer(nil)
	for _, n := range []domain.PhoneNumber{"+15550100", "+15550101", "+15550102"} {
		s.AddNumber(ctx, n)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.OnEnded(ctx)
	s.OnEnded(ctx)
	s.OnEnded(ctx)

	want := []domain.PhoneNumber{"+15550100", "+15550101", "+15550102"}
	got := init.numbers()
	if len(got) != len(want) {
		t.Fatalf("expected %d dials, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dial %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	expectSnapshot(t, s, domain.SessionIdle, "", 3)
}

func TestStartOnEmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	s, init := newTestSequencer(nil)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	expectSnapshot(t, s, domain.SessionIdle, "", 0)
	if len(init.numbers()) != 0 {
		t.Fatalf("expected no dials on empty queue")
	}
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	ctx := context.Background()
	s, init := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected second start error: %v", err)
	}
	expectSnapshot(t, s, domain.SessionCalling, "+15550100", 1)
	if len(init.numbers()) != 1 {
		t.Fatalf("expected exactly one dial, got %d", len(init.numbers()))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.Stop(ctx)
	expectSnapshot(t, s, domain.SessionIdle, "", 1)
	s.Stop(ctx)
	expectSnapshot(t, s, domain.SessionIdle, "", 1)
}

func TestStopWhileRingingKeepsQueue(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")
	s.AddNumber(ctx, "+15550102")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.OnRinging(ctx)
	s.Stop(ctx)

	expectSnapshot(t, s, domain.SessionIdle, "", 1)
	snap := s.Snapshot()
	if len(snap.Queue) != 2 {
		t.Fatalf("expected 2 numbers still queued, got %d", len(snap.Queue))
	}
	if snap.Queue[0] != "+15550101" || snap.Queue[1] != "+15550102" {
		t.Fatalf("queue disturbed by stop: %v", snap.Queue)
	}
}

func TestRemoveNumberMidCall(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")
	s.AddNumber(ctx, "+15550102")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.OnAnswered(ctx)
	s.RemoveNumber(ctx, "+15550101")

	expectSnapshot(t, s, domain.SessionAnswered, "+15550100", 1)
	snap := s.Snapshot()
	if len(snap.Queue) != 1 || snap.Queue[0] != "+15550102" {
		t.Fatalf("expected only +15550102 queued, got %v", snap.Queue)
	}

	// The current number is not part of the queue; removing it is a no-op.
	s.RemoveNumber(ctx, "+15550100")
	expectSnapshot(t, s, domain.SessionAnswered, "+15550100", 1)
}

func TestClearQueueKeepsCurrentCall(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.ClearQueue(ctx)

	expectSnapshot(t, s, domain.SessionCalling, "+15550100", 1)
	if snap := s.Snapshot(); len(snap.Queue) != 0 {
		t.Fatalf("expected empty queue, got %v", snap.Queue)
	}

	s.OnEnded(ctx)
	expectSnapshot(t, s, domain.SessionIdle, "", 1)
}

func TestStrayEventsIgnoredWhenIdle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")

	s.OnRinging(ctx)
	s.OnAnswered(ctx)
	s.OnEnded(ctx)

	expectSnapshot(t, s, domain.SessionIdle, "", 0)
	if snap := s.Snapshot(); len(snap.Queue) != 1 {
		t.Fatalf("stray events disturbed the queue: %v", snap.Queue)
	}
}

func TestAnsweredBeforeRingingAccepted(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.OnAnswered(ctx)
	expectSnapshot(t, s, domain.SessionAnswered, "+15550100", 1)
}

func TestRingingAfterAnsweredIgnored(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	s.AddNumber(ctx, "+15550100")

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	s.OnAnswered(ctx)
	s.OnRinging(ctx)
	expectSnapshot(t, s, domain.SessionAnswered, "+15550100", 1)
}

func TestInitiationRefusalAdvances(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("line busy")
	s, init := newTestSequencer(map[domain.PhoneNumber]error{"+15550100": cause})
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")

	err := s.Start(ctx)
	if err == nil {
		t.Fatalf("expected refusal to surface from Start")
	}
	var initErr *telephony.InitiationError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected InitiationError, got %v", err)
	}

	// The refused dial still counted as an attempt, and the session moved
	// straight on to the next number.
	expectSnapshot(t, s, domain.SessionCalling, "+15550101", 2)
	if len(init.numbers()) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(init.numbers()))
	}
}

func TestInitiationRefusalExhaustsToIdle(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("no service")
	s, _ := newTestSequencer(map[domain.PhoneNumber]error{
		"+15550100": cause,
		"+15550101": cause,
	})
	s.AddNumber(ctx, "+15550100")
	s.AddNumber(ctx, "+15550101")

	if err := s.Start(ctx); err == nil {
		t.Fatalf("expected refusals to surface from Start")
	}
	expectSnapshot(t, s, domain.SessionIdle, "", 2)
}

func TestConcurrentCommandsAndEvents(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSequencer(nil)
	for i := 0; i < 50; i++ {
		s.AddNumber(ctx, "+15550100")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.OnRinging(ctx)
				s.OnAnswered(ctx)
				s.OnEnded(ctx)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 25; j++ {
			s.AddNumber(ctx, "+15550101")
			s.RemoveNumber(ctx, "+15550101")
		}
	}()
	wg.Wait()

	s.Stop(ctx)
	snap := s.Snapshot()
	if snap.State != domain.SessionIdle {
		t.Fatalf("expected idle after stop, got %s", snap.State)
	}
	if !snap.CurrentNumber.IsZero() {
		t.Fatalf("expected no current number after stop, got %q", snap.CurrentNumber)
	}
}
