package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/autodialer/internal/domain"
	"github.com/acme/autodialer/internal/sequencer"
	"github.com/acme/autodialer/internal/telephony"
	"github.com/acme/autodialer/pkg/logger"
)

type acceptAllInitiator struct{}

func (acceptAllInitiator) Place(ctx context.Context, dial telephony.Dial) error {
	return nil
}

type sessionResponse struct {
	Session domain.SessionSnapshot `json:"session"`
}

func newTestApp(t *testing.T) (*fiber.App, *sequencer.Sequencer) {
	t.Helper()
	seq := sequencer.New(acceptAllInitiator{}, logger.Nop())
	h := NewHandlerSet(logger.Nop(), seq, nil, nil, nil)

	app := fiber.New(fiber.Config{ErrorHandler: h.ErrorHandler})
	h.Register(app)
	return app, seq
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, sessionResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	var parsed sessionResponse
	if resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode response for %s %s: %v", method, path, err)
		}
	}
	resp.Body.Close()
	return resp, parsed
}

func TestDialerLifecycleOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	resp, parsed := doJSON(t, app, http.MethodPost, "/api/v1/dialer/numbers/", `{"numbers":["+15550100","+15550101"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 adding numbers, got %d", resp.StatusCode)
	}
	if len(parsed.Session.Queue) != 2 {
		t.Fatalf("expected 2 queued numbers, got %v", parsed.Session.Queue)
	}

	resp, parsed = doJSON(t, app, http.MethodPost, "/api/v1/dialer/start", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 on start, got %d", resp.StatusCode)
	}
	if parsed.Session.State != domain.SessionCalling || parsed.Session.CurrentNumber != "+15550100" {
		t.Fatalf("unexpected session after start: %+v", parsed.Session)
	}

	if resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/signal/ringing", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from signal, got %d", resp.StatusCode)
	}
	if resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/signal/ended", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from signal, got %d", resp.StatusCode)
	}

	resp, parsed = doJSON(t, app, http.MethodGet, "/api/v1/dialer/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from status, got %d", resp.StatusCode)
	}
	if parsed.Session.CurrentNumber != "+15550101" || parsed.Session.CallCount != 2 {
		t.Fatalf("expected auto-advance to second number, got %+v", parsed.Session)
	}

	resp, parsed = doJSON(t, app, http.MethodPost, "/api/v1/dialer/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on stop, got %d", resp.StatusCode)
	}
	if parsed.Session.State != domain.SessionIdle {
		t.Fatalf("expected idle after stop, got %+v", parsed.Session)
	}
}

func TestAddMalformedNumberRejected(t *testing.T) {
	app, seq := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/dialer/numbers/", `{"number":"not-a-number"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed number, got %d", resp.StatusCode)
	}
	if snap := seq.Snapshot(); len(snap.Queue) != 0 {
		t.Fatalf("malformed number leaked into queue: %v", snap.Queue)
	}
}

func TestRecentAttemptsWithoutJournal(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/dialer/attempts", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a journal, got %d", resp.StatusCode)
	}
}
