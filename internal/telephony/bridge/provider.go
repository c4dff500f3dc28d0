package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acme/autodialer/internal/config"
	"github.com/acme/autodialer/internal/telephony"
)

// Provider asks an external call bridge to place the call over HTTP. The
// bridge reports call-state transitions back through the signal webhooks,
// so Place only covers the initiation round trip.
type Provider struct {
	endpoint string
	client   *http.Client
}

type placeRequest struct {
	AttemptID   string `json:"attempt_id"`
	PhoneNumber string `json:"phone_number"`
	Seq         uint64 `json:"seq"`
}

// NewProvider constructs a bridge provider from config.
func NewProvider(cfg config.CallBridgeConfig) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("bridge: no endpoint configured")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Place submits the dial request to the bridge.
func (p *Provider) Place(ctx context.Context, dial telephony.Dial) error {
	tracer := otel.Tracer("autodialer.bridge")
	ctx, span := tracer.Start(ctx, "bridge.place", trace.WithAttributes(
		attribute.String("attempt.id", dial.AttemptID.String()),
		attribute.Int64("attempt.seq", int64(dial.Seq)),
	))
	defer span.End()

	body, err := json.Marshal(placeRequest{
		AttemptID:   dial.AttemptID.String(),
		PhoneNumber: dial.Number.String(),
		Seq:         dial.Seq,
	})
	if err != nil {
		span.RecordError(err)
		return &telephony.InitiationError{Number: dial.Number, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return &telephony.InitiationError{Number: dial.Number, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return &telephony.InitiationError{Number: dial.Number, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("bridge returned %s", resp.Status)
		span.RecordError(err)
		return &telephony.InitiationError{Number: dial.Number, Cause: err}
	}
	return nil
}
