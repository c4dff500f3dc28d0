package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/journal"
	"github.com/acme/autodialer/internal/sequencer"
	"github.com/acme/autodialer/pkg/logger"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	logger    *logger.Logger
	sequencer *sequencer.Sequencer

	// optional collaborators, nil when the respective backend is disabled
	journal journal.Store
	pg      *sqlx.DB
	redis   *redis.Client
}

// NewHandlerSet creates a new handler bundle. journalStore, pg and rdb may
// be nil when the corresponding backend is not configured.
func NewHandlerSet(lg *logger.Logger, seq *sequencer.Sequencer, journalStore journal.Store, pg *sqlx.DB, rdb *redis.Client) *HandlerSet {
	return &HandlerSet{
		logger:    lg,
		sequencer: seq,
		journal:   journalStore,
		pg:        pg,
		redis:     rdb,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	dialer := v1.Group("/dialer")
	dialer.Post("/start", h.startDialer)
	dialer.Post("/stop", h.stopDialer)
	dialer.Get("/status", h.dialerStatus)
	dialer.Get("/attempts", h.recentAttempts)

	numbers := dialer.Group("/numbers")
	numbers.Post("/", h.addNumbers)
	numbers.Post("/remove", h.removeNumber)
	numbers.Post("/clear", h.clearQueue)

	signal := v1.Group("/signal")
	signal.Post("/ringing", h.signalRinging)
	signal.Post("/answered", h.signalAnswered)
	signal.Post("/ended", h.signalEnded)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if h.pg != nil {
		if err := h.pg.PingContext(healthCtx); err != nil {
			errs["postgres"] = err.Error()
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(healthCtx).Err(); err != nil {
			errs["redis"] = err.Error()
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
