package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Signal webhooks: the external call bridge reports call-state transitions
// here. Events carry no payload; stray or out-of-session events are safely
// ignored by the sequencer.

func (h *HandlerSet) signalRinging(ctx *fiber.Ctx) error {
	h.sequencer.OnRinging(ctx.Context())
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) signalAnswered(ctx *fiber.Ctx) error {
	h.sequencer.OnAnswered(ctx.Context())
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) signalEnded(ctx *fiber.Ctx) error {
	h.sequencer.OnEnded(ctx.Context())
	return ctx.SendStatus(http.StatusNoContent)
}
