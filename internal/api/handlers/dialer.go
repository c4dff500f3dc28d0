package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/autodialer/internal/domain"
	apperrors "github.com/acme/autodialer/pkg/errors"
)

type addNumbersRequest struct {
	Number  string   `json:"number"`
	Numbers []string `json:"numbers"`
}

type removeNumberRequest struct {
	Number string `json:"number"`
}

func (h *HandlerSet) startDialer(ctx *fiber.Ctx) error {
	err := h.sequencer.Start(ctx.Context())

	resp := fiber.Map{"session": h.sequencer.Snapshot()}
	if err != nil {
		// Initiation refusals are informational; the session already
		// advanced past them or settled back to idle.
		resp["warning"] = err.Error()
	}
	return ctx.Status(http.StatusAccepted).JSON(resp)
}

func (h *HandlerSet) stopDialer(ctx *fiber.Ctx) error {
	h.sequencer.Stop(ctx.Context())
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"session": h.sequencer.Snapshot()})
}

func (h *HandlerSet) dialerStatus(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"session": h.sequencer.Snapshot()})
}

func (h *HandlerSet) addNumbers(ctx *fiber.Ctx) error {
	var req addNumbersRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	raw := req.Numbers
	if req.Number != "" {
		raw = append(raw, req.Number)
	}
	if len(raw) == 0 {
		return translateError(apperrors.Wrap(apperrors.ErrValidation, "no numbers supplied"))
	}

	numbers := make([]domain.PhoneNumber, 0, len(raw))
	for _, n := range raw {
		number := domain.PhoneNumber(n)
		if !number.WellFormed() {
			return translateError(apperrors.Wrap(apperrors.ErrValidation, "malformed number "+strconv.Quote(n)))
		}
		numbers = append(numbers, number)
	}

	for _, number := range numbers {
		h.sequencer.AddNumber(ctx.Context(), number)
	}
	return ctx.Status(http.StatusCreated).JSON(fiber.Map{"session": h.sequencer.Snapshot()})
}

func (h *HandlerSet) removeNumber(ctx *fiber.Ctx) error {
	var req removeNumberRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Number == "" {
		return translateError(apperrors.Wrap(apperrors.ErrValidation, "no number supplied"))
	}

	h.sequencer.RemoveNumber(ctx.Context(), domain.PhoneNumber(req.Number))
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"session": h.sequencer.Snapshot()})
}

func (h *HandlerSet) clearQueue(ctx *fiber.Ctx) error {
	h.sequencer.ClearQueue(ctx.Context())
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"session": h.sequencer.Snapshot()})
}

func (h *HandlerSet) recentAttempts(ctx *fiber.Ctx) error {
	if h.journal == nil {
		return translateError(apperrors.Wrap(apperrors.ErrUnavailable, "attempt journal not configured"))
	}

	limit := ctx.QueryInt("limit", 50)
	attempts, err := h.journal.Recent(ctx.Context(), limit)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"attempts": toAttemptResponses(attempts)})
}
