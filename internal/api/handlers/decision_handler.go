package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/internal/taxonomy"
	"github.com/ezextender/backend/pkg/logger"
)

type DecisionHandler struct {
	engine *engine.Engine
}

func NewDecisionHandler(eng *engine.Engine) *DecisionHandler {
	return &DecisionHandler{
		engine: eng,
	}
}

func (h *DecisionHandler) HandleDecide(c *fiber.Ctx) error {
	var req struct {
		DeadlineISO   string `json:"deadline_iso"`
		DaysRequested int    `json:"days_requested"`
		ReasonText    string `json:"reason_text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DeadlineISO == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "deadline_iso is required",
		})
	}

	payload, err := h.engine.Decide(c.Context(), engine.DecideRequest{
		DeadlineISO:   req.DeadlineISO,
		DaysRequested: req.DaysRequested,
		ReasonText:    req.ReasonText,
	})
	if err != nil {
		return engineError(c, err, "Failed to produce decision")
	}

	return c.JSON(payload)
}

func (h *DecisionHandler) HandleReview(c *fiber.Ctx) error {
	var req struct {
		DeadlineISO   string `json:"deadline_iso"`
		DaysRequested int    `json:"days_requested"`
		ReasonText    string `json:"reason_text"`
		Outcome       string `json:"outcome"`
		Reviewer      string `json:"reviewer"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Outcome == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "outcome is required",
		})
	}

	result, err := h.engine.RecordReview(c.Context(), engine.ReviewRequest{
		DeadlineISO:   req.DeadlineISO,
		DaysRequested: req.DaysRequested,
		ReasonText:    req.ReasonText,
		Outcome:       req.Outcome,
		Reviewer:      req.Reviewer,
	})
	if err != nil {
		return engineError(c, err, "Failed to record review")
	}

	return c.JSON(result)
}

func (h *DecisionHandler) GetPrecedentStats(c *fiber.Ctx) error {
	tag := c.Query("tag")
	if tag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tag is required",
		})
	}

	if !taxonomy.IsValidTag(tag) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown tag",
		})
	}

	stats, err := h.engine.PrecedentStats(c.Context(), tag)
	if err != nil {
		logger.Error("Failed to load precedent stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load precedent stats",
		})
	}

	return c.JSON(stats)
}

// engineError translates the engine's error taxonomy into HTTP statuses.
// Caller mistakes are 400s; a vector store outage is a 503.
func engineError(c *fiber.Ctx, err error, fallback string) error {
	if engErr, ok := engine.AsError(err); ok {
		switch engErr.Kind {
		case engine.KindInvalidDeadlineFormat, engine.KindInvalidOutcome:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": engErr.Message,
				"kind":  string(engErr.Kind),
			})
		case engine.KindRetrievalUnavailable:
			logger.Error("Retrieval backend unavailable", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": engErr.Message,
				"kind":  string(engErr.Kind),
			})
		}
	}

	logger.Error(fallback, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}
