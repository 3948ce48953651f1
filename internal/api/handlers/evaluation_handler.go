package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/evaluation"
	"github.com/ezextender/backend/pkg/logger"
)

type EvaluationHandler struct {
	evaluator *evaluation.Evaluator
}

func NewEvaluationHandler(evaluator *evaluation.Evaluator) *EvaluationHandler {
	return &EvaluationHandler{
		evaluator: evaluator,
	}
}

// HandleReplay re-runs recorded precedent cases through the engine and
// reports how often it agrees with the human reviewers.
func (h *EvaluationHandler) HandleReplay(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 1000 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 1000",
		})
	}

	report, err := h.evaluator.Replay(c.Context(), limit)
	if err != nil {
		logger.Error("Evaluation replay failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to replay precedent cases",
		})
	}

	return c.JSON(report)
}
