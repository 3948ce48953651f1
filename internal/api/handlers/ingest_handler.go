package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/internal/ingestion"
	"github.com/ezextender/backend/pkg/logger"
)

type IngestHandler struct {
	processor *ingestion.Processor
}

func NewIngestHandler(processor *ingestion.Processor) *IngestHandler {
	return &IngestHandler{
		processor: processor,
	}
}

// HandleIngest replaces the policy corpus with the submitted batch. The
// old corpus is gone once this starts, so callers send the full set.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Documents []struct {
			SourceID string `json:"source_id"`
			Format   string `json:"format"`
			Content  string `json:"content"`
		} `json:"documents"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "documents is required",
		})
	}

	docs := make([]ingestion.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, ingestion.Document{
			SourceID: d.SourceID,
			Format:   d.Format,
			Content:  d.Content,
		})
	}

	result, err := h.processor.IngestBatch(c.Context(), docs)
	if err != nil {
		logger.Error("Policy ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest policy documents",
		})
	}

	if result.Documents == 0 && result.Skipped > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "every document in the batch was skipped",
			"kind":   string(engine.KindIngestionSkipped),
			"result": result,
		})
	}

	return c.JSON(result)
}
