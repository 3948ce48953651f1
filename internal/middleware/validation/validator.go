package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxReasonLength  int
	MaxDocumentSize  int
	MaxDaysRequested int
	Logger           *zap.Logger
}

// Middleware rejects malformed decide/review/ingest payloads before they
// reach the engine. Deadline grammar is the engine's job; this layer only
// guards shapes and sizes.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxReasonLength == 0 {
		cfg.MaxReasonLength = 4000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if cfg.MaxDaysRequested == 0 {
		cfg.MaxDaysRequested = 365
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		path := c.Path()

		switch {
		case strings.HasSuffix(path, "/decide"), strings.HasSuffix(path, "/review"):
			var req struct {
				ReasonText    string `json:"reason_text"`
				DaysRequested int    `json:"days_requested"`
			}
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid JSON body")
			}

			if strings.TrimSpace(req.ReasonText) == "" {
				return badRequest(c, "reason_text is required")
			}
			if len(req.ReasonText) > cfg.MaxReasonLength {
				cfg.Logger.Warn("Oversized reason text rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(req.ReasonText)),
				)
				return badRequest(c, "reason_text exceeds maximum length")
			}
			if req.DaysRequested < 0 || req.DaysRequested > cfg.MaxDaysRequested {
				return badRequest(c, "days_requested out of range")
			}

		case strings.HasSuffix(path, "/policy/documents"):
			if len(c.Body()) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "document batch exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
