package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *engine.Engine
}

func NewWebSocketHandler(eng *engine.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: eng,
	}
}

// HandleConnection serves a reviewer dashboard session. Each "decide"
// message streams stage updates followed by the full decision payload.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type          string `json:"type"`
			DeadlineISO   string `json:"deadline_iso"`
			DaysRequested int    `json:"days_requested"`
			ReasonText    string `json:"reason_text"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "decide" {
			continue
		}

		err = h.streamDecision(c, engine.DecideRequest{
			DeadlineISO:   msg.DeadlineISO,
			DaysRequested: msg.DaysRequested,
			ReasonText:    msg.ReasonText,
		})
		if err != nil {
			logger.Error("Failed to stream decision", zap.Error(err))
			h.sendError(c, "Failed to produce decision")
		}
	}
}

func (h *WebSocketHandler) streamDecision(c *websocket.Conn, req engine.DecideRequest) error {
	ctx := context.Background()

	if err := h.sendStage(c, "Checking deadline window..."); err != nil {
		return err
	}
	if err := h.sendStage(c, "Searching policy and precedent evidence..."); err != nil {
		return err
	}

	payload, err := h.engine.Decide(ctx, req)
	if err != nil {
		if engErr, ok := engine.AsError(err); ok {
			h.sendError(c, engErr.Message)
			return nil
		}
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":    "decision",
		"payload": payload,
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "stage",
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
