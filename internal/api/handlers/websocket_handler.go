package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/query"
	"github.com/voicetutor/backend/pkg/logger"
)

// WebSocketHandler drives the live agent channel: the voice frontend
// sends queries over a persistent connection and receives the spoken
// summary streamed in word chunks, followed by the full payload.
type WebSocketHandler struct {
	engine *query.Engine
}

func NewWebSocketHandler(engine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Agent channel connected")

	defer func() {
		c.Close()
		logger.Info("Agent channel closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			Username  string `json:"username"`
			UserID    string `json:"user_id"`
			SessionID string `json:"session_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("Agent channel read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if msg.Username == "" {
			msg.Username = msg.UserID
		}

		if msg.Content == "" || msg.Username == "" {
			h.sendError(c, "content and username are required")
			continue
		}

		if err := h.streamResponse(c, msg.Content, msg.Username, msg.SessionID); err != nil {
			logger.Error("Failed to stream agent response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, queryText, username, sessionID string) error {
	req := query.Request{
		Username:  username,
		Query:     queryText,
		SessionID: sessionID,
	}

	if err := h.sendChunk(c, "status", "Processing query..."); err != nil {
		return err
	}

	response, err := h.engine.Process(context.Background(), req)
	if err != nil {
		return err
	}

	words := strings.Fields(response.Summary)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":         "complete",
		"summary":      response.Summary,
		"data":         response.Data,
		"user_context": response.UserContext,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
