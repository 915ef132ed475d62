package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/internal/query"
	"github.com/voicetutor/backend/pkg/logger"
)

type KnowledgeHandler struct {
	engine *query.Engine
}

func NewKnowledgeHandler(engine *query.Engine) *KnowledgeHandler {
	return &KnowledgeHandler{
		engine: engine,
	}
}

// HandleKnowledge serves GET /knowledge?q=&username=&session_id=.
// An all-sources failure still returns 200 with empty results; only an
// unhandled pipeline failure is a 500.
func (h *KnowledgeHandler) HandleKnowledge(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'username' is required",
		})
	}

	req := query.Request{
		Username:  username,
		Query:     q,
		SessionID: c.Query("session_id"),
	}

	response, err := h.engine.Process(c.Context(), req)
	if err != nil {
		metrics.KnowledgeRequests.WithLabelValues("error").Inc()
		logger.Error("Failed to process knowledge request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process knowledge request",
		})
	}

	metrics.KnowledgeRequests.WithLabelValues("ok").Inc()
	return c.JSON(response)
}
