package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/llm"
	"github.com/voicetutor/backend/internal/summary"
	"github.com/voicetutor/backend/pkg/logger"
)

type SummaryHandler struct {
	orchestrator *summary.Orchestrator
}

func NewSummaryHandler(orchestrator *summary.Orchestrator) *SummaryHandler {
	return &SummaryHandler{
		orchestrator: orchestrator,
	}
}

// WeeklySummary serves GET /summaries/weekly/:username for the current
// week. A repeat request within the same period returns the stored
// record; text-generation failures surface as 502.
func (h *SummaryHandler) WeeklySummary(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	record, err := h.orchestrator.GenerateForUser(c.Context(), username, time.Now())
	if err != nil {
		if errors.Is(err, summary.ErrNoInteractions) {
			return c.JSON(fiber.Map{
				"message": "No interactions found for the user.",
			})
		}
		if errors.Is(err, llm.ErrUnavailable) {
			logger.Error("Summary generation unavailable", zap.String("username", username), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Summary generation is temporarily unavailable",
			})
		}
		logger.Error("Failed to generate weekly summary", zap.String("username", username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate weekly summary",
		})
	}

	return c.JSON(fiber.Map{
		"id":           record.ID,
		"username":     record.Username,
		"period_start": record.PeriodStart.UTC().Format("2006-01-02"),
		"period_end":   record.PeriodEnd.UTC().Format("2006-01-02"),
		"summary":      record.SummaryText,
		"created_at":   record.CreatedAt.Unix(),
	})
}
