package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/internal/storage/sqlite"
	"github.com/voicetutor/backend/pkg/logger"
)

type HistoryHandler struct {
	db *sqlite.Client
}

func NewHistoryHandler(db *sqlite.Client) *HistoryHandler {
	return &HistoryHandler{
		db: db,
	}
}

// CreateInteraction serves POST /interactions. The timestamp is always
// server-assigned; the record is append-only.
func (h *HistoryHandler) CreateInteraction(c *fiber.Ctx) error {
	var req struct {
		Username           string                 `json:"username"`
		SessionID          string                 `json:"session_id"`
		InputText          string                 `json:"input_text"`
		InputAudioDuration float64                `json:"input_audio_duration"`
		AgentResponse      string                 `json:"agent_response"`
		ResponseAudioURL   string                 `json:"response_audio_url"`
		Metadata           map[string]interface{} `json:"metadata"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.AgentResponse == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and agent_response are required",
		})
	}

	record := &models.Interaction{
		ID:                 uuid.New().String(),
		Username:           req.Username,
		SessionID:          req.SessionID,
		Timestamp:          time.Now(),
		InputText:          req.InputText,
		InputAudioDuration: req.InputAudioDuration,
		AgentResponse:      req.AgentResponse,
		ResponseAudioURL:   req.ResponseAudioURL,
		Metadata:           req.Metadata,
	}

	if err := h.db.InsertInteraction(record); err != nil {
		logger.Error("Failed to save interaction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save interaction",
		})
	}

	metrics.InteractionsLogged.WithLabelValues("api").Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         record.ID,
		"username":   record.Username,
		"session_id": record.SessionID,
		"timestamp":  record.Timestamp.Unix(),
	})
}

// RecentInteractions serves GET /interactions/recent?username=&limit=.
func (h *HistoryHandler) RecentInteractions(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be an integer between 1 and 100",
			})
		}
		limit = parsed
	}

	records, err := h.db.GetRecentInteractions(username, limit)
	if err != nil {
		logger.Error("Failed to load interactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load interactions",
		})
	}

	out := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		out = append(out, fiber.Map{
			"id":             r.ID,
			"username":       r.Username,
			"session_id":     r.SessionID,
			"timestamp":      r.Timestamp.Unix(),
			"input_text":     r.InputText,
			"agent_response": r.AgentResponse,
			"metadata":       r.Metadata,
		})
	}

	return c.JSON(fiber.Map{"interactions": out})
}
