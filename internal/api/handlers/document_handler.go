package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/internal/storage/sqlite"
	"github.com/voicetutor/backend/pkg/logger"
	"github.com/voicetutor/backend/pkg/utils"
)

type DocumentHandler struct {
	db *sqlite.Client
}

func NewDocumentHandler(db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		db: db,
	}
}

// UploadDocument serves POST /documents. Ingested documents join the
// internal-docs corpus at its next cache refresh; there is no immediate
// invalidation, staleness is bounded by the document-cache TTL.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Title      string   `json:"title"`
		Content    string   `json:"content"`
		Tags       []string `json:"tags"`
		Source     string   `json:"source"`
		URL        string   `json:"url"`
		Complexity int      `json:"complexity"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Title == "" || req.Content == "" || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title, content and url are required",
		})
	}

	if req.Complexity < 1 || req.Complexity > 3 {
		req.Complexity = 1
	}
	if req.Source == "" {
		req.Source = "local_docs"
	}

	now := time.Now()
	doc := &models.InternalDocument{
		ID:         utils.HashString(req.URL),
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		Source:     req.Source,
		URL:        req.URL,
		Complexity: req.Complexity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.db.UpsertInternalDocument(doc); err != nil {
		logger.Error("Failed to store document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":  doc.ID,
		"url": doc.URL,
	})
}
