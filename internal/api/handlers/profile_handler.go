package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/internal/storage/sqlite"
	"github.com/voicetutor/backend/pkg/logger"
)

type ProfileHandler struct {
	db *sqlite.Client
}

func NewProfileHandler(db *sqlite.Client) *ProfileHandler {
	return &ProfileHandler{
		db: db,
	}
}

// UpsertProfile serves POST /users: create or update the
// personalization profile the ranker reads.
func (h *ProfileHandler) UpsertProfile(c *fiber.Ctx) error {
	var req struct {
		Username         string   `json:"username"`
		PreferredSources []string `json:"preferred_sources"`
		KnowledgeLevel   string   `json:"knowledge_level"`
		Interests        []string `json:"interests"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	switch req.KnowledgeLevel {
	case "", "beginner":
		req.KnowledgeLevel = "beginner"
	case "intermediate", "advanced":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "knowledge_level must be beginner, intermediate or advanced",
		})
	}

	user := &models.User{
		ID:               uuid.New().String(),
		Username:         req.Username,
		PreferredSources: req.PreferredSources,
		KnowledgeLevel:   req.KnowledgeLevel,
		Interests:        req.Interests,
		CreatedAt:        time.Now(),
	}

	if err := h.db.UpsertUser(user); err != nil {
		logger.Error("Failed to save user profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save user profile",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username":        user.Username,
		"knowledge_level": user.KnowledgeLevel,
	})
}

// GetProfile serves GET /users/:username.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	username := c.Params("username")

	user, err := h.db.GetUser(username)
	if err != nil {
		logger.Error("Failed to load user profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load user profile",
		})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"username":          user.Username,
		"preferred_sources": user.PreferredSources,
		"knowledge_level":   user.KnowledgeLevel,
		"interests":         user.Interests,
	})
}
