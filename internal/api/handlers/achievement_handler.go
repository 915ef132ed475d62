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

type AchievementHandler struct {
	db *sqlite.Client
}

func NewAchievementHandler(db *sqlite.Client) *AchievementHandler {
	return &AchievementHandler{
		db: db,
	}
}

func (h *AchievementHandler) CreateAchievement(c *fiber.Ctx) error {
	var req struct {
		Username    string `json:"username"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Date        string `json:"date"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and title are required",
		})
	}

	achievement := &models.Achievement{
		ID:          uuid.New().String(),
		Username:    req.Username,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		CreatedAt:   time.Now(),
	}

	if err := h.db.InsertAchievement(achievement); err != nil {
		logger.Error("Failed to save achievement", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save achievement",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       achievement.ID,
		"username": achievement.Username,
		"title":    achievement.Title,
	})
}

func (h *AchievementHandler) ListAchievements(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	achievements, err := h.db.GetAchievements(username)
	if err != nil {
		logger.Error("Failed to load achievements", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load achievements",
		})
	}

	out := make([]fiber.Map, 0, len(achievements))
	for _, a := range achievements {
		out = append(out, fiber.Map{
			"id":          a.ID,
			"username":    a.Username,
			"title":       a.Title,
			"description": a.Description,
			"date":        a.Date,
			"created_at":  a.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"achievements": out})
}
