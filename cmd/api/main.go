package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/api/handlers"
	"github.com/voicetutor/backend/internal/cache"
	"github.com/voicetutor/backend/internal/cache/memory"
	"github.com/voicetutor/backend/internal/cache/redis"
	"github.com/voicetutor/backend/internal/jobs"
	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/internal/knowledge/sources/connector"
	"github.com/voicetutor/backend/internal/knowledge/sources/internaldocs"
	"github.com/voicetutor/backend/internal/knowledge/sources/wikipedia"
	"github.com/voicetutor/backend/internal/llm"
	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/internal/middleware/ratelimit"
	"github.com/voicetutor/backend/internal/middleware/security"
	"github.com/voicetutor/backend/internal/middleware/validation"
	"github.com/voicetutor/backend/internal/personalization"
	"github.com/voicetutor/backend/internal/query"
	"github.com/voicetutor/backend/internal/storage/sqlite"
	"github.com/voicetutor/backend/internal/summary"
	"github.com/voicetutor/backend/pkg/config"
	appLogger "github.com/voicetutor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Voice Tutor API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheStore cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cacheStore = redisClient
	} else {
		cacheStore = memory.NewStore(time.Duration(cfg.Cache.KnowledgeTTLSec) * time.Second)
		appLogger.Info("Redis disabled, using in-process cache")
	}

	wikiClient := wikipedia.NewClient(
		cfg.Wikipedia.BaseURL,
		cfg.Wikipedia.Language,
		cfg.Wikipedia.UserAgent,
		time.Duration(cfg.Wikipedia.TimeoutSec)*time.Second,
	)

	fetchers := []internaldocs.Fetcher{
		internaldocs.NewLocalFetcher("local_docs", sqliteClient),
	}
	for _, src := range cfg.InternalDocs.WebSources {
		fetchers = append(fetchers, internaldocs.NewWebFetcher(src.Name, src.IndexURL))
	}
	if cfg.InternalDocs.JSONSource.URL != "" {
		fetchers = append(fetchers, internaldocs.NewJSONFetcher(cfg.InternalDocs.JSONSource.Name, cfg.InternalDocs.JSONSource.URL))
	}

	docStore := internaldocs.NewStore(fetchers, time.Duration(cfg.Cache.DocsTTLSec)*time.Second)
	docSearcher := internaldocs.NewSearcher(docStore, cfg.InternalDocs.MaxResults)

	adapters := []knowledge.SourceAdapter{
		wikiClient,
		internaldocs.NewAdapter(docSearcher),
	}
	for _, cc := range cfg.Connectors {
		adapters = append(adapters, connector.NewClient(cc.Name, cc.BaseURL, cc.APIKey, time.Duration(cc.TimeoutSec)*time.Second))
	}

	aggregator := knowledge.NewAggregator(adapters)
	ranker := personalization.NewRanker()

	llmClient := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	queryEngine := query.NewEngine(
		cacheStore,
		aggregator,
		ranker,
		wikiClient,
		docSearcher,
		sqliteClient,
		time.Duration(cfg.Cache.KnowledgeTTLSec)*time.Second,
		cfg.Cache.KeyQueryLimit,
	)

	orchestrator := summary.NewOrchestrator(sqliteClient, llmClient)

	var weeklyJob *jobs.WeeklySummaryJob
	if cfg.Summary.ScheduleEnabled {
		weeklyJob, err = jobs.NewWeeklySummaryJob(orchestrator, time.Weekday(cfg.Summary.Weekday), cfg.Summary.Hour)
		if err != nil {
			appLogger.Fatal("Failed to create weekly summary job", zap.Error(err))
		}
		weeklyJob.Start()
		appLogger.Info("Weekly summary job scheduled",
			zap.Int("weekday", cfg.Summary.Weekday),
			zap.Int("hour", cfg.Summary.Hour),
		)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer limiter.Stop()

	knowledgeHandler := handlers.NewKnowledgeHandler(queryEngine)
	historyHandler := handlers.NewHistoryHandler(sqliteClient)
	summaryHandler := handlers.NewSummaryHandler(orchestrator)
	achievementHandler := handlers.NewAchievementHandler(sqliteClient)
	documentHandler := handlers.NewDocumentHandler(sqliteClient)
	profileHandler := handlers.NewProfileHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(queryEngine)

	api := app.Group("/api/v1")
	api.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	api.Get("/knowledge", limiter.Middleware(), knowledgeHandler.HandleKnowledge)

	api.Post("/interactions", historyHandler.CreateInteraction)
	api.Get("/interactions/recent", historyHandler.RecentInteractions)

	api.Get("/summaries/weekly/:username", summaryHandler.WeeklySummary)

	api.Post("/achievements", achievementHandler.CreateAchievement)
	api.Get("/achievements", achievementHandler.ListAchievements)

	api.Post("/documents", documentHandler.UploadDocument)

	api.Post("/users", profileHandler.UpsertProfile)
	api.Get("/users/:username", profileHandler.GetProfile)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := sqliteClient.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/agent", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if weeklyJob != nil {
		if err := weeklyJob.Stop(); err != nil {
			appLogger.Warn("Failed to stop weekly summary job", zap.Error(err))
		}
	}
	app.Shutdown()
	appLogger.Info("Server stopped")
}
