package main

import (
	"context"
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

	"github.com/ezextender/backend/internal/api/handlers"
	rediscache "github.com/ezextender/backend/internal/cache/redis"
	"github.com/ezextender/backend/internal/embedding"
	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/internal/evaluation"
	"github.com/ezextender/backend/internal/ingestion"
	"github.com/ezextender/backend/internal/metrics"
	"github.com/ezextender/backend/internal/middleware/ratelimit"
	"github.com/ezextender/backend/internal/middleware/security"
	"github.com/ezextender/backend/internal/middleware/validation"
	"github.com/ezextender/backend/internal/precedent"
	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/sqlite"
	"github.com/ezextender/backend/internal/vector/milvus"
	"github.com/ezextender/backend/pkg/config"
	appLogger "github.com/ezextender/backend/pkg/logger"
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

	appLogger.Info("Starting deadline extension API server")

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

	var embeddingCache *rediscache.Client
	if cfg.Redis.Enabled {
		embeddingCache, err = rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
			embeddingCache = nil
		} else {
			defer embeddingCache.Close()
		}
	}

	embedder := embedding.NewClient(
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.TimeoutSec,
		embeddingCache,
		time.Duration(cfg.Redis.TTLSec)*time.Second,
	)

	milvusClient, err := milvus.NewClient(
		context.Background(),
		cfg.Milvus.Endpoint,
		embedder,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	for _, collection := range []string{cfg.Milvus.PolicyCollection, cfg.Milvus.PrecedentCollection} {
		if err := milvusClient.EnsureCollection(context.Background(), collection); err != nil {
			appLogger.Fatal("Failed to ensure collection",
				zap.String("collection", collection),
				zap.Error(err),
			)
		}
	}

	clock := rules.SystemClock()
	if cfg.Engine.DemoNowUTC != "" {
		clock, err = rules.FrozenClock(cfg.Engine.DemoNowUTC)
		if err != nil {
			appLogger.Fatal("Invalid demo clock", zap.Error(err))
		}
		appLogger.Info("Demo clock active", zap.String("now", cfg.Engine.DemoNowUTC))
	}

	retriever := retrieval.New(milvusClient, time.Duration(cfg.Milvus.TimeoutSec)*time.Second)
	recorder := precedent.NewRecorder(milvusClient, sqliteClient, cfg.Milvus.PrecedentCollection, clock)

	decisionEngine := engine.New(retriever, recorder, sqliteClient, sqliteClient, clock, engine.Options{
		MinConfidence:       cfg.Engine.MinConfidence,
		PrecedentWeight:     cfg.Engine.PrecedentWeight,
		StrongCueThreshold:  cfg.Engine.StrongCueThreshold,
		TopK:                cfg.Engine.TopK,
		AutoApproveHours:    cfg.Engine.AutoApproveHours,
		SnippetMaxLen:       cfg.Engine.SnippetMaxLen,
		PolicyCollection:    cfg.Milvus.PolicyCollection,
		PrecedentCollection: cfg.Milvus.PrecedentCollection,
	})

	processor := ingestion.NewProcessor(
		ingestion.NewDocumentStore(),
		milvusClient,
		cfg.Milvus.PolicyCollection,
		cfg.Ingestion.ChunkSize,
		cfg.Ingestion.ChunkOverlap,
	)

	evaluator := evaluation.NewEvaluator(decisionEngine, sqliteClient, clock)

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Reviewer-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: []string{},
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	decisionHandler := handlers.NewDecisionHandler(decisionEngine)
	ingestHandler := handlers.NewIngestHandler(processor)
	evaluationHandler := handlers.NewEvaluationHandler(evaluator)
	wsHandler := handlers.NewWebSocketHandler(decisionEngine)

	api := app.Group("/api/v1")

	api.Post("/decide", decisionHandler.HandleDecide)
	api.Post("/review", decisionHandler.HandleReview)
	api.Get("/precedent/stats", decisionHandler.GetPrecedentStats)

	api.Post("/policy/documents", ingestHandler.HandleIngest)

	api.Get("/evaluation/replay", evaluationHandler.HandleReplay)

	app.Use("/api/v1/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/v1/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
