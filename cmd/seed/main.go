package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	rediscache "github.com/ezextender/backend/internal/cache/redis"
	"github.com/ezextender/backend/internal/embedding"
	"github.com/ezextender/backend/internal/precedent"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/sqlite"
	"github.com/ezextender/backend/internal/vector/milvus"
	"github.com/ezextender/backend/pkg/config"
	appLogger "github.com/ezextender/backend/pkg/logger"
)

type seedCase struct {
	reason  string
	outcome string
}

// The starter precedent set. Deliberately small and balanced so demo
// queries land near obvious neighbors.
var seedCases = []seedCase{
	{"My grandfather passed away", "allow"},
	{"Death in the family, need time for funeral", "allow"},
	{"Cold/flu for two days", "deny"},
	{"Common cold, minor symptoms", "deny"},
	{"Hospitalized for surgery, recovery expected 1 week", "allow"},
}

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

	ctx := context.Background()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
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

	milvusClient, err := milvus.NewClient(ctx, cfg.Milvus.Endpoint, embedder, cfg.Milvus.VectorDim)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(ctx, cfg.Milvus.PrecedentCollection); err != nil {
		appLogger.Fatal("Failed to ensure precedent collection", zap.Error(err))
	}

	recorder := precedent.NewRecorder(milvusClient, sqliteClient, cfg.Milvus.PrecedentCollection, rules.SystemClock())

	seeded := 0
	for _, sc := range seedCases {
		pc, err := recorder.Record(ctx, precedent.ReviewInput{
			RawText:  sc.reason,
			Outcome:  sc.outcome,
			Reviewer: "seed",
		})
		if err != nil {
			appLogger.Fatal("Failed to seed precedent case",
				zap.String("reason", sc.reason),
				zap.Error(err),
			)
		}
		appLogger.Info("Seeded precedent case",
			zap.String("case_id", pc.ID),
			zap.String("tag", pc.Tag),
			zap.String("outcome", pc.Outcome),
		)
		seeded++
	}

	appLogger.Info("Seeding complete", zap.Int("cases", seeded))
}
