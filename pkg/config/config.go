package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Milvus    MilvusConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Engine    EngineConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type MilvusConfig struct {
	Endpoint            string
	APIKey              string
	PolicyCollection    string
	PrecedentCollection string
	VectorDim           int
	TimeoutSec          int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type EmbeddingConfig struct {
	APIKey     string
	Model      string
	Dim        int
	TimeoutSec int
}

type EngineConfig struct {
	MinConfidence      float64
	PrecedentWeight    float64
	StrongCueThreshold float64
	TopK               int
	AutoApproveHours   float64
	SnippetMaxLen      int
	DemoNowUTC         string
}

type IngestionConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ezextender")

	viper.SetEnvPrefix("EZEXTENDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/ezextender.db")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.policyCollection", "PolicyDoc")
	viper.SetDefault("milvus.precedentCollection", "PrecedentCases")
	viper.SetDefault("milvus.vectorDim", 1536)
	viper.SetDefault("milvus.timeoutSec", 5)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 86400)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dim", 1536)
	viper.SetDefault("embedding.timeoutSec", 15)

	viper.SetDefault("engine.minConfidence", 0.60)
	viper.SetDefault("engine.precedentWeight", 0.35)
	viper.SetDefault("engine.strongCueThreshold", 0.58)
	viper.SetDefault("engine.topK", 5)
	viper.SetDefault("engine.autoApproveHours", 48)
	viper.SetDefault("engine.snippetMaxLen", 300)
	viper.SetDefault("engine.demoNowUTC", "")

	viper.SetDefault("ingestion.chunkSize", 1400)
	viper.SetDefault("ingestion.chunkOverlap", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
