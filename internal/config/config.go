// Package config loads service configuration from config files and
// environment variables, with defaults matching the documented presets.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceConfig holds connection settings for an external HTTP service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Thresholds defines the severity bands applied to similarity scores
// (per chunk) and, scaled by 100, to the final plagiarism percentage.
type Thresholds struct {
	Critical float64 `mapstructure:"critical"`
	High     float64 `mapstructure:"high"`
	Medium   float64 `mapstructure:"medium"`
	Low      float64 `mapstructure:"low"`
}

// DetectionConfig holds the tuning knobs of the detection pipeline.
type DetectionConfig struct {
	ChunkSize           int           `mapstructure:"chunk_size"`
	ChunkOverlap        int           `mapstructure:"chunk_overlap"`
	MinChunkSize        int           `mapstructure:"min_chunk_size"`
	TopKResults         int           `mapstructure:"top_k_results"`
	MinScoreThreshold   float64       `mapstructure:"min_score_threshold"`
	MaxResultsPerSource int           `mapstructure:"max_results_per_source"`
	MaxParallelSearches int           `mapstructure:"max_parallel_searches"`
	EmbeddingDims       int           `mapstructure:"embedding_dims"`
	EmbeddingBatchSize  int           `mapstructure:"embedding_batch_size"`
	EmbedTimeout        time.Duration `mapstructure:"embed_timeout"`
	SearchTimeout       time.Duration `mapstructure:"search_timeout"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	Thresholds          Thresholds    `mapstructure:"thresholds"`
}

// Config is the root configuration for the service.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DBName   string `mapstructure:"dbname"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	MinIO struct {
		Enabled         bool   `mapstructure:"enabled"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		UseSSL          bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
	Services struct {
		Embedding ServiceConfig `mapstructure:"embedding"`
		Extractor ServiceConfig `mapstructure:"extractor"`
		Analyzer  struct {
			ServiceConfig `mapstructure:",squash"`
			Enabled       bool `mapstructure:"enabled"`
		} `mapstructure:"analyzer"`
	} `mapstructure:"services"`
	Detection DetectionConfig `mapstructure:"detection"`
}

// Chunking presets. The narrow preset (100/20/30) is the default; the
// wide preset (250/50/50) matches corpora ingested with larger chunks.
const (
	PresetNarrow = "narrow"
	PresetWide   = "wide"
)

// envBindings maps the documented environment variables onto config keys.
var envBindings = map[string]string{
	"detection.chunk_size":             "CHUNK_SIZE",
	"detection.chunk_overlap":          "CHUNK_OVERLAP",
	"detection.min_chunk_size":         "MIN_CHUNK_SIZE",
	"detection.top_k_results":          "TOP_K_RESULTS",
	"detection.min_score_threshold":    "MIN_SCORE_THRESHOLD",
	"detection.max_results_per_source": "MAX_RESULTS_PER_SOURCE",
	"detection.max_parallel_searches":  "MAX_PARALLEL_SEARCHES",
	"detection.embedding_dims":         "EMBEDDING_DIMS",
	"detection.embedding_batch_size":   "EMBEDDING_BATCH_SIZE",
	"detection.thresholds.critical":    "SIMILARITY_CRITICAL",
	"detection.thresholds.high":        "SIMILARITY_HIGH",
	"detection.thresholds.medium":      "SIMILARITY_MEDIUM",
	"detection.thresholds.low":         "SIMILARITY_LOW",
}

// Load reads configuration from an optional config.yaml in path and
// from the environment. A missing config file is not an error; every
// setting has a default.
func Load(path string) (Config, error) {
	v := viper.New()

	preset := viper.New()
	if err := preset.BindEnv("chunk_preset", "CHUNK_PRESET"); err != nil {
		return Config{}, fmt.Errorf("bind CHUNK_PRESET: %w", err)
	}
	setDefaults(v, preset.GetString("chunk_preset"))

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Detection.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, preset string) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "veriscan")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("services.embedding.base_url", "http://localhost:11434")
	v.SetDefault("services.embedding.model", "nomic-embed-text")
	v.SetDefault("services.embedding.timeout", time.Minute)
	v.SetDefault("services.extractor.base_url", "http://localhost:8070")
	v.SetDefault("services.extractor.timeout", 2*time.Minute)
	v.SetDefault("services.analyzer.enabled", false)
	v.SetDefault("services.analyzer.base_url", "http://localhost:11434")
	v.SetDefault("services.analyzer.model", "llama3.2")
	v.SetDefault("services.analyzer.timeout", time.Minute)

	chunkSize, overlap, minChunk := 100, 20, 30
	if preset == PresetWide {
		chunkSize, overlap, minChunk = 250, 50, 50
	}
	v.SetDefault("detection.chunk_size", chunkSize)
	v.SetDefault("detection.chunk_overlap", overlap)
	v.SetDefault("detection.min_chunk_size", minChunk)
	v.SetDefault("detection.top_k_results", 10)
	v.SetDefault("detection.min_score_threshold", 0.50)
	v.SetDefault("detection.max_results_per_source", 3)
	v.SetDefault("detection.max_parallel_searches", runtime.GOMAXPROCS(0))
	v.SetDefault("detection.embedding_dims", 768)
	v.SetDefault("detection.embedding_batch_size", 32)
	v.SetDefault("detection.embed_timeout", time.Minute)
	v.SetDefault("detection.search_timeout", 10*time.Second)
	v.SetDefault("detection.request_timeout", 5*time.Minute)
	v.SetDefault("detection.thresholds.critical", 0.95)
	v.SetDefault("detection.thresholds.high", 0.85)
	v.SetDefault("detection.thresholds.medium", 0.70)
	v.SetDefault("detection.thresholds.low", 0.50)
}

// Validate checks the detection parameters for internal consistency.
func (d DetectionConfig) Validate() error {
	if d.ChunkSize <= 0 || d.MinChunkSize <= 0 {
		return fmt.Errorf("config: chunk sizes must be positive")
	}
	if d.ChunkOverlap < 0 || d.ChunkOverlap >= d.ChunkSize {
		return fmt.Errorf("config: chunk_overlap must be in [0, chunk_size)")
	}
	if d.MinChunkSize > d.ChunkSize {
		return fmt.Errorf("config: min_chunk_size must not exceed chunk_size")
	}
	if d.TopKResults <= 0 {
		return fmt.Errorf("config: top_k_results must be positive")
	}
	if d.MinScoreThreshold < 0 || d.MinScoreThreshold > 1 {
		return fmt.Errorf("config: min_score_threshold must be in [0,1]")
	}
	if d.EmbeddingDims <= 0 {
		return fmt.Errorf("config: embedding_dims must be positive")
	}
	t := d.Thresholds
	if !(t.Low <= t.Medium && t.Medium <= t.High && t.High <= t.Critical) {
		return fmt.Errorf("config: severity thresholds must be ascending")
	}
	return nil
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
