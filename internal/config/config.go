// Package config loads and validates the process-wide configuration: an
// optional .env for secrets and endpoint URLs, a YAML file for the tunables
// of the knowledge base, orchestrator and ingestion pipeline.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/offis-rit/epistemic-core/internal/util"
	"github.com/offis-rit/epistemic-core/pkg/logger"
)

// EmbeddingBackend selects which pkg/embed implementation cmd/server and
// cmd/worker construct at startup.
type EmbeddingBackend string

const (
	BackendOllama EmbeddingBackend = "ollama"
	BackendOpenAI EmbeddingBackend = "openai"
)

// Config is the merged, validated configuration for both binaries.
type Config struct {
	// Store tunables, §6.
	MergeThreshold    float64 `yaml:"merge_threshold" validate:"gte=0,lte=1"`
	QueryThreshold    float64 `yaml:"query_threshold" validate:"gte=0,lte=1"`
	DecayRate         float64 `yaml:"decay_rate" validate:"gte=0,lte=1"`
	DormantThreshold  float64 `yaml:"dormant_threshold" validate:"gte=0,lte=1"`
	FadingThreshold   float64 `yaml:"fading_threshold" validate:"gte=0,lte=1"`
	ArchiveAfterTicks int     `yaml:"archive_after_ticks" validate:"gte=1"`
	EvidentialHorizon float64 `yaml:"evidential_horizon" validate:"gt=0"`
	InitialConfidence float64 `yaml:"initial_confidence" validate:"gte=0,lt=1"`

	// Germinate phase selection, §4.E.
	QuestionEnergyThreshold     float64 `yaml:"question_energy_threshold" validate:"gte=0,lte=1"`
	QuestionConfidenceThreshold float64 `yaml:"question_confidence_threshold" validate:"gte=0,lt=1"`

	// Ingestion tunables, §4.F/§5.
	ChunkSize     int `yaml:"chunk_size" validate:"gte=1"`
	EmbeddingDim  int `yaml:"embedding_dim" validate:"gte=1"`
	IngestWorkers int `yaml:"ingest_workers" validate:"gte=1"`

	// Event bus, §5.
	EventBufferSize int `yaml:"event_buffer_size" validate:"gte=1"`

	// Cultivation cadence, §6.
	GerminateEveryTurns     int `yaml:"germinate_every_turns" validate:"gte=1"`
	PruneEveryTurns         int `yaml:"prune_every_turns" validate:"gte=1"`
	QuestionsPerGermination int `yaml:"questions_per_germination" validate:"gte=1"`
	// GerminateIntervalSeconds/PruneIntervalSeconds drive cmd/worker's
	// wall-clock ticker, since there is no "turn" concept outside a chat
	// session.
	GerminateIntervalSeconds int `yaml:"germinate_interval_seconds" validate:"gte=1"`
	PruneIntervalSeconds     int `yaml:"prune_interval_seconds" validate:"gte=1"`

	// Inference tunables, §4.D.
	InferEnergyThreshold float64 `yaml:"infer_energy_threshold" validate:"gte=0,lte=1"`
	InferMinConfidence   float64 `yaml:"infer_min_confidence" validate:"gte=0,lt=1"`
	InferMaxPerCycle     int     `yaml:"infer_max_per_cycle" validate:"gte=1"`

	// EmbeddingBackend and its endpoint/secret come from the environment,
	// never the YAML file.
	EmbeddingBackend EmbeddingBackend `yaml:"-" validate:"oneof=ollama openai"`
	EmbeddingModel   string           `yaml:"-" validate:"required"`
	EmbeddingBaseURL string           `yaml:"-" validate:"required"`
	EmbeddingAPIKey  string           `yaml:"-"`

	// HTTPAddr is cmd/server's bind address.
	HTTPAddr string `yaml:"-" validate:"required"`

	// KBPath is where the knowledge base is loaded from at startup and
	// saved to after each completed ingestion.
	KBPath string `yaml:"kb_path" validate:"required"`
}

// Default returns a Config carrying every §6/§9-documented default, before
// YAML overrides and environment secrets are merged in.
func Default() Config {
	return Config{
		MergeThreshold:    0.90,
		QueryThreshold:    0.35,
		DecayRate:         0.05,
		DormantThreshold:  0.5,
		FadingThreshold:   0.2,
		ArchiveAfterTicks: 5,
		EvidentialHorizon: 1.0,
		InitialConfidence: 0.6,

		QuestionEnergyThreshold:     0.4,
		QuestionConfidenceThreshold: 0.5,

		ChunkSize:     2000,
		EmbeddingDim:  768,
		IngestWorkers: runtime.NumCPU(),

		EventBufferSize: 256,

		GerminateEveryTurns:      2,
		PruneEveryTurns:          10,
		QuestionsPerGermination:  3,
		GerminateIntervalSeconds: 120,
		PruneIntervalSeconds:     600,

		InferEnergyThreshold: 0.3,
		InferMinConfidence:   0.05,
		InferMaxPerCycle:     50,

		EmbeddingBackend: BackendOllama,
		HTTPAddr:         ":8080",
		KBPath:           "data/kb.json",
	}
}

// Load reads .env (if present) into the process environment, then merges a
// YAML file's tunables and the environment's secrets onto Default(),
// validating the result. A malformed config aborts startup — it is a
// precondition violation, never a runtime event.
func Load(yamlPath string) (Config, error) {
	util.LoadEnv()

	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
	}

	if backend := util.GetEnvString("EMBEDDING_BACKEND", string(cfg.EmbeddingBackend)); backend != "" {
		cfg.EmbeddingBackend = EmbeddingBackend(backend)
	}
	cfg.EmbeddingModel = util.GetEnvString("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingBaseURL = util.GetEnvString("EMBEDDING_BASE_URL", cfg.EmbeddingBaseURL)
	cfg.EmbeddingAPIKey = util.GetEnv("EMBEDDING_API_KEY")
	cfg.HTTPAddr = util.GetEnvString("HTTP_ADDR", cfg.HTTPAddr)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	logger.Debug("configuration loaded", "embedding_backend", cfg.EmbeddingBackend, "chunk_size", cfg.ChunkSize)
	return cfg, nil
}
