package main

import (
	"github.com/offis-rit/epistemic-core/internal/config"
	"github.com/offis-rit/epistemic-core/internal/persistence"
	"github.com/offis-rit/epistemic-core/internal/server"
	"github.com/offis-rit/epistemic-core/internal/util"
	"github.com/offis-rit/epistemic-core/pkg/cultivate"
	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/embed/ollama"
	"github.com/offis-rit/epistemic-core/pkg/embed/openai"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/infer"
	"github.com/offis-rit/epistemic-core/pkg/kb"
	"github.com/offis-rit/epistemic-core/pkg/logger"
	"github.com/offis-rit/epistemic-core/pkg/logger/console"
)

func main() {
	debug := util.GetEnvBool("DEBUG", false)
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: debug}))

	cfg, err := config.Load(util.GetEnvString("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Fatal("Failed to load configuration", "err", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		logger.Fatal("Failed to construct embedding backend", "err", err)
	}

	store := kb.NewStore(kb.Config{
		MergeThreshold:              cfg.MergeThreshold,
		QueryThreshold:              cfg.QueryThreshold,
		DecayRate:                   cfg.DecayRate,
		DormantThreshold:            cfg.DormantThreshold,
		FadingThreshold:             cfg.FadingThreshold,
		ArchiveAfterTicks:           cfg.ArchiveAfterTicks,
		EvidentialHorizon:           cfg.EvidentialHorizon,
		InitialConfidence:           cfg.InitialConfidence,
		QuestionEnergyThreshold:     cfg.QuestionEnergyThreshold,
		QuestionConfidenceThreshold: cfg.QuestionConfidenceThreshold,
	})

	if err := persistence.Load(store, cfg.KBPath); err != nil {
		logger.Fatal("Failed to load knowledge base from disk", "path", cfg.KBPath, "err", err)
	}

	bus := events.NewBus(cfg.EventBufferSize)

	orch := cultivate.New(store, embedder, bus, cultivate.Config{
		GerminateEveryTurns:     cfg.GerminateEveryTurns,
		PruneEveryTurns:         cfg.PruneEveryTurns,
		QuestionsPerGermination: cfg.QuestionsPerGermination,
		Infer: infer.Config{
			EnergyThreshold: cfg.InferEnergyThreshold,
			MinConfidence:   cfg.InferMinConfidence,
			MaxPerCycle:     cfg.InferMaxPerCycle,
		},
	})

	go persistOnCompletion(store, bus, cfg.KBPath)

	server.Init(server.Deps{
		Store:    store,
		Embedder: embedder,
		Bus:      bus,
		Orch:     orch,
		Cfg:      cfg,
		ReadyFn:  func() bool { return true },
	})
}

func buildEmbedder(cfg config.Config) (embed.Embedder, error) {
	switch cfg.EmbeddingBackend {
	case config.BackendOpenAI:
		return openai.New(openai.Params{
			Model:     cfg.EmbeddingModel,
			BaseURL:   cfg.EmbeddingBaseURL,
			APIKey:    cfg.EmbeddingAPIKey,
			Dimension: cfg.EmbeddingDim,
		}), nil
	default:
		return ollama.New(ollama.Params{
			Model:     cfg.EmbeddingModel,
			BaseURL:   cfg.EmbeddingBaseURL,
			Dimension: cfg.EmbeddingDim,
		})
	}
}

// persistOnCompletion saves the knowledge base to disk every time the
// orchestrator finishes a turn or a PDF ingestion, mirroring the original
// implementation's save-after-every-message behaviour.
func persistOnCompletion(store *kb.Store, bus *events.Bus, path string) {
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	for e := range ch {
		if e.Kind != events.KindCompleted {
			continue
		}
		if err := persistence.Save(store, path); err != nil {
			logger.Error("Failed to save knowledge base", "path", path, "err", err)
		}
	}
}
