// cmd/worker drives the cultivation orchestrator's germinate/prune phases
// on a wall-clock ticker, for deployments where the knowledge base is fed
// by batch PDF ingestion rather than an interactive chat session — there is
// no "turn" counter to hang a cadence off in that mode, so §6 specifies a
// time-based cadence instead.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/offis-rit/epistemic-core/internal/config"
	"github.com/offis-rit/epistemic-core/internal/persistence"
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

	go logEvents(bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	germinateTicker := time.NewTicker(time.Duration(cfg.GerminateIntervalSeconds) * time.Second)
	defer germinateTicker.Stop()
	pruneTicker := time.NewTicker(time.Duration(cfg.PruneIntervalSeconds) * time.Second)
	defer pruneTicker.Stop()

	logger.Info("Worker started", "germinate_interval_s", cfg.GerminateIntervalSeconds, "prune_interval_s", cfg.PruneIntervalSeconds)

	for {
		select {
		case <-ctx.Done():
			if err := persistence.Save(store, cfg.KBPath); err != nil {
				logger.Error("Failed to save knowledge base on shutdown", "err", err)
			}
			logger.Info("Worker shutting down")
			return
		case <-germinateTicker.C:
			orch.Germinate()
			if err := persistence.Save(store, cfg.KBPath); err != nil {
				logger.Error("Failed to save knowledge base after germinate", "err", err)
			}
		case <-pruneTicker.C:
			faded := orch.Prune()
			if len(faded) > 0 {
				logger.Info("Pruned concepts into fading state", "count", len(faded))
			}
			if err := persistence.Save(store, cfg.KBPath); err != nil {
				logger.Error("Failed to save knowledge base after prune", "err", err)
			}
		}
	}
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

func logEvents(bus *events.Bus) {
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	for e := range ch {
		logger.Debug("cultivation event", "kind", e.Kind)
	}
}
