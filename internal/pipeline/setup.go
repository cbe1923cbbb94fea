package pipeline

import (
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/cache"
	"github.com/book-expert/presentation-service/internal/config"
	"github.com/book-expert/presentation-service/internal/llm"
	"github.com/book-expert/presentation-service/internal/presentation"
	"github.com/book-expert/presentation-service/internal/speech"
)

// NewFromConfig wires a Pipeline and its cache from cfg. Every model backend the configuration can
// serve is made available.
func NewFromConfig(cfg *config.Config, log *logger.Logger) (*Pipeline, *cache.Cache, error) {
	strategy, err := presentation.ParseStrategy(cfg.Speech.DefaultStrategy)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid default strategy: %w", err)
	}

	store := cache.New(cfg.Cache.Dir, log)
	settings := Settings{
		DefaultStrategy: strategy,
		Limits: speech.Limits{
			DetailLimit:     cfg.Speech.DetailLimit,
			DetailsPerPoint: cfg.Speech.DetailsPerPoint,
			PointsPerSlide:  cfg.Speech.PointsPerSlide,
		},
		OutputDir: cfg.Paths.OutputDir,
	}

	return New(llm.NewAll(cfg.LLM), store, log, settings), store, nil
}
