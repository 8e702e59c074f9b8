package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/config"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/engine"
	"github.com/aniquiz/aniquiz/internal/core/fetch"
	"github.com/aniquiz/aniquiz/internal/core/probe"
	"github.com/aniquiz/aniquiz/internal/core/store"
)

// quizStack wires the transport, governor, cache and assembler for one
// process. Close releases the cache backend and stops the governor timer.
type quizStack struct {
	Store     *store.Store
	Cache     fetch.Cache
	Governor  *engine.Governor
	Executor  *engine.Executor
	Fetch     *fetch.Service
	Assembler *engine.Assembler

	closers []func() error
}

func (s *quizStack) Close() {
	if s.Governor != nil {
		s.Governor.Stop()
	}
	for _, closeFn := range s.closers {
		_ = closeFn() // nolint:errcheck // best-effort cleanup
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// openCache opens the cache backend selected by store.driver.
func openCache(ctx context.Context, cfg *config.Config) (fetch.Cache, func() error, error) {
	if cfg.Store.Driver == store.DriverRedis {
		cache, err := store.OpenRedis(ctx, cfg.Store)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		return cache, cache.Close, nil
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

func buildQuizStack(ctx context.Context, cfg *config.Config, logger *logging.Logger, useCache bool) (*quizStack, error) {
	stack := &quizStack{}

	if useCache {
		cache, closeFn, err := openCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		stack.Cache = cache
		stack.closers = append(stack.closers, closeFn)
		if db, ok := cache.(*store.Store); ok {
			stack.Store = db
		}
	}

	client := &anilist.Client{
		Endpoint:  cfg.AniList.Endpoint,
		UserAgent: cfg.AniList.UserAgent,
	}
	if cfg.AniList.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.AniList.Timeout}
	}

	stack.Governor = &engine.Governor{
		Budget: engine.Budget{
			MaxPerMinute: cfg.AniList.MaxPerMinute,
			LowWaterMark: cfg.AniList.LowWaterMark,
			Window:       cfg.AniList.Window,
			HeaderOffset: cfg.AniList.HeaderOffset,
			ResetBuffer:  cfg.AniList.ResetBuffer,
		},
		Prober: &probe.HTTPProber{URL: cfg.AniList.ProbeURL},
	}

	stack.Executor = &engine.Executor{
		Transport: client,
		Governor:  stack.Governor,
		Logger:    logger,
	}

	stack.Fetch = &fetch.Service{
		Executor: stack.Executor,
		Cache:    stack.Cache,
		Logger:   logger,
	}

	stack.Assembler = &engine.Assembler{
		Fetcher:     stack.Fetch,
		Tiers:       tiersFromConfig(cfg.Quiz.Tiers),
		MaxAttempts: cfg.Quiz.MaxAttempts,
		Logger:      logger,
	}

	return stack, nil
}

func tiersFromConfig(tiers map[string]config.TierConfig) map[core.Difficulty]engine.DifficultyTier {
	if len(tiers) == 0 {
		return nil
	}
	out := make(map[core.Difficulty]engine.DifficultyTier, len(tiers))
	for name, tier := range tiers {
		out[core.Difficulty(name)] = engine.DifficultyTier{
			Base:      tier.Base,
			Increment: tier.Increment,
		}
	}
	return out
}
