// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Command server runs the Shiori recommendation service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/api"
	"github.com/karasawa/shiori/internal/cache"
	"github.com/karasawa/shiori/internal/config"
	"github.com/karasawa/shiori/internal/logging"
	"github.com/karasawa/shiori/internal/recommend"
	"github.com/karasawa/shiori/internal/recommend/assessment"
	"github.com/karasawa/shiori/internal/recommend/discovery"
	"github.com/karasawa/shiori/internal/recommend/feedback"
	"github.com/karasawa/shiori/internal/recommend/reranking"
	"github.com/karasawa/shiori/internal/recommend/retrieval"
	"github.com/karasawa/shiori/internal/recommend/scoring"
	"github.com/karasawa/shiori/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("loading configuration")
	}

	logging.Init(cfg.Logging)
	logger := logging.Logger()

	store, err := storage.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening storage")
	}
	defer store.Close()

	cachedCatalog := cache.NewCatalog(store, time.Minute)

	engine, err := buildEngine(&cfg.Recommend, store, cachedCatalog, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("building engine")
	}

	writer := contentWriter{store: store, cache: cachedCatalog}
	server := api.NewServer(cfg.Server, engine, writer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown incomplete")
			os.Exit(1)
		}
	}
}

// buildEngine wires the storage collaborators, cached and
// breaker-wrapped, into the engine's components.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func buildEngine(cfg *recommend.Config, store *storage.Store, cached *cache.Catalog, logger zerolog.Logger) (*recommend.Engine, error) {
	catalog := recommend.WrapCatalog(cached, cfg.Breaker, logger)
	behaviors := recommend.WrapBehaviors(store, cfg.Breaker, logger)
	profiles := recommend.WrapProfiles(store, cfg.Breaker, logger)

	deps := recommend.Deps{
		Profiles:    profiles,
		Behaviors:   behaviors,
		Catalog:     catalog,
		Discoveries: store,

		Retriever: retrieval.NewRetriever(cfg, catalog, behaviors, store, logger),
		Scorer:    scoring.NewScorer(cfg, logger),
		Discovery: discovery.NewEvaluator(cfg, behaviors, catalog, cached, logger),
		Feedback:  feedback.NewProcessor(cfg, profiles, behaviors, catalog, logger),
		Assessor:  assessment.NewAssessor(cfg, profiles, logger),

		StandardReranker:  reranking.NewDiversity(cfg),
		DiscoveryReranker: reranking.NewDiscoveryDiversity(cfg),
	}

	return recommend.NewEngine(cfg, deps, logger)
}

// contentWriter ingests catalog items and drops any stale cache entry
// for them.
type contentWriter struct {
	store *storage.Store
	cache *cache.Catalog
}

func (w contentWriter) PutContent(ctx context.Context, item *recommend.ContentItem) error {
	if err := w.store.PutContent(ctx, item); err != nil {
		return err
	}
	w.cache.Invalidate(item.ID)
	return nil
}
