// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package api exposes the recommendation engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/config"
	"github.com/karasawa/shiori/internal/recommend"
)

// ContentWriter ingests catalog items. The storage layer implements it.
type ContentWriter interface {
	PutContent(ctx context.Context, item *recommend.ContentItem) error
}

// Server is the HTTP front end.
type Server struct {
	config  config.ServerConfig
	logger  zerolog.Logger
	engine  *recommend.Engine
	catalog ContentWriter
	http    *http.Server
}

// NewServer builds the router and listener.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewServer(cfg config.ServerConfig, engine *recommend.Engine, catalog ContentWriter, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger.With().Str("component", "api").Logger(),
		engine:  engine,
		catalog: catalog,
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// routes assembles the middleware stack and route tree.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	if s.config.RateLimit > 0 {
		r.Use(newRateLimiter(s.config.RateLimit, s.config.RateBurst).middleware)
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", s.handleRecommend)
		r.Post("/discoveries", s.handleDiscover)
		r.Post("/discoveries/response", s.handleDiscoveryResponse)
		r.Post("/feedback", s.handleFeedback)
		r.Post("/sessions", s.handleSession)
		r.Post("/assessments", s.handleAssessment)
		r.Put("/content", s.handlePutContent)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/patterns", s.handlePatterns)
			r.Get("/preferences", s.handleTransparency)
			r.Post("/evolution", s.handleEvolution)
		})
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
