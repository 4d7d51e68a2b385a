// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package retrieval selects candidate content for scoring, applying the
// exclusion and reading-level gates of the requested policy.
package retrieval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

// Retriever implements recommend.CandidateRetriever.
type Retriever struct {
	config      *recommend.Config
	logger      zerolog.Logger
	catalog     recommend.ContentCatalog
	behaviors   recommend.BehaviorStore
	discoveries recommend.DiscoveryLog
}

// NewRetriever creates a candidate retriever.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewRetriever(cfg *recommend.Config, catalog recommend.ContentCatalog, behaviors recommend.BehaviorStore, discoveries recommend.DiscoveryLog, logger zerolog.Logger) *Retriever {
	return &Retriever{
		config:      cfg,
		logger:      logger.With().Str("component", "retrieval").Logger(),
		catalog:     catalog,
		behaviors:   behaviors,
		discoveries: discoveries,
	}
}

// Retrieve returns analyzed, level-gated candidates for the user.
//
// Standard policy excludes content the user already completed and gates
// to the comfortable band around their level. Discovery policy excludes
// everything the user has read plus recently emitted discoveries, and
// allows an upward stretch above the band.
func (r *Retriever) Retrieve(ctx context.Context, profile *recommend.UserProfile, lang recommend.Language, policy recommend.RetrievalPolicy) ([]recommend.ContentItem, error) {
	exclude, err := r.exclusions(ctx, profile.UserID, policy)
	if err != nil {
		return nil, err
	}

	items, err := r.catalog.Query(ctx, recommend.CatalogQuery{
		Language:        lang,
		ExcludeIDs:      exclude,
		RequireAnalysis: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	lo, hi := r.levelWindow(profile, lang, policy)

	gated := items[:0]
	for i := range items {
		if d := items[i].DifficultyFor(lang); d >= lo && d <= hi {
			gated = append(gated, items[i])
		}
	}

	r.logger.Debug().
		Str("user_id", profile.UserID).
		Str("policy", policy.String()).
		Int("excluded", len(exclude)).
		Int("fetched", len(items)).
		Int("gated", len(gated)).
		Msg("candidates retrieved")

	return gated, nil
}

// exclusions builds the content-id set the policy removes from the pool.
func (r *Retriever) exclusions(ctx context.Context, userID string, policy recommend.RetrievalPolicy) (map[string]struct{}, error) {
	sessions, err := r.behaviors.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	exclude := make(map[string]struct{}, len(sessions))
	for i := range sessions {
		if policy == recommend.PolicyDiscovery || sessions[i].CompletionRate > r.config.Gating.CompletedThreshold {
			exclude[sessions[i].ContentID] = struct{}{}
		}
	}

	if policy == recommend.PolicyDiscovery {
		recent, err := r.discoveries.RecentIDs(ctx, userID, r.config.Discovery.ExclusionWindow)
		if err != nil {
			return nil, fmt.Errorf("load recent discoveries: %w", err)
		}
		for id := range recent {
			exclude[id] = struct{}{}
		}
	}

	return exclude, nil
}

// levelWindow returns the difficulty band the policy permits. Discovery
// stretches the ceiling upward; the floor stays at the standard band so
// discoveries never bottom out on trivial content.
func (r *Retriever) levelWindow(profile *recommend.UserProfile, lang recommend.Language, policy recommend.RetrievalPolicy) (lo, hi float64) {
	level := profile.Level(lang).Level

	band, stretch := r.config.Gating.EnglishBand, r.config.Gating.EnglishStretch
	if lang == recommend.LanguageJapanese {
		band, stretch = r.config.Gating.JapaneseBand, r.config.Gating.JapaneseStretch
	}

	lo = lang.ClampLevel(level - band)
	if policy == recommend.PolicyDiscovery {
		hi = lang.ClampLevel(level + stretch)
	} else {
		hi = lang.ClampLevel(level + band)
	}
	return lo, hi
}
