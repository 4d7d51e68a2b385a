// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package discovery scores candidates for bounded divergence: content
// deliberately outside the user's established patterns, kept reachable
// through bridging topics and accessibility bounds.
package discovery

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

// Evaluator implements recommend.DiscoveryEvaluator.
type Evaluator struct {
	config     *recommend.Config
	logger     zerolog.Logger
	behaviors  recommend.BehaviorStore
	catalog    recommend.ContentCatalog
	vocabulary recommend.TopicVocabulary
}

// NewEvaluator creates a discovery evaluator.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewEvaluator(cfg *recommend.Config, behaviors recommend.BehaviorStore, catalog recommend.ContentCatalog, vocabulary recommend.TopicVocabulary, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		config:     cfg,
		logger:     logger.With().Str("component", "discovery").Logger(),
		behaviors:  behaviors,
		catalog:    catalog,
		vocabulary: vocabulary,
	}
}

// Patterns summarizes the user's established behavior from their recent
// sessions and learned topic weights.
func (e *Evaluator) Patterns(ctx context.Context, profile *recommend.UserProfile, lang recommend.Language) (*recommend.UserPatterns, error) {
	sessions, err := e.behaviors.ByUser(ctx, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if window := e.config.Discovery.PatternWindow; len(sessions) > window {
		sessions = sessions[:window]
	}

	established := make(map[string]struct{})
	for i := range profile.Topics {
		if profile.Topics[i].Weight > e.config.Discovery.EstablishedWeight {
			established[profile.Topics[i].Topic] = struct{}{}
		}
	}

	typeCounts, comfort, err := e.sessionAggregates(ctx, sessions, lang)
	if err != nil {
		return nil, err
	}

	patterns := &recommend.UserPatterns{
		EstablishedTopics:       established,
		EstablishedContentTypes: topTypes(typeCounts, e.config.Discovery.EstablishedTypes),
		ComfortZone:             comfort,
	}

	if err := e.fillUnexplored(ctx, patterns); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("user_id", profile.UserID).
		Int("established_topics", len(patterns.EstablishedTopics)).
		Int("established_types", len(patterns.EstablishedContentTypes)).
		Int("comfort_sessions", comfort.Count).
		Msg("user patterns built")

	return patterns, nil
}

// Evaluate scores one candidate for bounded divergence.
func (e *Evaluator) Evaluate(ctx context.Context, patterns *recommend.UserPatterns, profile *recommend.UserProfile, item *recommend.ContentItem) (*recommend.DiscoveryScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topics := item.Topics()
	if len(topics) == 0 {
		return &recommend.DiscoveryScore{}, nil
	}

	overlap := 0
	hasDivergent := false
	for _, topic := range topics {
		if _, ok := patterns.EstablishedTopics[topic]; ok {
			overlap++
		} else {
			hasDivergent = true
		}
	}

	_, typeEstablished := patterns.EstablishedContentTypes[item.Metadata.ContentType]
	bridging := e.bridgingTopics(patterns.EstablishedTopics, topics)

	score := &recommend.DiscoveryScore{
		Eligible:       hasDivergent && (len(bridging) > 0 || !typeEstablished),
		BridgingTopics: bridging,
	}
	if !score.Eligible {
		return score, nil
	}

	typeNovelty := 0.0
	if !typeEstablished {
		typeNovelty = 1.0
	}
	score.Divergence = 0.7*(1-float64(overlap)/float64(len(topics))) + 0.3*typeNovelty
	score.Accessibility = e.accessibility(profile, item)

	factors, err := e.serendipityFactors(ctx, item)
	if err != nil {
		return nil, err
	}
	score.SerendipityFactors = factors

	score.Rank = 0.4*score.Divergence +
		0.3*score.Accessibility +
		0.1*float64(len(bridging)) +
		0.2*float64(len(factors))
	score.Reason = e.reason(score, item, typeEstablished)

	return score, nil
}

// sessionAggregates walks the recent sessions once, counting reads per
// content type and collecting the comfort zone from well-completed
// sessions in the request language.
func (e *Evaluator) sessionAggregates(ctx context.Context, sessions []recommend.ReadingBehavior, lang recommend.Language) (map[string]int, recommend.ComfortZone, error) {
	typeCounts := make(map[string]int)
	comfort := recommend.ComfortZone{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64

	for i := range sessions {
		item, err := e.catalog.Get(ctx, sessions[i].ContentID)
		if err != nil {
			if recommend.IsNotFound(err) {
				continue
			}
			return nil, recommend.ComfortZone{}, fmt.Errorf("resolve content %s: %w", sessions[i].ContentID, err)
		}

		if item.Metadata.ContentType != "" {
			typeCounts[item.Metadata.ContentType]++
		}

		if item.Language != lang || sessions[i].CompletionRate <= e.config.Discovery.ComfortCompletion {
			continue
		}
		d := item.DifficultyFor(lang)
		comfort.Min = math.Min(comfort.Min, d)
		comfort.Max = math.Max(comfort.Max, d)
		sum += d
		comfort.Count++
	}

	if comfort.Count == 0 {
		return typeCounts, recommend.ComfortZone{}, nil
	}
	comfort.Avg = sum / float64(comfort.Count)
	return typeCounts, comfort, nil
}

// fillUnexplored computes the vocabulary complement of the established
// sets.
func (e *Evaluator) fillUnexplored(ctx context.Context, patterns *recommend.UserPatterns) error {
	topics, err := e.vocabulary.Topics(ctx)
	if err != nil {
		return fmt.Errorf("load topic vocabulary: %w", err)
	}
	for _, topic := range topics {
		if _, ok := patterns.EstablishedTopics[topic]; !ok {
			patterns.UnexploredTopics = append(patterns.UnexploredTopics, topic)
		}
	}

	types, err := e.vocabulary.ContentTypes(ctx)
	if err != nil {
		return fmt.Errorf("load content-type vocabulary: %w", err)
	}
	for _, t := range types {
		if _, ok := patterns.EstablishedContentTypes[t]; !ok {
			patterns.UnexploredContentTypes = append(patterns.UnexploredContentTypes, t)
		}
	}
	return nil
}

// bridgingTopics returns candidate topics the bridge table links back to
// an established topic, sorted for determinism.
func (e *Evaluator) bridgingTopics(established map[string]struct{}, candidateTopics []string) []string {
	candidates := make(map[string]struct{}, len(candidateTopics))
	for _, t := range candidateTopics {
		candidates[t] = struct{}{}
	}

	bridging := make(map[string]struct{})
	for from := range established {
		for _, to := range e.config.Discovery.Bridges[from] {
			if _, ok := candidates[to]; ok {
				bridging[to] = struct{}{}
			}
		}
	}
	if len(bridging) == 0 {
		return nil
	}

	out := make([]string, 0, len(bridging))
	for t := range bridging {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// accessibility measures how approachable the stretch is: mostly level
// proximity, partly length.
func (e *Evaluator) accessibility(profile *recommend.UserProfile, item *recommend.ContentItem) float64 {
	lang := item.Language
	gap := math.Abs(item.DifficultyFor(lang) - profile.Level(lang).Level)

	bands := [3]float64{1.0, 2.0, 3.0}
	if lang == recommend.LanguageJapanese {
		bands = [3]float64{0.1, 0.2, 0.3}
	}

	levelBand := 0.3
	switch {
	case gap <= bands[0]:
		levelBand = 1.0
	case gap <= bands[1]:
		levelBand = 0.8
	case gap <= bands[2]:
		levelBand = 0.6
	}

	lengthBand := 0.6
	switch est := item.Metadata.EstimatedReadingTime; {
	case est <= 20:
		lengthBand = 1.0
	case est <= 45:
		lengthBand = 0.8
	}

	return 0.7*levelBand + 0.3*lengthBand
}

// serendipityFactors lists the discovery-only boosts present for the
// item: social proof, freshness, and sweet-spot popularity.
func (e *Evaluator) serendipityFactors(ctx context.Context, item *recommend.ContentItem) ([]string, error) {
	sessions, err := e.behaviors.ByContent(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("load readers of %s: %w", item.ID, err)
	}

	readers := make(map[string]struct{}, len(sessions))
	for i := range sessions {
		readers[sessions[i].UserID] = struct{}{}
	}

	var factors []string
	if len(readers) > 0 {
		factors = append(factors, "read_by_others")
	}
	if time.Since(item.PublishedAt) < e.config.Discovery.RecencyWindow {
		factors = append(factors, "fresh")
	}
	if n := len(readers); n >= e.config.Discovery.SweetSpotMin && n <= e.config.Discovery.SweetSpotMax {
		factors = append(factors, "sweet_spot")
	}
	return factors, nil
}

// reason builds the user-facing explanation from the bridging topics,
// content-type novelty and serendipity factors.
func (e *Evaluator) reason(score *recommend.DiscoveryScore, item *recommend.ContentItem, typeEstablished bool) string {
	var parts []string

	if len(score.BridgingTopics) > 0 {
		parts = append(parts, fmt.Sprintf("connects to your interest in %s", strings.Join(score.BridgingTopics, ", ")))
	}
	if !typeEstablished && item.Metadata.ContentType != "" {
		parts = append(parts, fmt.Sprintf("a %s, something you haven't explored", item.Metadata.ContentType))
	}
	for _, factor := range score.SerendipityFactors {
		switch factor {
		case "fresh":
			parts = append(parts, "recently published")
		case "sweet_spot":
			parts = append(parts, "a hidden gem among readers")
		}
	}

	if len(parts) == 0 {
		return "something different from your usual reading"
	}
	return strings.Join(parts, "; ")
}

// topTypes returns the n most-read content types as a set, count then
// name ordering for determinism.
func topTypes(counts map[string]int, n int) map[string]struct{} {
	type typeCount struct {
		name  string
		count int
	}
	ranked := make([]typeCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, typeCount{name, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	top := make(map[string]struct{}, len(ranked))
	for _, tc := range ranked {
		top[tc.name] = struct{}{}
	}
	return top
}
