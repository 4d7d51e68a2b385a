// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/karasawa/shiori/internal/metrics"
)

// Engine coordinates preference learning, contextual recommendation and
// divergence-bounded discovery. It is stateless and request-scoped: no
// background goroutines, no hidden process-wide state. It is safe for
// concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger

	profiles    ProfileStore
	behaviors   BehaviorStore
	catalog     ContentCatalog
	discoveries DiscoveryLog

	retriever CandidateRetriever
	scorer    ContextScorer
	discovery DiscoveryEvaluator
	feedback  FeedbackHandler
	assessor  LevelAssessor

	standardReranker  Reranker
	discoveryReranker Reranker
}

// Deps bundles the engine's injected collaborators and components.
// Collaborators should already be breaker-wrapped (WrapCatalog, etc.)
// when breaker protection is wanted; the engine does not wrap them.
type Deps struct {
	Profiles    ProfileStore
	Behaviors   BehaviorStore
	Catalog     ContentCatalog
	Discoveries DiscoveryLog

	Retriever CandidateRetriever
	Scorer    ContextScorer
	Discovery DiscoveryEvaluator
	Feedback  FeedbackHandler
	Assessor  LevelAssessor

	StandardReranker  Reranker
	DiscoveryReranker Reranker
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps Deps, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	return &Engine{
		config:            cfg,
		logger:            logger.With().Str("component", "recommend").Logger(),
		profiles:          deps.Profiles,
		behaviors:         deps.Behaviors,
		catalog:           deps.Catalog,
		discoveries:       deps.Discoveries,
		retriever:         deps.Retriever,
		scorer:            deps.Scorer,
		discovery:         deps.Discovery,
		feedback:          deps.Feedback,
		assessor:          deps.Assessor,
		standardReranker:  deps.StandardReranker,
		discoveryReranker: deps.DiscoveryReranker,
	}, nil
}

// validateDeps rejects a partially wired engine at construction time.
func validateDeps(deps Deps) error {
	switch {
	case deps.Profiles == nil:
		return fmt.Errorf("engine: profile store is required")
	case deps.Behaviors == nil:
		return fmt.Errorf("engine: behavior store is required")
	case deps.Catalog == nil:
		return fmt.Errorf("engine: content catalog is required")
	case deps.Discoveries == nil:
		return fmt.Errorf("engine: discovery log is required")
	case deps.Retriever == nil:
		return fmt.Errorf("engine: candidate retriever is required")
	case deps.Scorer == nil:
		return fmt.Errorf("engine: context scorer is required")
	case deps.Discovery == nil:
		return fmt.Errorf("engine: discovery evaluator is required")
	case deps.Feedback == nil:
		return fmt.Errorf("engine: feedback handler is required")
	case deps.Assessor == nil:
		return fmt.Errorf("engine: level assessor is required")
	}
	return nil
}

// Request is a contextual recommendation request.
type Request struct {
	// UserID is the user to recommend for.
	UserID string `json:"user_id"`

	// Language selects the catalog language and level domain.
	Language string `json:"language"`

	// Limit is the number of results to return.
	// Defaults to Config.Limits.DefaultLimit when zero.
	Limit int `json:"limit,omitempty"`

	// Context is the caller's reading situation, optional.
	Context *ReadingContext `json:"context,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Response is a ranked recommendation response.
type Response struct {
	// Items is the ordered, diversity-filtered result list.
	Items []ScoredContent `json:"items"`

	// TotalCandidates is how many gated candidates were considered.
	TotalCandidates int `json:"total_candidates"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Mode      string    `json:"mode"`
	Language  Language  `json:"language"`
	LatencyMS int64     `json:"latency_ms"`
	Skipped   int       `json:"skipped_candidates"`
	Timestamp time.Time `json:"timestamp"`
}

// Recommend generates contextual recommendations for a user.
// An empty result list is a normal outcome, not an error.
func (e *Engine) Recommend(ctx context.Context, req Request) (_ *Response, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEngineOp("recommend", start, err) }()

	lang, err := ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	req = e.prepareRequest(req)

	logger := e.requestLogger(req, "contextual")
	logger.Debug().Msg("processing recommendation request")

	profile, err := e.profiles.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	candidates, err := e.retriever.Retrieve(ctx, profile, lang, PolicyStandard)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	candidates = e.capCandidates(candidates)

	if len(candidates) == 0 {
		logger.Debug().Msg("no eligible candidates")
		return e.emptyResponse(req, lang, "contextual", start), nil
	}

	items, skipped := e.scoreStandard(ctx, profile, candidates, req.Context)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortByScore(items)
	items = e.standardReranker.Rerank(ctx, items, req.Limit)

	metrics.RecommendationsEmitted.WithLabelValues("contextual").Add(float64(len(items)))
	logger.Debug().
		Int("candidates", len(candidates)).
		Int("skipped", skipped).
		Int("returned", len(items)).
		Msg("recommendation complete")

	return &Response{
		Items:           items,
		TotalCandidates: len(candidates),
		Metadata:        e.buildMetadata(req, lang, "contextual", skipped, start),
	}, nil
}

// Discover generates divergence-bounded discovery recommendations.
// Every emitted item is persisted to the discovery log before it is
// returned, which suppresses re-emission for the exclusion window.
func (e *Engine) Discover(ctx context.Context, req Request) (_ *Response, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEngineOp("discover", start, err) }()

	lang, err := ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	req = e.prepareRequest(req)

	logger := e.requestLogger(req, "discovery")
	logger.Debug().Msg("processing discovery request")

	profile, err := e.profiles.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	patterns, err := e.discovery.Patterns(ctx, profile, lang)
	if err != nil {
		return nil, fmt.Errorf("build user patterns: %w", err)
	}

	candidates, err := e.retriever.Retrieve(ctx, profile, lang, PolicyDiscovery)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	candidates = e.capCandidates(candidates)

	if len(candidates) == 0 {
		logger.Debug().Msg("no eligible discovery candidates")
		return e.emptyResponse(req, lang, "discovery", start), nil
	}

	items, skipped := e.scoreDiscovery(ctx, patterns, profile, candidates)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortByScore(items)
	items = e.discoveryReranker.Rerank(ctx, items, req.Limit)
	items = e.persistDiscoveries(ctx, req.UserID, items, logger)

	metrics.RecommendationsEmitted.WithLabelValues("discovery").Add(float64(len(items)))
	logger.Debug().
		Int("candidates", len(candidates)).
		Int("skipped", skipped).
		Int("returned", len(items)).
		Msg("discovery complete")

	return &Response{
		Items:           items,
		TotalCandidates: len(candidates),
		Metadata:        e.buildMetadata(req, lang, "discovery", skipped, start),
	}, nil
}

// SubmitFeedback validates and applies explicit feedback.
func (e *Engine) SubmitFeedback(ctx context.Context, fb Feedback) (_ *FeedbackResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEngineOp("feedback", start, err) }()
	return e.feedback.Submit(ctx, fb)
}

// RecordSession appends a completed reading session and applies the
// implicit preference signals it carries.
func (e *Engine) RecordSession(ctx context.Context, b ReadingBehavior) (_ *FeedbackResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEngineOp("session", start, err) }()
	return e.feedback.RecordSession(ctx, b)
}

// AnalyzeFeedbackPatterns classifies the user's recent behavior.
// A zero window uses the default 30 days.
func (e *Engine) AnalyzeFeedbackPatterns(ctx context.Context, userID string, window time.Duration) (*FeedbackPatterns, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return e.feedback.AnalyzePatterns(ctx, userID, window)
}

// AssessReadingLevel updates the user's difficulty estimate for a
// language from session performance.
func (e *Engine) AssessReadingLevel(ctx context.Context, userID, language string, contentDifficulty float64, perf PerformanceMetrics) (_ *ReadingLevel, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEngineOp("assess", start, err) }()

	lang, err := ParseLanguage(language)
	if err != nil {
		return nil, err
	}
	return e.assessor.Assess(ctx, userID, lang, contentDifficulty, perf)
}

// TrackDiscoveryResponse records the user's reaction to a discovery
// recommendation. Audit only; it does not tune future scoring.
func (e *Engine) TrackDiscoveryResponse(ctx context.Context, userID, contentID, response string) error {
	if userID == "" || contentID == "" || response == "" {
		return fmt.Errorf("%w: user, content and response are required", ErrInvalidFeedback)
	}
	return e.discoveries.RecordResponse(ctx, userID, contentID, response)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// prepareRequest applies defaults and generates a request ID if needed.
func (e *Engine) prepareRequest(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Limit <= 0 {
		req.Limit = e.config.Limits.DefaultLimit
	}
	if req.Limit > e.config.Limits.MaxLimit {
		req.Limit = e.config.Limits.MaxLimit
	}
	return req
}

// requestLogger derives a logger with request context.
func (e *Engine) requestLogger(req Request, mode string) zerolog.Logger {
	return e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Str("mode", mode).
		Logger()
}

// capCandidates bounds the scoring workload.
func (e *Engine) capCandidates(candidates []ContentItem) []ContentItem {
	if len(candidates) > e.config.Limits.MaxCandidates {
		return candidates[:e.config.Limits.MaxCandidates]
	}
	return candidates
}

// scoreStandard scores candidates in bounded batches. A failure scoring
// one candidate excludes it and is logged; it never fails the batch.
func (e *Engine) scoreStandard(ctx context.Context, profile *UserProfile, candidates []ContentItem, rctx *ReadingContext) ([]ScoredContent, int) {
	results := make([]*ScoredContent, len(candidates))

	var g errgroup.Group
	g.SetLimit(e.config.Limits.ScoreBatchSize)

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item := candidates[i]
			score, err := scoreOne(ctx, e.config.Limits.ScoreTimeout, func(cctx context.Context) (*ContextualScore, error) {
				return e.scorer.Score(cctx, profile, &item, rctx)
			})
			if err != nil {
				e.logSkip(item.ID, "contextual", err)
				return nil
			}
			results[i] = &ScoredContent{
				Item:  item,
				Score: score.Total,
				Scores: map[string]float64{
					"interest":  score.Interest,
					"level_fit": score.LevelFit,
					"context":   score.Context,
					"time":      score.Time,
					"mood":      score.Mood,
				},
				Explanation: score.Explanation,
			}
			return nil
		})
	}
	//nolint:errcheck // workers never return errors; failures are logged and skipped
	_ = g.Wait()

	return gather(results)
}

// scoreDiscovery evaluates candidates for divergence in bounded batches,
// keeping only eligible candidates at or above the divergence gate.
func (e *Engine) scoreDiscovery(ctx context.Context, patterns *UserPatterns, profile *UserProfile, candidates []ContentItem) ([]ScoredContent, int) {
	results := make([]*ScoredContent, len(candidates))

	var g errgroup.Group
	g.SetLimit(e.config.Limits.ScoreBatchSize)

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item := candidates[i]
			score, err := scoreOne(ctx, e.config.Limits.ScoreTimeout, func(cctx context.Context) (*DiscoveryScore, error) {
				return e.discovery.Evaluate(cctx, patterns, profile, &item)
			})
			if err != nil {
				e.logSkip(item.ID, "discovery", err)
				return nil
			}
			if !score.Eligible || score.Divergence < e.config.Discovery.MinDivergence {
				return nil
			}
			results[i] = &ScoredContent{
				Item:  item,
				Score: score.Rank,
				Scores: map[string]float64{
					"divergence":    score.Divergence,
					"accessibility": score.Accessibility,
				},
				Explanation: score.Reason,
				Discovery:   score,
			}
			return nil
		})
	}
	//nolint:errcheck // workers never return errors; failures are logged and skipped
	_ = g.Wait()

	scored, _ := gather(results)
	return scored, len(candidates) - len(scored)
}

// scoreOne applies the per-candidate timeout around a scoring call.
func scoreOne[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}

// logSkip logs a skipped candidate and bumps the failure counter.
func (e *Engine) logSkip(contentID, mode string, err error) {
	metrics.ScoringFailures.WithLabelValues(mode).Inc()
	e.logger.Warn().
		Str("content_id", contentID).
		Str("mode", mode).
		Err(err).
		Msg("candidate scoring failed, skipping")
}

// persistDiscoveries records each emitted discovery. An item whose record
// fails is dropped from the response so the exclusion-window invariant
// holds for everything the caller sees.
func (e *Engine) persistDiscoveries(ctx context.Context, userID string, items []ScoredContent, logger zerolog.Logger) []ScoredContent {
	kept := items[:0]
	now := time.Now()

	for i := range items {
		ds := items[i].Discovery
		rec := DiscoveryRecommendation{
			UserID:          userID,
			ContentID:       items[i].Item.ID,
			DivergenceScore: ds.Divergence,
			BridgingTopics:  ds.BridgingTopics,
			DiscoveryReason: ds.Reason,
			CreatedAt:       now,
		}
		if err := e.discoveries.Record(ctx, rec); err != nil {
			logger.Error().
				Str("content_id", rec.ContentID).
				Err(err).
				Msg("failed to persist discovery recommendation, dropping item")
			continue
		}
		kept = append(kept, items[i])
	}

	return kept
}

// buildMetadata constructs response metadata.
func (e *Engine) buildMetadata(req Request, lang Language, mode string, skipped int, start time.Time) ResponseMetadata {
	return ResponseMetadata{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Mode:      mode,
		Language:  lang,
		LatencyMS: time.Since(start).Milliseconds(),
		Skipped:   skipped,
		Timestamp: time.Now(),
	}
}

// emptyResponse returns an empty result list, a normal outcome.
func (e *Engine) emptyResponse(req Request, lang Language, mode string, start time.Time) *Response {
	return &Response{
		Items:           []ScoredContent{},
		TotalCandidates: 0,
		Metadata:        e.buildMetadata(req, lang, mode, 0, start),
	}
}

// gather compacts scored results, reporting how many were skipped.
func gather(results []*ScoredContent) ([]ScoredContent, int) {
	items := make([]ScoredContent, 0, len(results))
	for _, r := range results {
		if r != nil {
			items = append(items, *r)
		}
	}
	return items, len(results) - len(items)
}

// sortByScore sorts descending by score with the content id as a
// deterministic tiebreak.
func sortByScore(items []ScoredContent) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}
