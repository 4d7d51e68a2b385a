// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Function-field mocks so each test overrides only what it needs.

type mockCatalog struct {
	queryFn func(ctx context.Context, q CatalogQuery) ([]ContentItem, error)
	getFn   func(ctx context.Context, id string) (*ContentItem, error)
}

func (m *mockCatalog) Query(ctx context.Context, q CatalogQuery) ([]ContentItem, error) {
	return m.queryFn(ctx, q)
}

func (m *mockCatalog) Get(ctx context.Context, id string) (*ContentItem, error) {
	return m.getFn(ctx, id)
}

type mockBehaviors struct {
	byUserFn    func(ctx context.Context, userID string) ([]ReadingBehavior, error)
	byContentFn func(ctx context.Context, contentID string) ([]ReadingBehavior, error)
	appendFn    func(ctx context.Context, b ReadingBehavior) error
}

func (m *mockBehaviors) ByUser(ctx context.Context, userID string) ([]ReadingBehavior, error) {
	return m.byUserFn(ctx, userID)
}

func (m *mockBehaviors) ByContent(ctx context.Context, contentID string) ([]ReadingBehavior, error) {
	return m.byContentFn(ctx, contentID)
}

func (m *mockBehaviors) Append(ctx context.Context, b ReadingBehavior) error {
	return m.appendFn(ctx, b)
}

// mockProfiles keeps one profile in memory and applies commits directly.
type mockProfiles struct {
	profile *UserProfile
	getErr  error
}

func (m *mockProfiles) GetOrCreate(_ context.Context, userID string) (*UserProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.profile == nil {
		m.profile = NewUserProfile(userID)
	}
	return m.profile, nil
}

func (m *mockProfiles) Commit(ctx context.Context, userID string, mutate func(*UserProfile) error) error {
	profile, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	return mutate(profile)
}

type mockDiscoveryLog struct {
	records    []DiscoveryRecommendation
	recordErr  error
	recentFn   func(ctx context.Context, userID string, window time.Duration) (map[string]struct{}, error)
	responseFn func(ctx context.Context, userID, contentID, response string) error
}

func (m *mockDiscoveryLog) Record(_ context.Context, rec DiscoveryRecommendation) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockDiscoveryLog) RecentIDs(ctx context.Context, userID string, window time.Duration) (map[string]struct{}, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, userID, window)
	}
	return map[string]struct{}{}, nil
}

func (m *mockDiscoveryLog) RecordResponse(ctx context.Context, userID, contentID, response string) error {
	if m.responseFn != nil {
		return m.responseFn(ctx, userID, contentID, response)
	}
	return nil
}

type mockRetriever struct {
	items []ContentItem
	err   error
}

func (m *mockRetriever) Retrieve(context.Context, *UserProfile, Language, RetrievalPolicy) ([]ContentItem, error) {
	return m.items, m.err
}

type mockScorer struct {
	scoreFn func(ctx context.Context, profile *UserProfile, item *ContentItem, rctx *ReadingContext) (*ContextualScore, error)
}

func (m *mockScorer) Score(ctx context.Context, profile *UserProfile, item *ContentItem, rctx *ReadingContext) (*ContextualScore, error) {
	return m.scoreFn(ctx, profile, item, rctx)
}

type mockEvaluator struct {
	patterns   *UserPatterns
	evaluateFn func(ctx context.Context, patterns *UserPatterns, profile *UserProfile, item *ContentItem) (*DiscoveryScore, error)
}

func (m *mockEvaluator) Patterns(context.Context, *UserProfile, Language) (*UserPatterns, error) {
	if m.patterns != nil {
		return m.patterns, nil
	}
	return &UserPatterns{}, nil
}

func (m *mockEvaluator) Evaluate(ctx context.Context, patterns *UserPatterns, profile *UserProfile, item *ContentItem) (*DiscoveryScore, error) {
	return m.evaluateFn(ctx, patterns, profile, item)
}

type mockFeedbackHandler struct{}

func (mockFeedbackHandler) Submit(context.Context, Feedback) (*FeedbackResult, error) {
	return &FeedbackResult{}, nil
}

func (mockFeedbackHandler) RecordSession(context.Context, ReadingBehavior) (*FeedbackResult, error) {
	return &FeedbackResult{}, nil
}

func (mockFeedbackHandler) AnalyzePatterns(context.Context, string, time.Duration) (*FeedbackPatterns, error) {
	return &FeedbackPatterns{}, nil
}

type mockAssessor struct{}

func (mockAssessor) Assess(context.Context, string, Language, float64, PerformanceMetrics) (*ReadingLevel, error) {
	return &ReadingLevel{}, nil
}

// passthroughReranker truncates without reordering.
type passthroughReranker struct{}

func (passthroughReranker) Name() string { return "passthrough" }

func (passthroughReranker) Rerank(_ context.Context, items []ScoredContent, limit int) []ScoredContent {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func analyzedItem(id string, topics ...string) ContentItem {
	scores := make([]TopicScore, 0, len(topics))
	for _, t := range topics {
		scores = append(scores, TopicScore{Topic: t, Confidence: 0.9})
	}
	return ContentItem{
		ID:       id,
		Title:    "item " + id,
		Language: LanguageEnglish,
		Metadata: ContentMetadata{ContentType: "article", EstimatedReadingTime: 10},
		Analysis: &ContentAnalysis{
			Topics:       scores,
			ReadingLevel: ReadingLevelScore{FleschKincaid: 8.0},
		},
	}
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Profiles:  &mockProfiles{},
		Behaviors: &mockBehaviors{},
		Catalog:   &mockCatalog{},
		Discoveries: &mockDiscoveryLog{
			recentFn: func(context.Context, string, time.Duration) (map[string]struct{}, error) {
				return map[string]struct{}{}, nil
			},
		},
		Retriever: &mockRetriever{},
		Scorer: &mockScorer{
			scoreFn: func(_ context.Context, _ *UserProfile, item *ContentItem, _ *ReadingContext) (*ContextualScore, error) {
				return &ContextualScore{Total: 0.5}, nil
			},
		},
		Discovery:         &mockEvaluator{},
		Feedback:          mockFeedbackHandler{},
		Assessor:          mockAssessor{},
		StandardReranker:  passthroughReranker{},
		DiscoveryReranker: passthroughReranker{},
	}
}

func newTestEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig(), deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestRecommendUnsupportedLanguage(t *testing.T) {
	engine := newTestEngine(t, testDeps(t))

	_, err := engine.Recommend(context.Background(), Request{UserID: "u1", Language: "german"})
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestRecommendEmptyCandidatesIsNotError(t *testing.T) {
	deps := testDeps(t)
	deps.Retriever = &mockRetriever{items: nil}
	engine := newTestEngine(t, deps)

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", Language: "english"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected empty items, got %d", len(resp.Items))
	}
	if resp.Metadata.RequestID == "" {
		t.Error("expected generated request id")
	}
}

func TestRecommendRanksByScore(t *testing.T) {
	deps := testDeps(t)
	deps.Retriever = &mockRetriever{items: []ContentItem{
		analyzedItem("a", "history"),
		analyzedItem("b", "science"),
		analyzedItem("c", "fiction"),
	}}
	scores := map[string]float64{"a": 0.2, "b": 0.9, "c": 0.5}
	deps.Scorer = &mockScorer{
		scoreFn: func(_ context.Context, _ *UserProfile, item *ContentItem, _ *ReadingContext) (*ContextualScore, error) {
			return &ContextualScore{Total: scores[item.ID]}, nil
		},
	}
	engine := newTestEngine(t, deps)

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", Language: "english"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	want := []string{"b", "c", "a"}
	if len(resp.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(resp.Items))
	}
	for i, id := range want {
		if resp.Items[i].Item.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, resp.Items[i].Item.ID)
		}
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("expected 3 candidates, got %d", resp.TotalCandidates)
	}
}

func TestRecommendSkipsFailingCandidates(t *testing.T) {
	deps := testDeps(t)
	deps.Retriever = &mockRetriever{items: []ContentItem{
		analyzedItem("ok", "history"),
		analyzedItem("broken", "science"),
	}}
	deps.Scorer = &mockScorer{
		scoreFn: func(_ context.Context, _ *UserProfile, item *ContentItem, _ *ReadingContext) (*ContextualScore, error) {
			if item.ID == "broken" {
				return nil, errors.New("scoring exploded")
			}
			return &ContextualScore{Total: 0.7}, nil
		},
	}
	engine := newTestEngine(t, deps)

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", Language: "english"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Item.ID != "ok" {
		t.Fatalf("expected only the healthy candidate, got %+v", resp.Items)
	}
	if resp.Metadata.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", resp.Metadata.Skipped)
	}
}

func TestRecommendNoDuplicateIDs(t *testing.T) {
	deps := testDeps(t)
	items := make([]ContentItem, 0, 20)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		items = append(items, analyzedItem(id, "history"))
	}
	deps.Retriever = &mockRetriever{items: items}
	engine := newTestEngine(t, deps)

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", Language: "english", Limit: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	seen := make(map[string]struct{})
	for _, item := range resp.Items {
		if _, dup := seen[item.Item.ID]; dup {
			t.Fatalf("duplicate content id %s in result list", item.Item.ID)
		}
		seen[item.Item.ID] = struct{}{}
	}
}

func TestDiscoverGatesOnDivergence(t *testing.T) {
	deps := testDeps(t)
	deps.Retriever = &mockRetriever{items: []ContentItem{
		analyzedItem("far", "astronomy"),
		analyzedItem("near", "technology"),
		analyzedItem("blocked", "gardening"),
	}}
	log := &mockDiscoveryLog{}
	deps.Discoveries = log
	deps.Discovery = &mockEvaluator{
		evaluateFn: func(_ context.Context, _ *UserPatterns, _ *UserProfile, item *ContentItem) (*DiscoveryScore, error) {
			switch item.ID {
			case "far":
				return &DiscoveryScore{Eligible: true, Divergence: 0.8, Rank: 0.9}, nil
			case "near":
				return &DiscoveryScore{Eligible: true, Divergence: 0.2, Rank: 0.8}, nil
			default:
				return &DiscoveryScore{Eligible: false}, nil
			}
		},
	}
	engine := newTestEngine(t, deps)

	resp, err := engine.Discover(context.Background(), Request{UserID: "u1", Language: "english"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(resp.Items) != 1 || resp.Items[0].Item.ID != "far" {
		t.Fatalf("expected only the divergent candidate, got %+v", resp.Items)
	}
	for _, item := range resp.Items {
		if item.Discovery.Divergence < 0.4 {
			t.Errorf("emitted divergence %.2f below gate", item.Discovery.Divergence)
		}
	}
	if len(log.records) != 1 || log.records[0].ContentID != "far" {
		t.Fatalf("expected one persisted discovery, got %+v", log.records)
	}
}

func TestDiscoverDropsItemsThatFailToPersist(t *testing.T) {
	deps := testDeps(t)
	deps.Retriever = &mockRetriever{items: []ContentItem{analyzedItem("x", "astronomy")}}
	deps.Discoveries = &mockDiscoveryLog{recordErr: errors.New("log down")}
	deps.Discovery = &mockEvaluator{
		evaluateFn: func(context.Context, *UserPatterns, *UserProfile, *ContentItem) (*DiscoveryScore, error) {
			return &DiscoveryScore{Eligible: true, Divergence: 0.9, Rank: 0.9}, nil
		},
	}
	engine := newTestEngine(t, deps)

	resp, err := engine.Discover(context.Background(), Request{UserID: "u1", Language: "english"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected unpersisted discovery to be dropped, got %+v", resp.Items)
	}
}

func TestPrepareRequestDefaultsAndLimits(t *testing.T) {
	engine := newTestEngine(t, testDeps(t))

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero uses default", 0, engine.config.Limits.DefaultLimit},
		{"negative uses default", -3, engine.config.Limits.DefaultLimit},
		{"in range kept", 25, 25},
		{"over max capped", 500, engine.config.Limits.MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := engine.prepareRequest(Request{UserID: "u1", Limit: tt.limit})
			if req.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", req.Limit, tt.wantLimit)
			}
			if req.RequestID == "" {
				t.Error("expected generated request id")
			}
		})
	}
}

func TestTrackDiscoveryResponseValidation(t *testing.T) {
	engine := newTestEngine(t, testDeps(t))

	err := engine.TrackDiscoveryResponse(context.Background(), "u1", "", "liked")
	if !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("expected ErrInvalidFeedback, got %v", err)
	}
}

func TestNewEngineRejectsMissingDeps(t *testing.T) {
	deps := testDeps(t)
	deps.Scorer = nil

	if _, err := NewEngine(DefaultConfig(), deps, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing scorer")
	}
}
