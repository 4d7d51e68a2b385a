// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package discovery

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

type memCatalog struct {
	items map[string]*recommend.ContentItem
}

func (m *memCatalog) Query(context.Context, recommend.CatalogQuery) ([]recommend.ContentItem, error) {
	out := make([]recommend.ContentItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

func (m *memCatalog) Get(_ context.Context, id string) (*recommend.ContentItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, recommend.ErrContentNotFound
	}
	return item, nil
}

type memBehaviors struct {
	sessions []recommend.ReadingBehavior
}

func (m *memBehaviors) ByUser(_ context.Context, userID string) ([]recommend.ReadingBehavior, error) {
	var out []recommend.ReadingBehavior
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID {
			out = append(out, m.sessions[i])
		}
	}
	return out, nil
}

func (m *memBehaviors) ByContent(_ context.Context, contentID string) ([]recommend.ReadingBehavior, error) {
	var out []recommend.ReadingBehavior
	for _, s := range m.sessions {
		if s.ContentID == contentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memBehaviors) Append(_ context.Context, b recommend.ReadingBehavior) error {
	m.sessions = append(m.sessions, b)
	return nil
}

type memVocabulary struct {
	topics []string
	types  []string
}

func (m *memVocabulary) Topics(context.Context) ([]string, error) { return m.topics, nil }

func (m *memVocabulary) ContentTypes(context.Context) ([]string, error) { return m.types, nil }

func analyzedItem(id, contentType string, minutes int, gradeLevel float64, topics ...string) *recommend.ContentItem {
	scores := make([]recommend.TopicScore, 0, len(topics))
	for _, t := range topics {
		scores = append(scores, recommend.TopicScore{Topic: t, Confidence: 0.9})
	}
	return &recommend.ContentItem{
		ID:       id,
		Language: recommend.LanguageEnglish,
		Metadata: recommend.ContentMetadata{
			ContentType:          contentType,
			EstimatedReadingTime: minutes,
		},
		Analysis: &recommend.ContentAnalysis{
			Topics:       scores,
			ReadingLevel: recommend.ReadingLevelScore{FleschKincaid: gradeLevel},
		},
		PublishedAt: time.Now().Add(-30 * 24 * time.Hour),
	}
}

func newTestEvaluator(catalog *memCatalog, behaviors *memBehaviors, vocab *memVocabulary) *Evaluator {
	if catalog == nil {
		catalog = &memCatalog{items: map[string]*recommend.ContentItem{}}
	}
	if behaviors == nil {
		behaviors = &memBehaviors{}
	}
	if vocab == nil {
		vocab = &memVocabulary{}
	}
	return NewEvaluator(recommend.DefaultConfig(), behaviors, catalog, vocab, zerolog.Nop())
}

func patternsWith(topics []string, types ...string) *recommend.UserPatterns {
	p := &recommend.UserPatterns{
		EstablishedTopics:       make(map[string]struct{}),
		EstablishedContentTypes: make(map[string]struct{}),
	}
	for _, t := range topics {
		p.EstablishedTopics[t] = struct{}{}
	}
	for _, ct := range types {
		p.EstablishedContentTypes[ct] = struct{}{}
	}
	return p
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateNovelTypeWithoutBridgeIsEligible(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	patterns := patternsWith([]string{"technology"}, "article", "blog")
	profile := recommend.NewUserProfile("u1")

	// History is not bridged from technology, but "book" is a novel type.
	item := analyzedItem("c1", "book", 15, 8.5, "history")

	score, err := e.Evaluate(context.Background(), patterns, profile, item)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !score.Eligible {
		t.Fatal("expected type novelty to make the candidate eligible")
	}
	if len(score.BridgingTopics) != 0 {
		t.Errorf("expected no bridges, got %v", score.BridgingTopics)
	}
	// Full topic divergence plus full type novelty.
	if !almostEqual(score.Divergence, 1.0) {
		t.Errorf("divergence = %f, want 1.0", score.Divergence)
	}
}

func TestEvaluateBridgedTopicIsEligible(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	// Default bridge table links technology -> science.
	patterns := patternsWith([]string{"technology"}, "article")
	profile := recommend.NewUserProfile("u1")

	item := analyzedItem("c1", "article", 15, 8.5, "science")

	score, err := e.Evaluate(context.Background(), patterns, profile, item)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !score.Eligible {
		t.Fatal("expected bridged divergent topic to be eligible")
	}
	if len(score.BridgingTopics) != 1 || score.BridgingTopics[0] != "science" {
		t.Errorf("bridging topics = %v, want [science]", score.BridgingTopics)
	}
	// Established type, so only the topic term contributes.
	if !almostEqual(score.Divergence, 0.7) {
		t.Errorf("divergence = %f, want 0.7", score.Divergence)
	}
	if !strings.Contains(score.Reason, "science") {
		t.Errorf("reason %q should cite the bridge", score.Reason)
	}
}

func TestEvaluateFamiliarContentIsIneligible(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	profile := recommend.NewUserProfile("u1")

	tests := []struct {
		name     string
		patterns *recommend.UserPatterns
		item     *recommend.ContentItem
	}{
		{
			"all topics established",
			patternsWith([]string{"history", "science"}, "article"),
			analyzedItem("c1", "article", 15, 8, "history", "science"),
		},
		{
			"divergent but unreachable",
			patternsWith([]string{"fiction"}, "article"),
			// Gardening has no bridge from fiction and article is familiar.
			analyzedItem("c2", "article", 15, 8, "gardening"),
		},
		{
			"no topics at all",
			patternsWith([]string{"history"}, "article"),
			analyzedItem("c3", "article", 15, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := e.Evaluate(context.Background(), tt.patterns, profile, tt.item)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if score.Eligible {
				t.Errorf("expected ineligible, got %+v", score)
			}
		})
	}
}

func TestEvaluateDivergenceBlendsOverlapAndTypeNovelty(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	patterns := patternsWith([]string{"technology"}, "article")
	profile := recommend.NewUserProfile("u1")

	// One of two topics established, novel type.
	item := analyzedItem("c1", "book", 15, 8, "technology", "science")

	score, err := e.Evaluate(context.Background(), patterns, profile, item)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// 0.7*(1 - 1/2) + 0.3*1.0
	if !almostEqual(score.Divergence, 0.65) {
		t.Errorf("divergence = %f, want 0.65", score.Divergence)
	}
}

func TestAccessibilityBands(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	profile := recommend.NewUserProfile("u1") // english level 8.0

	tests := []struct {
		name    string
		grade   float64
		minutes int
		want    float64
	}{
		{"close and short", 8.5, 15, 0.7*1.0 + 0.3*1.0},
		{"moderate gap medium length", 10.0, 30, 0.7*0.8 + 0.3*0.8},
		{"wide gap long read", 11.0, 90, 0.7*0.6 + 0.3*0.6},
		{"out of reach", 13.0, 15, 0.7*0.3 + 0.3*1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := analyzedItem("c1", "book", tt.minutes, tt.grade)
			if got := e.accessibility(profile, item); !almostEqual(got, tt.want) {
				t.Errorf("accessibility = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSerendipityFactors(t *testing.T) {
	behaviors := &memBehaviors{}
	for i := 0; i < 10; i++ {
		behaviors.sessions = append(behaviors.sessions, recommend.ReadingBehavior{
			UserID:    string(rune('a' + i)),
			ContentID: "popular",
		})
	}
	behaviors.sessions = append(behaviors.sessions, recommend.ReadingBehavior{UserID: "x", ContentID: "niche"})
	e := newTestEvaluator(nil, behaviors, nil)
	profile := recommend.NewUserProfile("u1")
	patterns := patternsWith([]string{"technology"}, "article")
	ctx := context.Background()

	t.Run("sweet spot", func(t *testing.T) {
		item := analyzedItem("popular", "book", 15, 8, "history")
		score, err := e.Evaluate(ctx, patterns, profile, item)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		wantFactors := map[string]bool{"read_by_others": true, "sweet_spot": true}
		for _, f := range score.SerendipityFactors {
			delete(wantFactors, f)
		}
		if len(wantFactors) != 0 {
			t.Errorf("missing factors %v in %v", wantFactors, score.SerendipityFactors)
		}
	})

	t.Run("fresh unread item", func(t *testing.T) {
		item := analyzedItem("brand-new", "book", 15, 8, "history")
		item.PublishedAt = time.Now().Add(-time.Hour)
		score, err := e.Evaluate(ctx, patterns, profile, item)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(score.SerendipityFactors) != 1 || score.SerendipityFactors[0] != "fresh" {
			t.Errorf("factors = %v, want [fresh]", score.SerendipityFactors)
		}
	})

	t.Run("below sweet spot", func(t *testing.T) {
		item := analyzedItem("niche", "book", 15, 8, "history")
		score, err := e.Evaluate(ctx, patterns, profile, item)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		for _, f := range score.SerendipityFactors {
			if f == "sweet_spot" {
				t.Error("single reader should not hit the sweet spot")
			}
		}
	})
}

func TestPatternsAggregation(t *testing.T) {
	catalog := &memCatalog{items: map[string]*recommend.ContentItem{
		"a1": analyzedItem("a1", "article", 10, 7.0, "history"),
		"a2": analyzedItem("a2", "article", 10, 9.0, "history"),
		"b1": analyzedItem("b1", "blog", 5, 8.0, "technology"),
	}}
	behaviors := &memBehaviors{sessions: []recommend.ReadingBehavior{
		{UserID: "u1", ContentID: "a1", CompletionRate: 0.9},
		{UserID: "u1", ContentID: "a2", CompletionRate: 0.8},
		{UserID: "u1", ContentID: "b1", CompletionRate: 0.3},
		// Dangling session; must be skipped, not fail the build.
		{UserID: "u1", ContentID: "gone", CompletionRate: 0.9},
	}}
	vocab := &memVocabulary{
		topics: []string{"history", "technology", "gardening"},
		types:  []string{"article", "blog", "book"},
	}
	e := newTestEvaluator(catalog, behaviors, vocab)

	profile := recommend.NewUserProfile("u1")
	profile.Topics = []recommend.TopicPreference{
		{Topic: "history", Weight: 0.6, Confidence: 0.7},
		{Topic: "technology", Weight: 0.1, Confidence: 0.4},
	}

	patterns, err := e.Patterns(context.Background(), profile, recommend.LanguageEnglish)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}

	if _, ok := patterns.EstablishedTopics["history"]; !ok {
		t.Error("history should be established")
	}
	if _, ok := patterns.EstablishedTopics["technology"]; ok {
		t.Error("weakly weighted technology should not be established")
	}

	if _, ok := patterns.EstablishedContentTypes["article"]; !ok {
		t.Error("article should be an established type")
	}

	// Comfort zone from the two well-completed sessions (0.9, 0.8).
	cz := patterns.ComfortZone
	if cz.Count != 2 || cz.Min != 7.0 || cz.Max != 9.0 || !almostEqual(cz.Avg, 8.0) {
		t.Errorf("comfort zone = %+v", cz)
	}

	wantUnexplored := map[string]bool{"technology": true, "gardening": true}
	for _, topic := range patterns.UnexploredTopics {
		delete(wantUnexplored, topic)
	}
	if len(wantUnexplored) != 0 {
		t.Errorf("unexplored topics missing %v, got %v", wantUnexplored, patterns.UnexploredTopics)
	}
	if len(patterns.UnexploredContentTypes) == 0 {
		t.Error("expected unexplored content types")
	}
}

func TestTopTypesDeterministic(t *testing.T) {
	counts := map[string]int{"article": 5, "blog": 5, "book": 2, "comic": 1}

	top := topTypes(counts, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 types, got %v", top)
	}
	for _, want := range []string{"article", "blog", "book"} {
		if _, ok := top[want]; !ok {
			t.Errorf("expected %s in top types %v", want, top)
		}
	}
}

func TestEvaluateRankBlend(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	patterns := patternsWith([]string{"technology"}, "article")
	profile := recommend.NewUserProfile("u1")

	item := analyzedItem("c1", "book", 15, 8.5, "science")

	score, err := e.Evaluate(context.Background(), patterns, profile, item)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := 0.4*score.Divergence +
		0.3*score.Accessibility +
		0.1*float64(len(score.BridgingTopics)) +
		0.2*float64(len(score.SerendipityFactors))
	if !almostEqual(score.Rank, want) {
		t.Errorf("rank = %f, want %f", score.Rank, want)
	}
}
