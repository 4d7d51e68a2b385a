// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/cache"
	"github.com/karasawa/shiori/internal/config"
	"github.com/karasawa/shiori/internal/recommend"
	"github.com/karasawa/shiori/internal/recommend/assessment"
	"github.com/karasawa/shiori/internal/recommend/discovery"
	"github.com/karasawa/shiori/internal/recommend/feedback"
	"github.com/karasawa/shiori/internal/recommend/reranking"
	"github.com/karasawa/shiori/internal/recommend/retrieval"
	"github.com/karasawa/shiori/internal/recommend/scoring"
	"github.com/karasawa/shiori/internal/storage"
)

// newTestServer wires a full engine over an in-memory database, the
// same stack the server command assembles, minus the breakers.
func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()

	store, err := storage.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cached := cache.NewCatalog(store, time.Minute)
	cfg := recommend.DefaultConfig()
	logger := zerolog.Nop()

	engine, err := recommend.NewEngine(cfg, recommend.Deps{
		Profiles:    store,
		Behaviors:   store,
		Catalog:     cached,
		Discoveries: store,

		Retriever: retrieval.NewRetriever(cfg, cached, store, store, logger),
		Scorer:    scoring.NewScorer(cfg, logger),
		Discovery: discovery.NewEvaluator(cfg, store, cached, cached, logger),
		Feedback:  feedback.NewProcessor(cfg, store, store, cached, logger),
		Assessor:  assessment.NewAssessor(cfg, store, logger),

		StandardReranker:  reranking.NewDiversity(cfg),
		DiscoveryReranker: reranking.NewDiscoveryDiversity(cfg),
	}, logger)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}

	serverCfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	return NewServer(serverCfg, engine, store, logger), store
}

func seedContent(t *testing.T, store *storage.Store, id, topic string, gradeLevel float64) {
	t.Helper()
	item := &recommend.ContentItem{
		ID:       id,
		Title:    strings.ToUpper(id),
		Language: recommend.LanguageEnglish,
		Metadata: recommend.ContentMetadata{
			ContentType:          "article",
			EstimatedReadingTime: 12,
		},
		Analysis: &recommend.ContentAnalysis{
			Topics:       []recommend.TopicScore{{Topic: topic, Confidence: 0.9}},
			ReadingLevel: recommend.ReadingLevelScore{FleschKincaid: gradeLevel},
		},
		PublishedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := store.PutContent(context.Background(), item); err != nil {
		t.Fatalf("seeding content %s: %v", id, err)
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request id header")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("request id = %q, want echoed req-42", got)
	}
}

func TestRecommendEndToEnd(t *testing.T) {
	srv, store := newTestServer(t)
	seedContent(t, store, "c1", "history", 8.0)
	seedContent(t, store, "c2", "science", 7.0)
	seedContent(t, store, "c3", "fiction", 9.0)

	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/v1/recommendations",
		recommend.Request{UserID: "u1", Language: "english"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatal("expected recommendations for seeded catalog")
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("total candidates = %d, want 3", resp.TotalCandidates)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("expected request id in metadata")
	}
}

func TestRecommendRejectsUnknownLanguage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/v1/recommendations",
		recommend.Request{UserID: "u1", Language: "de"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedContent(t, store, "c1", "history", 8.0)
	handler := srv.routes()
	rating := 5

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/feedback",
		recommend.Feedback{UserID: "u1", ContentID: "c1", Rating: &rating})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result recommend.FeedbackResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.TopicsUpdated != 1 {
		t.Errorf("topics updated = %d, want 1", result.TopicsUpdated)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/feedback",
		recommend.Feedback{UserID: "u1", ContentID: "ghost", Rating: &rating})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown content status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/feedback",
		recommend.Feedback{UserID: "u1", ContentID: "c1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("signal-less feedback status = %d, want 400", rec.Code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedContent(t, store, "c1", "history", 8.0)

	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/v1/sessions",
		recommend.ReadingBehavior{
			UserID:          "u1",
			ContentID:       "c1",
			CompletionRate:  0.9,
			ReadingSpeedWPM: 210,
			ActualMinutes:   11,
			Timestamp:       time.Now(),
		})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestPatternsWindowValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.routes()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/u1/patterns?window_days=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad window status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/u1/patterns?window_days=7", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("valid window status = %d, want 200", rec.Code)
	}
}

func TestPutContentRejectsUnknownLanguage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPut, "/api/v1/content",
		recommend.ContentItem{ID: "c1", Language: "fr"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTransparencyEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/v1/users/u1/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestWriteErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid feedback", recommend.ErrInvalidFeedback, http.StatusBadRequest},
		{"unsupported language", recommend.ErrUnsupportedLanguage, http.StatusBadRequest},
		{"content not found", recommend.ErrContentNotFound, http.StatusNotFound},
		{"unavailable", recommend.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.writeError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimiterRejectsOverBudget(t *testing.T) {
	rl := newRateLimiter(1, 1)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Error("second immediate request should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("distinct clients have independent budgets")
	}
}
