// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"fmt"
	"time"
)

// Note: This package has no dependencies on other internal packages.
// Collaborators (catalog, behavior log, profile document store) and the
// scoring components are injected through the interfaces below, which the
// storage layer and the recommend subpackages implement.

// CatalogQuery filters a catalog query.
type CatalogQuery struct {
	// Language restricts results to one language when set.
	Language Language

	// ExcludeIDs removes specific items from the result set.
	ExcludeIDs map[string]struct{}

	// RequireAnalysis drops items the NLP pipeline has not processed.
	// Recommendation paths always set this.
	RequireAnalysis bool
}

// ContentCatalog is the read-only content collaborator.
type ContentCatalog interface {
	// Query returns items matching the filter.
	Query(ctx context.Context, q CatalogQuery) ([]ContentItem, error)

	// Get returns one item, or ErrContentNotFound.
	Get(ctx context.Context, id string) (*ContentItem, error)
}

// BehaviorStore is the reading-session collaborator.
type BehaviorStore interface {
	// ByUser returns the user's sessions, newest first.
	ByUser(ctx context.Context, userID string) ([]ReadingBehavior, error)

	// ByContent returns all sessions against one item.
	ByContent(ctx context.Context, contentID string) ([]ReadingBehavior, error)

	// Append records a completed session.
	Append(ctx context.Context, b ReadingBehavior) error
}

// ProfileStore owns the user preference document and its
// read-modify-write contract.
type ProfileStore interface {
	// GetOrCreate returns the profile, creating the default document on
	// first access. Idempotent: two calls for a brand-new id return
	// identical profiles.
	GetOrCreate(ctx context.Context, userID string) (*UserProfile, error)

	// Commit applies mutate to the latest profile document as a
	// transaction. Concurrent commits for the same user each observe the
	// previous commit's result; no update is lost to interleaving.
	// An error from mutate aborts the commit with no write.
	Commit(ctx context.Context, userID string, mutate func(*UserProfile) error) error
}

// DiscoveryLog persists discovery emissions and user responses.
type DiscoveryLog interface {
	// Record stores an emitted discovery recommendation.
	Record(ctx context.Context, rec DiscoveryRecommendation) error

	// RecentIDs returns content ids discovery-recommended to the user
	// within the window.
	RecentIDs(ctx context.Context, userID string, window time.Duration) (map[string]struct{}, error)

	// RecordResponse attaches the user's reaction to the latest emission
	// of the content. Audit only; it does not tune future scoring.
	RecordResponse(ctx context.Context, userID, contentID, response string) error
}

// TopicVocabulary exposes the global topic and content-type vocabulary
// used to compute a user's unexplored space.
type TopicVocabulary interface {
	Topics(ctx context.Context) ([]string, error)
	ContentTypes(ctx context.Context) ([]string, error)
}

// RetrievalPolicy selects the candidate-gating rules.
type RetrievalPolicy int

const (
	// PolicyStandard excludes completed content and gates to the user's
	// comfortable level band.
	PolicyStandard RetrievalPolicy = iota
	// PolicyDiscovery excludes all read and recently-discovered content
	// and allows an upward level stretch.
	PolicyDiscovery
)

// String returns the policy name.
func (p RetrievalPolicy) String() string {
	if p == PolicyDiscovery {
		return "discovery"
	}
	return "standard"
}

// CandidateRetriever pulls eligible content for scoring.
type CandidateRetriever interface {
	// Retrieve returns gated candidates for the user under the policy.
	Retrieve(ctx context.Context, profile *UserProfile, lang Language, policy RetrievalPolicy) ([]ContentItem, error)
}

// ContextualScore is the per-candidate breakdown the contextual scorer
// produces. All sub-scores are in [0, 1].
type ContextualScore struct {
	Total    float64 `json:"total"`
	Interest float64 `json:"interest"`
	LevelFit float64 `json:"level_fit"`
	Context  float64 `json:"context"`
	Time     float64 `json:"time"`
	Mood     float64 `json:"mood"`

	// Explanation is a human-readable reason assembled from the
	// sub-scores that crossed their reporting thresholds.
	Explanation string `json:"explanation,omitempty"`
}

// ContextScorer scores a standard candidate against the profile and the
// request context.
type ContextScorer interface {
	Score(ctx context.Context, profile *UserProfile, item *ContentItem, rctx *ReadingContext) (*ContextualScore, error)
}

// UserPatterns summarizes a user's established reading behavior for
// divergence scoring.
type UserPatterns struct {
	// EstablishedTopics are topics with learned weight above the
	// establishment threshold.
	EstablishedTopics map[string]struct{} `json:"established_topics"`

	// EstablishedContentTypes are the user's most-read content types.
	EstablishedContentTypes map[string]struct{} `json:"established_content_types"`

	// ComfortZone describes the difficulty range of well-completed
	// sessions in the request language.
	ComfortZone ComfortZone `json:"comfort_zone"`

	// UnexploredTopics is the vocabulary complement of established topics.
	UnexploredTopics []string `json:"unexplored_topics"`

	// UnexploredContentTypes is the vocabulary complement of established
	// content types.
	UnexploredContentTypes []string `json:"unexplored_content_types"`
}

// ComfortZone is the difficulty envelope of well-completed sessions.
type ComfortZone struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// DiscoveryScore is the per-candidate result of divergence evaluation.
type DiscoveryScore struct {
	// Eligible is false when the candidate cannot serve as a discovery
	// (no divergent topic, or neither a bridge nor a novel type).
	Eligible bool `json:"eligible"`

	// Divergence measures topic/type distance from established
	// preferences, in [0, 1]. Only candidates at or above the configured
	// minimum are emitted.
	Divergence float64 `json:"divergence"`

	// Accessibility measures how approachable the stretch is, in [0, 1].
	Accessibility float64 `json:"accessibility"`

	// BridgingTopics are candidate topics linked to established topics
	// through the bridge table.
	BridgingTopics []string `json:"bridging_topics,omitempty"`

	// SerendipityFactors are the discovery-only ranking boosts present.
	SerendipityFactors []string `json:"serendipity_factors,omitempty"`

	// Rank is the blended ranking score.
	Rank float64 `json:"rank"`

	// Reason cites the bridging topics, content-type novelty and
	// serendipity factors to the user.
	Reason string `json:"reason,omitempty"`
}

// DiscoveryEvaluator builds user patterns and scores candidates for
// bounded divergence.
type DiscoveryEvaluator interface {
	// Patterns summarizes the user's recent behavior for the language.
	Patterns(ctx context.Context, profile *UserProfile, lang Language) (*UserPatterns, error)

	// Evaluate scores one candidate against the patterns.
	Evaluate(ctx context.Context, patterns *UserPatterns, profile *UserProfile, item *ContentItem) (*DiscoveryScore, error)
}

// ScoredContent is a ranked recommendation result.
type ScoredContent struct {
	// Item is the recommended content.
	Item ContentItem `json:"item"`

	// Score is the ranking score, higher is better.
	Score float64 `json:"score"`

	// Scores is the sub-score breakdown.
	Scores map[string]float64 `json:"scores,omitempty"`

	// Explanation is a human-readable reason for the recommendation.
	Explanation string `json:"explanation,omitempty"`

	// Discovery carries divergence details for discovery results.
	Discovery *DiscoveryScore `json:"discovery,omitempty"`
}

// Reranker modifies a ranked list for diversity or other objectives.
type Reranker interface {
	// Name returns the reranker identifier.
	Name() string

	// Rerank selects up to limit items from the relevance-sorted input.
	Rerank(ctx context.Context, items []ScoredContent, limit int) []ScoredContent
}

// Feedback is an explicit feedback event from the user.
type Feedback struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`

	// Rating is a 1-5 star rating, nil when not given.
	Rating *int `json:"rating,omitempty"`

	// Liked is an explicit like/dislike, nil when not given.
	Liked *bool `json:"liked,omitempty"`

	// Comment is optional free text mined for preference keywords.
	Comment string `json:"comment,omitempty"`

	// Context carries factor:value pairs (e.g. time_of_day:evening) to
	// learn contextual preferences from.
	Context map[string]string `json:"context,omitempty"`
}

// Validate rejects out-of-domain feedback before any state mutation.
func (f *Feedback) Validate() error {
	if f.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidFeedback)
	}
	if f.ContentID == "" {
		return fmt.Errorf("%w: missing content id", ErrInvalidFeedback)
	}
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return fmt.Errorf("%w: rating %d outside [1, 5]", ErrInvalidFeedback, *f.Rating)
	}
	if f.Rating == nil && f.Liked == nil && f.Comment == "" {
		return fmt.Errorf("%w: no signal provided", ErrInvalidFeedback)
	}
	return nil
}

// FeedbackResult reports what a feedback application changed.
type FeedbackResult struct {
	// Value is the normalized preference-update value in [-1, 1].
	Value float64 `json:"value"`

	// Signals lists the signal types that contributed.
	Signals []string `json:"signals"`

	// TopicsUpdated is how many topic weights changed.
	TopicsUpdated int `json:"topics_updated"`
}

// FeedbackPatterns is the rolling-window behavior classification.
type FeedbackPatterns struct {
	// CompletionPattern is high_completer, low_completer,
	// selective_completer, browser or mixed.
	CompletionPattern string `json:"completion_pattern"`

	// TimePattern is fast_reader, slow_reader or average_reader.
	TimePattern string `json:"time_pattern"`

	// InteractionPattern is highly_interactive, moderately_interactive
	// or passive.
	InteractionPattern string `json:"interaction_pattern"`

	// ContentTypeDiversity counts distinct content types read.
	ContentTypeDiversity int `json:"content_type_diversity"`

	// PreferredTimeOfDay is the modal session time bucket.
	PreferredTimeOfDay TimeOfDay `json:"preferred_time_of_day,omitempty"`

	// PreferredDevice is the modal session device.
	PreferredDevice string `json:"preferred_device,omitempty"`

	// EngagementTrend is increasing, decreasing or stable, comparing the
	// mean engagement of the first and last sessions in the window.
	EngagementTrend string `json:"engagement_trend"`

	// SessionCount is how many sessions the window held.
	SessionCount int `json:"session_count"`

	// AverageCompletion is the mean completion rate in the window.
	AverageCompletion float64 `json:"average_completion"`
}

// FeedbackHandler normalizes and applies preference updates.
type FeedbackHandler interface {
	// Submit validates and applies explicit feedback.
	Submit(ctx context.Context, fb Feedback) (*FeedbackResult, error)

	// RecordSession appends a completed session and applies the implicit
	// signals it carries.
	RecordSession(ctx context.Context, b ReadingBehavior) (*FeedbackResult, error)

	// AnalyzePatterns classifies the user's recent behavior.
	AnalyzePatterns(ctx context.Context, userID string, window time.Duration) (*FeedbackPatterns, error)
}

// PerformanceMetrics is the session performance input to a reading-level
// assessment.
type PerformanceMetrics struct {
	CompletionRate   float64 `json:"completion_rate"`
	ReadingSpeedWPM  float64 `json:"reading_speed_wpm"`
	PauseCount       int     `json:"pause_count"`
	InteractionCount int     `json:"interaction_count"`
}

// LevelAssessor updates a user's per-language difficulty estimate from
// session performance.
type LevelAssessor interface {
	Assess(ctx context.Context, userID string, lang Language, contentDifficulty float64, perf PerformanceMetrics) (*ReadingLevel, error)
}
