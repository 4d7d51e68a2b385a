// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Signals defines the fusion base weight of each feedback signal type.
	Signals SignalWeights `json:"signals" koanf:"signals"`

	// Learning contains preference update parameters.
	Learning LearningConfig `json:"learning" koanf:"learning"`

	// Scoring contains contextual scoring parameters.
	Scoring ScoringConfig `json:"scoring" koanf:"scoring"`

	// Gating contains reading-level candidate gating bands.
	Gating GatingConfig `json:"gating" koanf:"gating"`

	// Discovery contains divergence scoring parameters.
	Discovery DiscoveryConfig `json:"discovery" koanf:"discovery"`

	// Diversity contains result diversity parameters.
	Diversity DiversityConfig `json:"diversity" koanf:"diversity"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Breaker contains circuit breaker settings for collaborator calls.
	Breaker BreakerConfig `json:"breaker" koanf:"breaker"`
}

// SignalWeights are the fusion base weights per signal type.
// Weights express relative trust; they do not need to sum to 1.
type SignalWeights struct {
	ExplicitRating float64 `json:"explicit_rating" koanf:"explicit_rating"`
	LikeDislike    float64 `json:"like_dislike" koanf:"like_dislike"`
	Comment        float64 `json:"comment" koanf:"comment"`
	Completion     float64 `json:"completion" koanf:"completion"`
	Time           float64 `json:"time" koanf:"time"`
	Interaction    float64 `json:"interaction" koanf:"interaction"`
	Return         float64 `json:"return" koanf:"return"`
}

// ForType returns the base weight for a signal type name.
func (w SignalWeights) ForType(signalType string) float64 {
	switch signalType {
	case "explicit_rating":
		return w.ExplicitRating
	case "like_dislike":
		return w.LikeDislike
	case "comment":
		return w.Comment
	case "completion":
		return w.Completion
	case "time":
		return w.Time
	case "interaction":
		return w.Interaction
	case "return":
		return w.Return
	default:
		return 0
	}
}

// LearningConfig contains preference update parameters.
type LearningConfig struct {
	// TopicRate is the learning rate for existing topic weights.
	// Default: 0.1.
	TopicRate float64 `json:"topic_rate" koanf:"topic_rate"`

	// ContextRate is the learning rate for contextual preferences.
	// Default: 0.05.
	ContextRate float64 `json:"context_rate" koanf:"context_rate"`

	// NewTopicScale scales the initial weight of a new topic.
	// Default: 0.5.
	NewTopicScale float64 `json:"new_topic_scale" koanf:"new_topic_scale"`

	// NewContextScale scales the initial weight of a new context entry.
	// Default: 0.3.
	NewContextScale float64 `json:"new_context_scale" koanf:"new_context_scale"`

	// ConfidenceNudge is added to confidence on a meaningful update.
	// Default: 0.05.
	ConfidenceNudge float64 `json:"confidence_nudge" koanf:"confidence_nudge"`

	// ConfidenceDecay is subtracted when an update is not meaningful.
	// Default: 0.02.
	ConfidenceDecay float64 `json:"confidence_decay" koanf:"confidence_decay"`

	// MeaningfulValue is the |value| threshold for a confidence nudge.
	// Default: 0.1.
	MeaningfulValue float64 `json:"meaningful_value" koanf:"meaningful_value"`

	// LevelStep damps reading-level adjustments.
	// Default: 0.3.
	LevelStep float64 `json:"level_step" koanf:"level_step"`

	// SnapshotWeightDelta triggers an evolution snapshot when any topic
	// weight moved more than this since the last snapshot. Default: 0.2.
	SnapshotWeightDelta float64 `json:"snapshot_weight_delta" koanf:"snapshot_weight_delta"`

	// SnapshotConfidenceDelta triggers a snapshot on overall confidence
	// movement. Default: 0.1.
	SnapshotConfidenceDelta float64 `json:"snapshot_confidence_delta" koanf:"snapshot_confidence_delta"`
}

// ScoringConfig contains contextual scoring parameters.
type ScoringConfig struct {
	// InterestWeight is the share of the interest sub-score.
	// Default: 0.5.
	InterestWeight float64 `json:"interest_weight" koanf:"interest_weight"`

	// LevelWeight is the share of the level-fit sub-score.
	// Default: 0.2.
	LevelWeight float64 `json:"level_weight" koanf:"level_weight"`

	// SituationWeight is the share of the combined context, time-of-day
	// and mood sub-scores. Default: 0.3.
	SituationWeight float64 `json:"situation_weight" koanf:"situation_weight"`
}

// GatingConfig contains reading-level candidate gating bands.
type GatingConfig struct {
	// EnglishBand is the standard +/- grade-level band. Default: 2.0.
	EnglishBand float64 `json:"english_band" koanf:"english_band"`

	// EnglishStretch is the discovery upward stretch. Default: 3.0.
	EnglishStretch float64 `json:"english_stretch" koanf:"english_stretch"`

	// JapaneseBand is the standard +/- kanji-density band. Default: 0.2.
	JapaneseBand float64 `json:"japanese_band" koanf:"japanese_band"`

	// JapaneseStretch is the discovery upward stretch. Default: 0.3.
	JapaneseStretch float64 `json:"japanese_stretch" koanf:"japanese_stretch"`

	// CompletedThreshold marks content as read for exclusion purposes.
	// Default: 0.8.
	CompletedThreshold float64 `json:"completed_threshold" koanf:"completed_threshold"`
}

// DiscoveryConfig contains divergence scoring parameters.
type DiscoveryConfig struct {
	// MinDivergence gates emission; candidates below it are dropped.
	// Default: 0.4.
	MinDivergence float64 `json:"min_divergence" koanf:"min_divergence"`

	// EstablishedWeight is the topic weight above which a topic counts
	// as established. Default: 0.3.
	EstablishedWeight float64 `json:"established_weight" koanf:"established_weight"`

	// EstablishedTypes is how many most-read content types count as
	// established. Default: 3.
	EstablishedTypes int `json:"established_types" koanf:"established_types"`

	// PatternWindow is how many recent behaviors feed pattern building.
	// Default: 50.
	PatternWindow int `json:"pattern_window" koanf:"pattern_window"`

	// ComfortCompletion is the completion rate above which a session
	// contributes to the comfort zone. Default: 0.7.
	ComfortCompletion float64 `json:"comfort_completion" koanf:"comfort_completion"`

	// ExclusionWindow is how long an emitted discovery suppresses
	// re-emission. Default: 720h (30 days).
	ExclusionWindow time.Duration `json:"exclusion_window" koanf:"exclusion_window"`

	// RecencyWindow marks content as fresh for serendipity.
	// Default: 168h (7 days).
	RecencyWindow time.Duration `json:"recency_window" koanf:"recency_window"`

	// SweetSpotMin and SweetSpotMax bound the "sweet-spot" popularity
	// serendipity factor. Defaults: 5 and 50 readers.
	SweetSpotMin int `json:"sweet_spot_min" koanf:"sweet_spot_min"`
	SweetSpotMax int `json:"sweet_spot_max" koanf:"sweet_spot_max"`

	// Bridges maps an established topic to adjacent topics that can
	// bridge a divergent candidate back to it. Hand-authored editorial
	// data, injected as configuration.
	Bridges map[string][]string `json:"bridges" koanf:"bridges"`
}

// DiversityConfig contains result diversity parameters.
type DiversityConfig struct {
	// MaxShare caps any single topic or content type at limit*MaxShare
	// occurrences in a standard result list. Default: 0.4.
	MaxShare float64 `json:"max_share" koanf:"max_share"`

	// MaxTopicOverlap caps shared topics between discovery selections.
	// Default: 1.
	MaxTopicOverlap int `json:"max_topic_overlap" koanf:"max_topic_overlap"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// MaxCandidates bounds how many candidates are scored per request.
	// Default: 500.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`

	// DefaultLimit is the result count when the caller does not ask for
	// one. Default: 10.
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`

	// MaxLimit caps the requested result count. Default: 50.
	MaxLimit int `json:"max_limit" koanf:"max_limit"`

	// ScoreBatchSize bounds the scoring fan-out to limit load on the
	// content and behavior collaborators. Default: 10.
	ScoreBatchSize int `json:"score_batch_size" koanf:"score_batch_size"`

	// ScoreTimeout bounds a single candidate's scoring. Default: 2s.
	ScoreTimeout time.Duration `json:"score_timeout" koanf:"score_timeout"`
}

// BreakerConfig contains circuit breaker settings for collaborator calls.
type BreakerConfig struct {
	// Enabled controls whether collaborator calls pass through the
	// breaker. Default: true.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// MinRequests is the minimum sample before the breaker can trip.
	// Default: 10.
	MinRequests uint32 `json:"min_requests" koanf:"min_requests"`

	// FailureRatio trips the breaker at or above this failure rate.
	// Default: 0.6.
	FailureRatio float64 `json:"failure_ratio" koanf:"failure_ratio"`

	// OpenTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	OpenTimeout time.Duration `json:"open_timeout" koanf:"open_timeout"`
}

// DefaultBridges returns the built-in editorial topic bridge table.
// Deployments override it wholesale from configuration.
func DefaultBridges() map[string][]string {
	return map[string][]string{
		"technology": {"science", "design", "business", "futurism"},
		"science":    {"technology", "philosophy", "nature", "history"},
		"fiction":    {"poetry", "memoir", "mythology", "drama"},
		"history":    {"biography", "politics", "archaeology", "economics"},
		"business":   {"economics", "psychology", "self_improvement"},
		"psychology": {"philosophy", "neuroscience", "self_improvement"},
		"travel":     {"culture", "food", "memoir", "photography"},
		"food":       {"travel", "culture", "health"},
		"sports":     {"health", "biography", "psychology"},
		"art":        {"design", "photography", "architecture"},
	}
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Signals: SignalWeights{
			ExplicitRating: 1.0,
			LikeDislike:    0.8,
			Comment:        0.9,
			Completion:     0.4,
			Time:           0.3,
			Interaction:    0.2,
			Return:         0.5,
		},
		Learning: LearningConfig{
			TopicRate:               0.1,
			ContextRate:             0.05,
			NewTopicScale:           0.5,
			NewContextScale:         0.3,
			ConfidenceNudge:         0.05,
			ConfidenceDecay:         0.02,
			MeaningfulValue:         0.1,
			LevelStep:               0.3,
			SnapshotWeightDelta:     0.2,
			SnapshotConfidenceDelta: 0.1,
		},
		Scoring: ScoringConfig{
			InterestWeight:  0.5,
			LevelWeight:     0.2,
			SituationWeight: 0.3,
		},
		Gating: GatingConfig{
			EnglishBand:        2.0,
			EnglishStretch:     3.0,
			JapaneseBand:       0.2,
			JapaneseStretch:    0.3,
			CompletedThreshold: 0.8,
		},
		Discovery: DiscoveryConfig{
			MinDivergence:     0.4,
			EstablishedWeight: 0.3,
			EstablishedTypes:  3,
			PatternWindow:     50,
			ComfortCompletion: 0.7,
			ExclusionWindow:   30 * 24 * time.Hour,
			RecencyWindow:     7 * 24 * time.Hour,
			SweetSpotMin:      5,
			SweetSpotMax:      50,
			Bridges:           DefaultBridges(),
		},
		Diversity: DiversityConfig{
			MaxShare:        0.4,
			MaxTopicOverlap: 1,
		},
		Limits: LimitsConfig{
			MaxCandidates:  500,
			DefaultLimit:   10,
			MaxLimit:       50,
			ScoreBatchSize: 10,
			ScoreTimeout:   2 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MinRequests:  10,
			FailureRatio: 0.6,
			OpenTimeout:  30 * time.Second,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Learning.TopicRate <= 0 || c.Learning.TopicRate > 1 {
		return fmt.Errorf("learning.topic_rate must be in (0, 1], got %f", c.Learning.TopicRate)
	}
	if c.Learning.ContextRate <= 0 || c.Learning.ContextRate > 1 {
		return fmt.Errorf("learning.context_rate must be in (0, 1], got %f", c.Learning.ContextRate)
	}
	if c.Learning.LevelStep <= 0 || c.Learning.LevelStep > 1 {
		return fmt.Errorf("learning.level_step must be in (0, 1], got %f", c.Learning.LevelStep)
	}

	sum := c.Scoring.InterestWeight + c.Scoring.LevelWeight + c.Scoring.SituationWeight
	if sum <= 0 {
		return fmt.Errorf("scoring weights must have a positive sum, got %f", sum)
	}

	if c.Gating.EnglishBand <= 0 || c.Gating.JapaneseBand <= 0 {
		return fmt.Errorf("gating bands must be positive")
	}
	if c.Gating.CompletedThreshold <= 0 || c.Gating.CompletedThreshold > 1 {
		return fmt.Errorf("gating.completed_threshold must be in (0, 1], got %f", c.Gating.CompletedThreshold)
	}

	if c.Discovery.MinDivergence < 0 || c.Discovery.MinDivergence > 1 {
		return fmt.Errorf("discovery.min_divergence must be in [0, 1], got %f", c.Discovery.MinDivergence)
	}
	if c.Discovery.PatternWindow < 1 {
		return fmt.Errorf("discovery.pattern_window must be positive, got %d", c.Discovery.PatternWindow)
	}
	if c.Discovery.ExclusionWindow <= 0 {
		return fmt.Errorf("discovery.exclusion_window must be positive, got %v", c.Discovery.ExclusionWindow)
	}
	if c.Discovery.SweetSpotMin > c.Discovery.SweetSpotMax {
		return fmt.Errorf("discovery.sweet_spot_min must be <= sweet_spot_max")
	}

	if c.Diversity.MaxShare <= 0 || c.Diversity.MaxShare > 1 {
		return fmt.Errorf("diversity.max_share must be in (0, 1], got %f", c.Diversity.MaxShare)
	}

	if c.Limits.MaxCandidates < 1 {
		return fmt.Errorf("limits.max_candidates must be positive, got %d", c.Limits.MaxCandidates)
	}
	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d",
			c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.ScoreBatchSize < 1 {
		return fmt.Errorf("limits.score_batch_size must be positive, got %d", c.Limits.ScoreBatchSize)
	}
	if c.Limits.ScoreTimeout <= 0 {
		return fmt.Errorf("limits.score_timeout must be positive, got %v", c.Limits.ScoreTimeout)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Discovery.Bridges != nil {
		bridges := make(map[string][]string, len(c.Discovery.Bridges))
		for topic, adjacent := range c.Discovery.Bridges {
			bridges[topic] = append([]string(nil), adjacent...)
		}
		clone.Discovery.Bridges = bridges
	}
	return &clone
}
