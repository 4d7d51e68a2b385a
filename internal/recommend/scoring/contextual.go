// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package scoring ranks candidates against the learned profile and the
// caller's reading situation.
package scoring

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

// neutral is the sub-score for a dimension the request gives no signal
// on. Missing context neither helps nor hurts a candidate.
const neutral = 0.5

// Scorer implements recommend.ContextScorer.
type Scorer struct {
	config *recommend.Config
	logger zerolog.Logger
}

// NewScorer creates a contextual scorer.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewScorer(cfg *recommend.Config, logger zerolog.Logger) *Scorer {
	return &Scorer{
		config: cfg,
		logger: logger.With().Str("component", "scoring").Logger(),
	}
}

// Score blends interest, level fit and situational fit into one ranking
// score in [0, 1].
func (s *Scorer) Score(ctx context.Context, profile *recommend.UserProfile, item *recommend.ContentItem, rctx *recommend.ReadingContext) (*recommend.ContextualScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score := &recommend.ContextualScore{
		Interest: interestScore(profile, item),
		LevelFit: levelFit(profile, item),
		Context:  contextScore(item, rctx),
		Time:     timeScore(item, rctx),
		Mood:     moodScore(item, rctx),
	}

	situation := (score.Context + score.Time + score.Mood) / 3
	weights := s.config.Scoring
	score.Total = recommend.ClampUnit(
		score.Interest*weights.InterestWeight +
			score.LevelFit*weights.LevelWeight +
			situation*weights.SituationWeight)
	score.Explanation = explain(score)

	return score, nil
}

// interestScore is the mean, over the candidate's topics, of the user's
// weight scaled by their confidence in it. Topics the user has no
// preference for contribute zero.
func interestScore(profile *recommend.UserProfile, item *recommend.ContentItem) float64 {
	topics := item.Topics()
	if len(topics) == 0 {
		return 0
	}

	var sum float64
	for _, topic := range topics {
		if pref, ok := profile.Topic(topic); ok {
			sum += pref.Weight * pref.Confidence
		}
	}
	return recommend.ClampUnit(sum / float64(len(topics)))
}

// levelFit scores how close the content difficulty sits to the user's
// level. Slightly-above content scores as well as at-level content.
func levelFit(profile *recommend.UserProfile, item *recommend.ContentItem) float64 {
	lang := item.Language
	diff := item.DifficultyFor(lang) - profile.Level(lang).Level

	if lang == recommend.LanguageJapanese {
		switch {
		case diff >= -0.1 && diff <= 0.1:
			return 1.0
		case diff >= -0.2 && diff <= 0.2:
			return 0.7
		default:
			return 0.3
		}
	}

	switch {
	case diff >= -1 && diff <= 1.5:
		return 1.0
	case diff >= -2 && diff <= 3:
		return 0.7
	default:
		return 0.3
	}
}

// contextScore blends time budget, device and location fit.
func contextScore(item *recommend.ContentItem, rctx *recommend.ReadingContext) float64 {
	if rctx == nil {
		return neutral
	}
	est := item.Metadata.EstimatedReadingTime

	return 0.4*timeBudgetFit(rctx.AvailableMinutes, est) +
		0.3*deviceFit(rctx.Device, est) +
		0.3*locationFit(rctx.Location, item, est)
}

// timeBudgetFit compares the user's available time to the item's
// estimated reading time.
func timeBudgetFit(availableMinutes, estimatedMinutes int) float64 {
	if availableMinutes <= 0 || estimatedMinutes <= 0 {
		return neutral
	}

	switch ratio := float64(availableMinutes) / float64(estimatedMinutes); {
	case ratio >= 0.8 && ratio <= 1.5:
		return 1.0
	case ratio >= 0.5 && ratio <= 2.0:
		return 0.7
	default:
		return 0.3
	}
}

// deviceFit penalizes long reads on small screens.
func deviceFit(device string, estimatedMinutes int) float64 {
	if estimatedMinutes <= 0 {
		return neutral
	}

	switch strings.ToLower(device) {
	case "phone", "mobile":
		switch {
		case estimatedMinutes <= 15:
			return 1.0
		case estimatedMinutes <= 30:
			return 0.6
		default:
			return 0.3
		}
	case "tablet", "e-reader", "ereader":
		return 0.8
	case "desktop", "laptop":
		if estimatedMinutes >= 15 {
			return 0.9
		}
		return 0.7
	default:
		return neutral
	}
}

// locationFit matches reading length and register to the place.
func locationFit(location string, item *recommend.ContentItem, estimatedMinutes int) float64 {
	switch strings.ToLower(location) {
	case "commute", "transit", "train", "bus":
		if estimatedMinutes > 0 && estimatedMinutes <= 20 {
			return 1.0
		}
		return 0.4
	case "home":
		return 0.8
	case "work", "office":
		if isStudious(item.Metadata.ContentType) {
			return 0.9
		}
		return 0.5
	default:
		return neutral
	}
}

// Time-of-day fit levels. The table boosts content that suits the hour
// and penalizes content that fights it; everything else sits at neutral.
const (
	strongFit = 1.0
	goodFit   = 0.9
	poorFit   = 0.3
)

// timeScore applies the time-of-day fit table.
func timeScore(item *recommend.ContentItem, rctx *recommend.ReadingContext) float64 {
	if rctx == nil || rctx.TimeOfDay == "" {
		return neutral
	}

	contentType := strings.ToLower(item.Metadata.ContentType)
	est := item.Metadata.EstimatedReadingTime

	switch rctx.TimeOfDay {
	case recommend.Morning:
		if isStudious(contentType) || contentType == "news" {
			return goodFit
		}
		if isLight(contentType) {
			return poorFit
		}
	case recommend.Afternoon:
		if isStudious(contentType) {
			return goodFit
		}
	case recommend.Evening:
		if contentType == "fiction" {
			return strongFit
		}
		if isLight(contentType) {
			return goodFit
		}
	case recommend.Night:
		if est > 0 && est <= 15 {
			return goodFit
		}
		if est > 15 {
			return poorFit
		}
	}

	return neutral
}

// moodScore matches structural complexity and length to the mood's
// target band.
func moodScore(item *recommend.ContentItem, rctx *recommend.ReadingContext) float64 {
	if rctx == nil || rctx.Mood == "" {
		return neutral
	}

	var complexityAdj float64
	switch rctx.Mood {
	case recommend.MoodFocused:
		complexityAdj = 0.2
	case recommend.MoodRelaxed:
		complexityAdj = -0.1
	case recommend.MoodTired:
		complexityAdj = -0.3
	default:
		return neutral
	}

	score := neutral

	if item.Analysis != nil {
		target := recommend.ClampUnit(0.5 + complexityAdj)
		if diff := item.Analysis.Complexity.Score - target; diff >= -0.15 && diff <= 0.15 {
			score *= 1.2
		}
	}
	if lengthMatchesMood(rctx.Mood, item.Metadata.EstimatedReadingTime) {
		score *= 1.3
	}

	return recommend.ClampUnit(score)
}

// lengthMatchesMood maps moods to preferred reading lengths.
func lengthMatchesMood(mood recommend.Mood, estimatedMinutes int) bool {
	if estimatedMinutes <= 0 {
		return false
	}
	switch mood {
	case recommend.MoodFocused:
		return estimatedMinutes > 30
	case recommend.MoodRelaxed:
		return estimatedMinutes >= 15 && estimatedMinutes <= 30
	case recommend.MoodTired:
		return estimatedMinutes < 15
	default:
		return false
	}
}

// isStudious covers the content types that fit focused daytime reading.
func isStudious(contentType string) bool {
	switch contentType {
	case "educational", "technical", "tutorial", "documentation":
		return true
	default:
		return false
	}
}

// isLight covers relaxed-register content types.
func isLight(contentType string) bool {
	switch contentType {
	case "fiction", "entertainment", "blog", "comic":
		return true
	default:
		return false
	}
}

// explain assembles the reason from the sub-scores that crossed their
// reporting thresholds.
func explain(score *recommend.ContextualScore) string {
	var reasons []string
	if score.Interest > 0.6 {
		reasons = append(reasons, "matches your interests")
	}
	if score.LevelFit > 0.8 {
		reasons = append(reasons, "right at your reading level")
	}
	if score.Time > 0.8 {
		reasons = append(reasons, "suits this time of day")
	}
	if score.Mood > 0.7 {
		reasons = append(reasons, "fits your current mood")
	}
	if len(reasons) == 0 {
		return "recommended for you"
	}
	return strings.Join(reasons, "; ")
}
