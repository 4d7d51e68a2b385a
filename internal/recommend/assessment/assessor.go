// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package assessment maintains per-language reading level estimates from
// observed session performance.
package assessment

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

// Assessor implements recommend.LevelAssessor.
type Assessor struct {
	config   *recommend.Config
	logger   zerolog.Logger
	profiles recommend.ProfileStore
}

// NewAssessor creates a reading level assessor.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewAssessor(cfg *recommend.Config, profiles recommend.ProfileStore, logger zerolog.Logger) *Assessor {
	return &Assessor{
		config:   cfg,
		logger:   logger.With().Str("component", "assessment").Logger(),
		profiles: profiles,
	}
}

// Assess updates the user's difficulty estimate for a language from one
// session's performance. The estimate moves toward the content's
// difficulty when the user performed well and retreats when they
// struggled, damped so a single session never swings it far.
func (a *Assessor) Assess(ctx context.Context, userID string, lang recommend.Language, contentDifficulty float64, perf recommend.PerformanceMetrics) (*recommend.ReadingLevel, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", recommend.ErrInvalidFeedback)
	}
	if err := validateMetrics(perf); err != nil {
		return nil, err
	}

	performance := performanceScore(perf)

	var updated recommend.ReadingLevel
	err := a.profiles.Commit(ctx, userID, func(profile *recommend.UserProfile) error {
		level := profile.Level(lang)
		adjustment := levelAdjustment(performance, contentDifficulty, level.Level)

		level.Level = lang.ClampLevel(level.Level + a.config.Learning.LevelStep*adjustment)
		level.Confidence = assessConfidence(level.Confidence, adjustment)
		level.AssessmentCount++

		if profile.ReadingLevels == nil {
			profile.ReadingLevels = make(map[recommend.Language]recommend.ReadingLevel, 2)
		}
		profile.ReadingLevels[lang] = level
		updated = level
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit level update: %w", err)
	}

	a.logger.Debug().
		Str("user_id", userID).
		Str("language", string(lang)).
		Float64("performance", performance).
		Float64("level", updated.Level).
		Int("assessments", updated.AssessmentCount).
		Msg("reading level assessed")

	return &updated, nil
}

// performanceScore blends the session metrics into [0, 1].
func performanceScore(perf recommend.PerformanceMetrics) float64 {
	speed := recommend.ClampUnit((perf.ReadingSpeedWPM - 100) / 200)
	pause := recommend.ClampUnit(1 - float64(perf.PauseCount)/10)
	interaction := min(float64(perf.InteractionCount)/5, 1)

	return perf.CompletionRate*0.4 + speed*0.3 + pause*0.2 + interaction*0.1
}

// levelAdjustment moves toward the content difficulty on strong
// performance and pulls back on weak performance.
func levelAdjustment(performance, difficulty, level float64) float64 {
	diff := difficulty - level
	switch {
	case performance > 0.8:
		return 0.1 * diff
	case performance > 0.6:
		return 0.05 * diff
	default:
		return -0.1 * math.Abs(diff)
	}
}

// assessConfidence nudges confidence up on small corrections and down on
// large ones, clamped to [0.1, 1.0].
func assessConfidence(confidence, adjustment float64) float64 {
	if math.Abs(adjustment) < 0.5 {
		confidence += 0.05
	} else {
		confidence -= 0.02
	}
	return math.Max(0.1, math.Min(1.0, confidence))
}

// validateMetrics rejects out-of-domain performance input.
func validateMetrics(perf recommend.PerformanceMetrics) error {
	switch {
	case perf.CompletionRate < 0 || perf.CompletionRate > 1:
		return fmt.Errorf("%w: completion rate %.2f outside [0, 1]", recommend.ErrInvalidFeedback, perf.CompletionRate)
	case perf.ReadingSpeedWPM < 0:
		return fmt.Errorf("%w: negative reading speed", recommend.ErrInvalidFeedback)
	case perf.PauseCount < 0:
		return fmt.Errorf("%w: negative pause count", recommend.ErrInvalidFeedback)
	case perf.InteractionCount < 0:
		return fmt.Errorf("%w: negative interaction count", recommend.ErrInvalidFeedback)
	}
	return nil
}
