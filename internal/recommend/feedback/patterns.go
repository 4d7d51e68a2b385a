// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/karasawa/shiori/internal/recommend"
)

// AnalyzePatterns classifies the user's behavior over a rolling window.
func (p *Processor) AnalyzePatterns(ctx context.Context, userID string, window time.Duration) (*recommend.FeedbackPatterns, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", recommend.ErrInvalidFeedback)
	}

	all, err := p.behaviors.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	cutoff := time.Now().Add(-window)
	sessions := make([]recommend.ReadingBehavior, 0, len(all))
	for i := range all {
		if all[i].Timestamp.After(cutoff) {
			sessions = append(sessions, all[i])
		}
	}

	patterns := &recommend.FeedbackPatterns{SessionCount: len(sessions)}
	if len(sessions) == 0 {
		return patterns, nil
	}

	patterns.CompletionPattern, patterns.AverageCompletion = completionPattern(sessions)
	patterns.TimePattern = timePattern(sessions)
	patterns.InteractionPattern = interactionPattern(sessions)
	patterns.PreferredTimeOfDay, patterns.PreferredDevice = contextualPattern(sessions)
	patterns.EngagementTrend = engagementTrend(sessions)

	diversity, err := p.contentTypeDiversity(ctx, sessions)
	if err != nil {
		return nil, err
	}
	patterns.ContentTypeDiversity = diversity

	return patterns, nil
}

// completionPattern classifies from the average completion and the
// shares of high (>0.8) and low (<0.3) sessions.
func completionPattern(sessions []recommend.ReadingBehavior) (string, float64) {
	var sum float64
	var high, low int
	for i := range sessions {
		cr := sessions[i].CompletionRate
		sum += cr
		if cr > 0.8 {
			high++
		}
		if cr < 0.3 {
			low++
		}
	}

	n := float64(len(sessions))
	avg := sum / n
	highShare, lowShare := float64(high)/n, float64(low)/n

	switch {
	case highShare >= 0.7:
		return "high_completer", avg
	case lowShare >= 0.7:
		return "low_completer", avg
	case highShare >= 0.3 && lowShare >= 0.3:
		return "selective_completer", avg
	case avg < 0.5 && low > high:
		return "browser", avg
	default:
		return "mixed", avg
	}
}

// timePattern classifies by mean words-per-minute. Sessions without a
// speed measurement are ignored.
func timePattern(sessions []recommend.ReadingBehavior) string {
	var sum float64
	var n int
	for i := range sessions {
		if wpm := sessions[i].ReadingSpeedWPM; wpm > 0 {
			sum += wpm
			n++
		}
	}
	if n == 0 {
		return "average_reader"
	}

	switch avg := sum / float64(n); {
	case avg > 220:
		return "fast_reader"
	case avg < 150:
		return "slow_reader"
	default:
		return "average_reader"
	}
}

// interactionPattern classifies by mean interactions per session.
func interactionPattern(sessions []recommend.ReadingBehavior) string {
	var sum int
	for i := range sessions {
		sum += sessions[i].InteractionCount
	}

	switch avg := float64(sum) / float64(len(sessions)); {
	case avg >= 5:
		return "highly_interactive"
	case avg >= 2:
		return "moderately_interactive"
	default:
		return "passive"
	}
}

// contextualPattern finds the modal time-of-day and device.
func contextualPattern(sessions []recommend.ReadingBehavior) (recommend.TimeOfDay, string) {
	times := make(map[recommend.TimeOfDay]int)
	devices := make(map[string]int)
	for i := range sessions {
		c := sessions[i].Context
		if c.TimeOfDay != "" {
			times[c.TimeOfDay]++
		}
		if c.Device != "" {
			devices[c.Device]++
		}
	}
	return modal(times), modal(devices)
}

// modal returns the most frequent key, smallest key winning ties so the
// result is deterministic.
func modal[K ~string](counts map[K]int) K {
	var best K
	bestCount := 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best
}

// engagementTrend compares mean engagement of the earliest three
// sessions against the latest three. Sessions arrive newest first.
func engagementTrend(sessions []recommend.ReadingBehavior) string {
	if len(sessions) < 4 {
		return "stable"
	}

	n := len(sessions)
	span := 3
	latest := meanEngagement(sessions[:span])
	earliest := meanEngagement(sessions[n-span:])

	switch diff := latest - earliest; {
	case diff > 0.1:
		return "increasing"
	case diff < -0.1:
		return "decreasing"
	default:
		return "stable"
	}
}

// meanEngagement averages the per-session engagement score.
func meanEngagement(sessions []recommend.ReadingBehavior) float64 {
	var sum float64
	for i := range sessions {
		sum += engagement(&sessions[i])
	}
	return sum / float64(len(sessions))
}

// engagement blends completion, interaction and speed into [0, 1].
func engagement(b *recommend.ReadingBehavior) float64 {
	interactions := min(float64(b.InteractionCount)/5, 1)
	speed := min(b.ReadingSpeedWPM/250, 1)
	return b.CompletionRate*0.4 + interactions*0.3 + speed*0.3
}

// contentTypeDiversity counts distinct content types across the window's
// sessions. Items no longer in the catalog are skipped.
func (p *Processor) contentTypeDiversity(ctx context.Context, sessions []recommend.ReadingBehavior) (int, error) {
	seen := make(map[string]struct{})
	types := make(map[string]struct{})

	for i := range sessions {
		id := sessions[i].ContentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		item, err := p.catalog.Get(ctx, id)
		if err != nil {
			if recommend.IsNotFound(err) {
				continue
			}
			return 0, fmt.Errorf("resolve content %s: %w", id, err)
		}
		if item.Metadata.ContentType != "" {
			types[item.Metadata.ContentType] = struct{}{}
		}
	}

	return len(types), nil
}
