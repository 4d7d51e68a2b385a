// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// maxSnapshots bounds the evolution history kept per profile.
const maxSnapshots = 50

// TransparencyReport is a human-readable view of everything the system
// has learned about a user.
type TransparencyReport struct {
	UserID        string                    `json:"user_id"`
	Topics        []TopicPreference         `json:"topics"`
	ContentTypes  []ContentTypePreference   `json:"content_types"`
	ReadingLevels map[Language]ReadingLevel `json:"reading_levels"`
	Contextual    []ContextualPreference    `json:"contextual_preferences"`

	// OverallConfidence is the mean topic confidence in [0, 1].
	OverallConfidence float64 `json:"overall_confidence"`

	// Summary lists the strongest learned signals in plain language.
	Summary []string `json:"summary"`

	GeneratedAt time.Time `json:"generated_at"`
}

// TopicShift describes how one topic weight moved since the last
// snapshot.
type TopicShift struct {
	Topic    string  `json:"topic"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

// EvolutionReport is the outcome of an evolution tracking pass.
type EvolutionReport struct {
	UserID string `json:"user_id"`

	// SnapshotTaken reports whether preferences drifted enough to
	// append a new snapshot.
	SnapshotTaken bool `json:"snapshot_taken"`

	// Shifts lists topics whose weight moved past the drift threshold
	// since the previous snapshot, largest movement first.
	Shifts []TopicShift `json:"shifts,omitempty"`

	// ConfidenceDelta is the overall confidence change since the
	// previous snapshot.
	ConfidenceDelta float64 `json:"confidence_delta"`

	// Snapshots is the history length after this pass.
	Snapshots int `json:"snapshots"`
}

// PreferenceTransparency returns the user's full learned profile with a
// plain-language summary. Read-only.
func (e *Engine) PreferenceTransparency(ctx context.Context, userID string) (*TransparencyReport, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidFeedback)
	}

	profile, err := e.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	topics := append([]TopicPreference(nil), profile.Topics...)
	sort.Slice(topics, func(i, j int) bool {
		return math.Abs(topics[i].Weight) > math.Abs(topics[j].Weight)
	})

	types := append([]ContentTypePreference(nil), profile.ContentTypes...)
	sort.Slice(types, func(i, j int) bool {
		return math.Abs(types[i].Preference) > math.Abs(types[j].Preference)
	})

	levels := make(map[Language]ReadingLevel, len(profile.ReadingLevels))
	for lang, lvl := range profile.ReadingLevels {
		levels[lang] = lvl
	}

	return &TransparencyReport{
		UserID:            userID,
		Topics:            topics,
		ContentTypes:      types,
		ReadingLevels:     levels,
		Contextual:        append([]ContextualPreference(nil), profile.ContextualPreferences...),
		OverallConfidence: profile.OverallConfidence(),
		Summary:           summarizeProfile(profile, topics, types),
		GeneratedAt:       time.Now(),
	}, nil
}

// TrackEvolution compares current topic weights against the latest
// snapshot and appends a new snapshot when preferences have drifted.
// The first call for a user always takes a baseline snapshot.
func (e *Engine) TrackEvolution(ctx context.Context, userID string) (*EvolutionReport, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidFeedback)
	}

	report := &EvolutionReport{UserID: userID}

	err := e.profiles.Commit(ctx, userID, func(p *UserProfile) error {
		*report = e.trackEvolution(p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("track evolution: %w", err)
	}

	return report, nil
}

// trackEvolution does the snapshot comparison inside a profile commit.
func (e *Engine) trackEvolution(p *UserProfile) EvolutionReport {
	report := EvolutionReport{UserID: p.UserID}

	current := topicWeights(p)
	confidence := p.OverallConfidence()

	if len(p.EvolutionHistory) == 0 {
		appendSnapshot(p, current, confidence)
		report.SnapshotTaken = true
		report.Snapshots = len(p.EvolutionHistory)
		return report
	}

	last := p.EvolutionHistory[len(p.EvolutionHistory)-1]
	report.ConfidenceDelta = confidence - last.OverallConfidence
	report.Shifts = topicShifts(last.TopicWeights, current, e.config.Learning.SnapshotWeightDelta)

	drifted := len(report.Shifts) > 0 ||
		math.Abs(report.ConfidenceDelta) > e.config.Learning.SnapshotConfidenceDelta
	if drifted {
		appendSnapshot(p, current, confidence)
		report.SnapshotTaken = true
	}
	report.Snapshots = len(p.EvolutionHistory)
	return report
}

// topicWeights extracts the topic weight map from a profile.
func topicWeights(p *UserProfile) map[string]float64 {
	weights := make(map[string]float64, len(p.Topics))
	for _, t := range p.Topics {
		weights[t.Topic] = t.Weight
	}
	return weights
}

// topicShifts lists topics whose weight moved more than threshold
// between two weight maps, largest absolute movement first. A topic
// absent from one side is treated as weight zero.
func topicShifts(prev, cur map[string]float64, threshold float64) []TopicShift {
	seen := make(map[string]struct{}, len(prev)+len(cur))
	var shifts []TopicShift

	collect := func(topic string) {
		if _, ok := seen[topic]; ok {
			return
		}
		seen[topic] = struct{}{}

		before, after := prev[topic], cur[topic]
		delta := after - before
		if math.Abs(delta) > threshold {
			shifts = append(shifts, TopicShift{
				Topic:    topic,
				Previous: before,
				Current:  after,
				Delta:    delta,
			})
		}
	}

	for topic := range cur {
		collect(topic)
	}
	for topic := range prev {
		collect(topic)
	}

	sort.Slice(shifts, func(i, j int) bool {
		if d1, d2 := math.Abs(shifts[i].Delta), math.Abs(shifts[j].Delta); d1 != d2 {
			return d1 > d2
		}
		return shifts[i].Topic < shifts[j].Topic
	})
	return shifts
}

// appendSnapshot records a snapshot, trimming the oldest entries past
// the history bound.
func appendSnapshot(p *UserProfile, weights map[string]float64, confidence float64) {
	p.EvolutionHistory = append(p.EvolutionHistory, PreferenceSnapshot{
		TakenAt:           time.Now(),
		TopicWeights:      weights,
		OverallConfidence: confidence,
	})
	if n := len(p.EvolutionHistory); n > maxSnapshots {
		p.EvolutionHistory = p.EvolutionHistory[n-maxSnapshots:]
	}
}

// summarizeProfile builds the plain-language summary lines.
func summarizeProfile(p *UserProfile, topics []TopicPreference, types []ContentTypePreference) []string {
	var lines []string

	for i, t := range topics {
		if i >= 5 || math.Abs(t.Weight) < 0.2 {
			break
		}
		verb := "enjoys"
		if t.Weight < 0 {
			verb = "avoids"
		}
		lines = append(lines, fmt.Sprintf("%s %s (weight %.2f, confidence %.2f, %s)",
			verb, t.Topic, t.Weight, t.Confidence, t.Trend))
	}

	for i, ct := range types {
		if i >= 3 || math.Abs(ct.Preference) < 0.2 {
			break
		}
		verb := "prefers"
		if ct.Preference < 0 {
			verb = "dislikes"
		}
		lines = append(lines, fmt.Sprintf("%s %s content (preference %.2f)", verb, ct.Type, ct.Preference))
	}

	for _, lang := range []Language{LanguageEnglish, LanguageJapanese} {
		lvl, ok := p.ReadingLevels[lang]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s reading level %.2f (confidence %.2f, %d assessments)",
			lang, lvl.Level, lvl.Confidence, lvl.AssessmentCount))
	}

	if len(p.Topics) == 0 {
		lines = append(lines, "no topic preferences learned yet")
	}
	return lines
}
