// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package feedback turns explicit feedback and recorded reading sessions
// into preference updates on the user profile.
package feedback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karasawa/shiori/internal/recommend"
)

// signal is one normalized preference signal before fusion.
type signal struct {
	Type       string
	Value      float64
	Confidence float64
}

// Processor implements recommend.FeedbackHandler.
type Processor struct {
	config    *recommend.Config
	logger    zerolog.Logger
	profiles  recommend.ProfileStore
	behaviors recommend.BehaviorStore
	catalog   recommend.ContentCatalog
}

// NewProcessor creates a feedback processor.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewProcessor(cfg *recommend.Config, profiles recommend.ProfileStore, behaviors recommend.BehaviorStore, catalog recommend.ContentCatalog, logger zerolog.Logger) *Processor {
	return &Processor{
		config:    cfg,
		logger:    logger.With().Str("component", "feedback").Logger(),
		profiles:  profiles,
		behaviors: behaviors,
		catalog:   catalog,
	}
}

// Submit validates and applies explicit feedback.
func (p *Processor) Submit(ctx context.Context, fb recommend.Feedback) (*recommend.FeedbackResult, error) {
	if err := fb.Validate(); err != nil {
		return nil, err
	}

	item, err := p.catalog.Get(ctx, fb.ContentID)
	if err != nil {
		return nil, fmt.Errorf("resolve content %s: %w", fb.ContentID, err)
	}

	signals := explicitSignals(fb)
	value := p.fuse(signals)

	result, err := p.apply(ctx, fb.UserID, item, value, fb.Context)
	if err != nil {
		return nil, err
	}
	result.Signals = signalNames(signals)

	p.logger.Debug().
		Str("user_id", fb.UserID).
		Str("content_id", fb.ContentID).
		Float64("value", value).
		Strs("signals", result.Signals).
		Msg("explicit feedback applied")

	return result, nil
}

// RecordSession appends a completed session and applies the implicit
// signals it carries. Sessions with no extractable signal still get
// recorded; the profile is left untouched.
func (p *Processor) RecordSession(ctx context.Context, b recommend.ReadingBehavior) (*recommend.FeedbackResult, error) {
	if err := validateBehavior(&b); err != nil {
		return nil, err
	}
	normalizeBehavior(&b)

	item, err := p.catalog.Get(ctx, b.ContentID)
	if err != nil {
		return nil, fmt.Errorf("resolve content %s: %w", b.ContentID, err)
	}

	returning, err := p.isReturnVisit(ctx, b.UserID, b.ContentID)
	if err != nil {
		return nil, fmt.Errorf("check prior sessions: %w", err)
	}

	if err := p.behaviors.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("append session: %w", err)
	}

	signals := p.implicitSignals(&b, item, returning)
	if len(signals) == 0 {
		return &recommend.FeedbackResult{}, nil
	}

	value := p.fuse(signals)

	result, err := p.apply(ctx, b.UserID, item, value, contextPairs(b.Context))
	if err != nil {
		return nil, err
	}
	result.Signals = signalNames(signals)

	p.logger.Debug().
		Str("user_id", b.UserID).
		Str("content_id", b.ContentID).
		Float64("value", value).
		Strs("signals", result.Signals).
		Msg("session signals applied")

	return result, nil
}

// explicitSignals normalizes the explicit inputs that are present.
func explicitSignals(fb recommend.Feedback) []signal {
	var signals []signal

	if fb.Rating != nil {
		signals = append(signals, signal{
			Type:       "explicit_rating",
			Value:      float64(*fb.Rating-3) / 2,
			Confidence: 1.0,
		})
	}
	if fb.Liked != nil {
		value := 0.8
		if !*fb.Liked {
			value = -0.8
		}
		signals = append(signals, signal{Type: "like_dislike", Value: value, Confidence: 1.0})
	}
	if fb.Comment != "" {
		signals = append(signals, signal{
			Type:       "comment",
			Value:      commentSentiment(fb.Comment),
			Confidence: 0.8,
		})
	}
	return signals
}

// implicitSignals extracts the independent signals a session carries.
func (p *Processor) implicitSignals(b *recommend.ReadingBehavior, item *recommend.ContentItem, returning bool) []signal {
	var signals []signal

	switch {
	case b.CompletionRate >= 0.8:
		signals = append(signals, signal{Type: "completion", Value: 0.6, Confidence: 0.8})
	case b.CompletionRate <= 0.2:
		signals = append(signals, signal{Type: "completion", Value: -0.4, Confidence: 0.6})
	}

	if expected := float64(item.Metadata.EstimatedReadingTime); expected > 0 && b.ActualMinutes > 0 {
		ratio := b.ActualMinutes / expected
		switch {
		case ratio >= 1.2:
			signals = append(signals, signal{Type: "time", Value: 0.3, Confidence: 0.5})
		case ratio <= 0.5:
			signals = append(signals, signal{Type: "time", Value: -0.2, Confidence: 0.4})
		}
	}

	if b.InteractionCount >= 5 {
		signals = append(signals, signal{Type: "interaction", Value: 0.4, Confidence: 0.6})
	}
	if b.HighlightCount > 0 || b.NoteCount > 0 {
		signals = append(signals, signal{Type: "interaction", Value: 0.2, Confidence: 0.4})
	}

	if returning {
		signals = append(signals, signal{Type: "return", Value: 0.5, Confidence: 0.7})
	}

	return signals
}

// fuse combines present signals into a single value in [-1, 1] using the
// configured base weights.
func (p *Processor) fuse(signals []signal) float64 {
	var weighted, norm float64
	for _, s := range signals {
		w := p.config.Signals.ForType(s.Type)
		weighted += s.Value * w * s.Confidence
		norm += w * s.Confidence
	}
	if norm == 0 {
		return 0
	}
	return recommend.ClampWeight(weighted / norm)
}

// apply commits the fused value to the profile's topic, content-type and
// contextual preferences. One commit covers the whole update; concurrent
// feedback for the same user never produces partial writes.
func (p *Processor) apply(ctx context.Context, userID string, item *recommend.ContentItem, value float64, ctxPairs map[string]string) (*recommend.FeedbackResult, error) {
	result := &recommend.FeedbackResult{Value: value}
	now := time.Now()

	err := p.profiles.Commit(ctx, userID, func(profile *recommend.UserProfile) error {
		if item.Analysis != nil {
			for _, ts := range item.Analysis.Topics {
				p.applyTopic(profile, ts, value, now)
				result.TopicsUpdated++
			}
		}
		p.applyContentType(profile, item.Metadata.ContentType, value, now)
		for factor, v := range ctxPairs {
			p.applyContext(profile, factor, v, value, now)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit preference update: %w", err)
	}
	return result, nil
}

// applyTopic updates one topic weight, scaled by the analyzer's topic
// confidence so weak topic assignments move the profile less.
func (p *Processor) applyTopic(profile *recommend.UserProfile, ts recommend.TopicScore, value float64, now time.Time) {
	lr := p.config.Learning
	meaningful := math.Abs(value) >= lr.MeaningfulValue

	if pref, ok := profile.Topic(ts.Topic); ok {
		delta := value * ts.Confidence * lr.TopicRate
		pref.Weight = recommend.ClampWeight(pref.Weight + delta)
		pref.Trend = trendFor(delta)
		pref.Confidence = nudgeConfidence(pref.Confidence, meaningful, lr)
		pref.LastUpdated = now
		return
	}

	profile.Topics = append(profile.Topics, recommend.TopicPreference{
		Topic:       ts.Topic,
		Weight:      recommend.ClampWeight(value * ts.Confidence * lr.NewTopicScale),
		Confidence:  0.3,
		LastUpdated: now,
		Trend:       recommend.TrendNew,
	})
}

// applyContentType updates the content-type preference with the topic
// learning rate.
func (p *Processor) applyContentType(profile *recommend.UserProfile, contentType string, value float64, now time.Time) {
	if contentType == "" {
		return
	}
	lr := p.config.Learning

	if pref, ok := profile.ContentType(contentType); ok {
		pref.Preference = recommend.ClampWeight(pref.Preference + value*lr.TopicRate)
		pref.LastUpdated = now
		return
	}

	profile.ContentTypes = append(profile.ContentTypes, recommend.ContentTypePreference{
		Type:        contentType,
		Preference:  recommend.ClampWeight(value * lr.NewTopicScale),
		LastUpdated: now,
	})
}

// applyContext updates one contextual factor:value weight.
func (p *Processor) applyContext(profile *recommend.UserProfile, factor, factorValue string, value float64, now time.Time) {
	lr := p.config.Learning

	for i := range profile.ContextualPreferences {
		cp := &profile.ContextualPreferences[i]
		if cp.Factor == factor && cp.Value == factorValue {
			cp.Weight = recommend.ClampWeight(cp.Weight + value*lr.ContextRate)
			cp.LastUpdated = now
			return
		}
	}

	profile.ContextualPreferences = append(profile.ContextualPreferences, recommend.ContextualPreference{
		Factor:      factor,
		Value:       factorValue,
		Weight:      recommend.ClampWeight(value * lr.NewContextScale),
		LastUpdated: now,
	})
}

// isReturnVisit reports whether the user already has a session against
// this content.
func (p *Processor) isReturnVisit(ctx context.Context, userID, contentID string) (bool, error) {
	sessions, err := p.behaviors.ByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range sessions {
		if sessions[i].ContentID == contentID {
			return true, nil
		}
	}
	return false, nil
}

// validateBehavior rejects out-of-domain sessions before any write.
func validateBehavior(b *recommend.ReadingBehavior) error {
	switch {
	case b.UserID == "":
		return fmt.Errorf("%w: missing user id", recommend.ErrInvalidFeedback)
	case b.ContentID == "":
		return fmt.Errorf("%w: missing content id", recommend.ErrInvalidFeedback)
	case b.CompletionRate < 0 || b.CompletionRate > 1:
		return fmt.Errorf("%w: completion rate %.2f outside [0, 1]", recommend.ErrInvalidFeedback, b.CompletionRate)
	case b.ActualMinutes < 0:
		return fmt.Errorf("%w: negative reading time", recommend.ErrInvalidFeedback)
	}
	return nil
}

// normalizeBehavior fills derivable fields the client may omit.
func normalizeBehavior(b *recommend.ReadingBehavior) {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	if b.Context.TimeOfDay == "" {
		b.Context.TimeOfDay = recommend.TimeOfDayFromHour(b.Timestamp.Hour())
	}
}

// contextPairs flattens a session context into factor:value pairs for
// contextual preference learning.
func contextPairs(c recommend.BehaviorContext) map[string]string {
	pairs := make(map[string]string, 4)
	if c.TimeOfDay != "" {
		pairs["time_of_day"] = string(c.TimeOfDay)
	}
	if c.Device != "" {
		pairs["device"] = c.Device
	}
	if c.Location != "" {
		pairs["location"] = c.Location
	}
	if c.Mood != "" {
		pairs["mood"] = string(c.Mood)
	}
	return pairs
}

// nudgeConfidence moves confidence up on meaningful updates and decays
// it otherwise.
func nudgeConfidence(confidence float64, meaningful bool, lr recommend.LearningConfig) float64 {
	if meaningful {
		return recommend.ClampConfidence(confidence + lr.ConfidenceNudge)
	}
	return recommend.ClampConfidence(confidence - lr.ConfidenceDecay)
}

// trendFor classifies a weight delta.
func trendFor(delta float64) recommend.Trend {
	const epsilon = 0.005
	switch {
	case delta > epsilon:
		return recommend.TrendIncreasing
	case delta < -epsilon:
		return recommend.TrendDecreasing
	default:
		return recommend.TrendStable
	}
}

// signalNames lists signal types in extraction order.
func signalNames(signals []signal) []string {
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		names = append(names, s.Type)
	}
	return names
}

// commentSentiment scores free text by keyword polarity, clipped to
// [-0.8, 0.8].
func commentSentiment(comment string) float64 {
	var score float64
	for _, word := range tokenize(comment) {
		switch {
		case positiveWords[word]:
			score += 0.2
		case negativeWords[word]:
			score -= 0.2
		}
	}
	return clip(score, -0.8, 0.8)
}

// tokenize lowercases and splits on non-letter runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var positiveWords = map[string]bool{
	"amazing": true, "brilliant": true, "clear": true, "engaging": true,
	"enjoyable": true, "enjoyed": true, "excellent": true, "fascinating": true,
	"fun": true, "good": true, "great": true, "helpful": true,
	"informative": true, "insightful": true, "interesting": true, "love": true,
	"loved": true, "wonderful": true,
}

var negativeWords = map[string]bool{
	"awful": true, "bad": true, "boring": true, "confusing": true,
	"disappointing": true, "dull": true, "hate": true, "hated": true,
	"pointless": true, "repetitive": true, "shallow": true, "tedious": true,
	"terrible": true, "waste": true,
}
