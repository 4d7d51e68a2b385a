// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"fmt"
	"time"
)

// Language identifies a supported reading language.
//
// Reading levels use a language-specific numeric domain:
// English uses a grade-level score, Japanese uses kanji density.
type Language string

const (
	// LanguageEnglish uses Flesch-Kincaid grade levels (1-15).
	LanguageEnglish Language = "english"
	// LanguageJapanese uses kanji density (0-1).
	LanguageJapanese Language = "japanese"
)

// ParseLanguage validates a language code.
// Unknown codes return ErrUnsupportedLanguage before any scoring begins.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageEnglish, LanguageJapanese:
		return Language(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}
}

// LevelBounds returns the valid reading-level range for the language.
func (l Language) LevelBounds() (minLevel, maxLevel float64) {
	if l == LanguageJapanese {
		return 0.0, 1.0
	}
	return 1.0, 15.0
}

// ClampLevel clamps a reading level to the language's numeric domain.
func (l Language) ClampLevel(level float64) float64 {
	lo, hi := l.LevelBounds()
	if level < lo {
		return lo
	}
	if level > hi {
		return hi
	}
	return level
}

// Trend classifies the direction a topic preference is moving.
type Trend string

const (
	// TrendStable indicates the weight is not changing meaningfully.
	TrendStable Trend = "stable"
	// TrendIncreasing indicates the weight is growing.
	TrendIncreasing Trend = "increasing"
	// TrendDecreasing indicates the weight is shrinking.
	TrendDecreasing Trend = "decreasing"
	// TrendNew indicates the topic was just learned.
	TrendNew Trend = "new"
)

// TopicPreference is a single learned topic weight.
type TopicPreference struct {
	// Topic is the normalized topic label.
	Topic string `json:"topic"`

	// Weight is the learned preference in [-1, 1].
	Weight float64 `json:"weight"`

	// Confidence is how certain the model is of the weight, in [0, 1].
	Confidence float64 `json:"confidence"`

	// LastUpdated is when the weight last changed.
	LastUpdated time.Time `json:"last_updated"`

	// Trend is the recent direction of the weight.
	Trend Trend `json:"trend"`
}

// ContentTypePreference is a learned preference for a content type.
type ContentTypePreference struct {
	// Type is the content type (article, book, blog, ...).
	Type string `json:"type"`

	// Preference is the learned value in [-1, 1].
	Preference float64 `json:"preference"`

	// LastUpdated is when the preference last changed.
	LastUpdated time.Time `json:"last_updated"`
}

// ContextualPreference is a learned preference for a context factor value,
// e.g. factor "time_of_day" value "evening".
type ContextualPreference struct {
	Factor      string    `json:"factor"`
	Value       string    `json:"value"`
	Weight      float64   `json:"weight"`
	LastUpdated time.Time `json:"last_updated"`
}

// ReadingLevel is a per-language difficulty estimate for one user.
type ReadingLevel struct {
	// Level is the numeric estimate in the language's domain.
	Level float64 `json:"level"`

	// Confidence is the estimate certainty in [0.1, 1.0].
	Confidence float64 `json:"confidence"`

	// AssessmentCount increments monotonically with each assessment.
	AssessmentCount int `json:"assessment_count"`
}

// PreferenceSnapshot is a point-in-time copy of topic weights used to
// detect preference evolution.
type PreferenceSnapshot struct {
	TakenAt           time.Time          `json:"taken_at"`
	TopicWeights      map[string]float64 `json:"topic_weights"`
	OverallConfidence float64            `json:"overall_confidence"`
}

// UserProfile is the user's preference document.
//
// Profiles are created lazily on first access with conservative defaults
// and are mutated only through ProfileStore.Commit.
type UserProfile struct {
	UserID string `json:"user_id"`

	Topics []TopicPreference `json:"topics"`

	ContentTypes []ContentTypePreference `json:"content_types"`

	ContextualPreferences []ContextualPreference `json:"contextual_preferences"`

	// ReadingLevels holds the per-language difficulty estimates.
	ReadingLevels map[Language]ReadingLevel `json:"reading_levels"`

	// EvolutionHistory holds preference snapshots, newest last.
	EvolutionHistory []PreferenceSnapshot `json:"evolution_history"`
}

// NewUserProfile returns a default profile for a brand-new user.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID: userID,
		ReadingLevels: map[Language]ReadingLevel{
			LanguageEnglish:  {Level: 8.0, Confidence: 0.3},
			LanguageJapanese: {Level: 0.3, Confidence: 0.3},
		},
	}
}

// Topic returns the preference for a topic, if present.
func (p *UserProfile) Topic(topic string) (*TopicPreference, bool) {
	for i := range p.Topics {
		if p.Topics[i].Topic == topic {
			return &p.Topics[i], true
		}
	}
	return nil, false
}

// ContentType returns the preference for a content type, if present.
func (p *UserProfile) ContentType(contentType string) (*ContentTypePreference, bool) {
	for i := range p.ContentTypes {
		if p.ContentTypes[i].Type == contentType {
			return &p.ContentTypes[i], true
		}
	}
	return nil, false
}

// Level returns the user's reading level for a language, falling back to
// the conservative default when the language has never been assessed.
func (p *UserProfile) Level(lang Language) ReadingLevel {
	if lvl, ok := p.ReadingLevels[lang]; ok {
		return lvl
	}
	return NewUserProfile(p.UserID).ReadingLevels[lang]
}

// OverallConfidence is the mean topic confidence, 0 for an empty profile.
func (p *UserProfile) OverallConfidence() float64 {
	if len(p.Topics) == 0 {
		return 0
	}
	var sum float64
	for i := range p.Topics {
		sum += p.Topics[i].Confidence
	}
	return sum / float64(len(p.Topics))
}

// TopicScore is an analysis-assigned topic with its extraction confidence.
type TopicScore struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

// ReadingLevelScore is the analyzed difficulty of a content item.
type ReadingLevelScore struct {
	// FleschKincaid is the grade-level score (English content).
	FleschKincaid float64 `json:"flesch_kincaid,omitempty"`

	// KanjiDensity is the kanji ratio (Japanese content).
	KanjiDensity float64 `json:"kanji_density,omitempty"`
}

// Value returns the difficulty in the domain of the given language.
func (r ReadingLevelScore) Value(lang Language) float64 {
	if lang == LanguageJapanese {
		return r.KanjiDensity
	}
	return r.FleschKincaid
}

// ComplexityScore is the analyzed structural complexity of an item.
type ComplexityScore struct {
	// Score is normalized complexity in [0, 1].
	Score float64 `json:"score"`
}

// ContentAnalysis is the NLP pipeline's output for one item.
// It is read-only collaborator data; this engine never produces it.
type ContentAnalysis struct {
	Topics       []TopicScore      `json:"topics"`
	ReadingLevel ReadingLevelScore `json:"reading_level"`
	Complexity   ComplexityScore   `json:"complexity"`
	Embedding    []float64         `json:"embedding,omitempty"`
}

// ContentMetadata is catalog-owned item metadata.
type ContentMetadata struct {
	ContentType string `json:"content_type"`

	Tags []string `json:"tags,omitempty"`

	// EstimatedReadingTime is the expected read duration in minutes.
	EstimatedReadingTime int `json:"estimated_reading_time"`
}

// ContentItem is a catalog item eligible for recommendation.
type ContentItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Language Language `json:"language"`

	Metadata ContentMetadata `json:"metadata"`

	// Analysis is nil for items the NLP pipeline has not processed yet;
	// such items are never recommended.
	Analysis *ContentAnalysis `json:"analysis,omitempty"`

	// PublishedAt is when the item entered the catalog.
	PublishedAt time.Time `json:"published_at"`
}

// Topics returns the item's topic labels, empty when unanalyzed.
func (c *ContentItem) Topics() []string {
	if c.Analysis == nil {
		return nil
	}
	topics := make([]string, 0, len(c.Analysis.Topics))
	for _, t := range c.Analysis.Topics {
		topics = append(topics, t.Topic)
	}
	return topics
}

// DifficultyFor returns the analyzed difficulty in the language's domain.
func (c *ContentItem) DifficultyFor(lang Language) float64 {
	if c.Analysis == nil {
		return 0
	}
	return c.Analysis.ReadingLevel.Value(lang)
}

// BehaviorContext captures the situation a reading session happened in.
type BehaviorContext struct {
	// TimeOfDay is morning, afternoon, evening or night.
	TimeOfDay TimeOfDay `json:"time_of_day,omitempty"`

	Device   string `json:"device,omitempty"`
	Location string `json:"location,omitempty"`

	// AvailableMinutes is the time budget the user reported.
	AvailableMinutes int `json:"available_minutes,omitempty"`

	// Mood is focused, relaxed or tired.
	Mood Mood `json:"mood,omitempty"`
}

// ReadingBehavior is one completed reading session.
// Behavior records are aggregated, never mutated, by this engine.
type ReadingBehavior struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	SessionID string `json:"session_id,omitempty"`

	// CompletionRate is how much of the item was read, in [0, 1].
	CompletionRate float64 `json:"completion_rate"`

	// ReadingSpeedWPM is the measured words-per-minute.
	ReadingSpeedWPM float64 `json:"reading_speed_wpm"`

	// ActualMinutes is the total session reading time.
	ActualMinutes float64 `json:"actual_minutes"`

	PauseCount int `json:"pause_count"`

	InteractionCount int `json:"interaction_count"`
	HighlightCount   int `json:"highlight_count"`
	NoteCount        int `json:"note_count"`

	Context BehaviorContext `json:"context"`

	Timestamp time.Time `json:"timestamp"`
}

// TimeOfDay buckets the clock into recommendation contexts.
type TimeOfDay string

// Time-of-day buckets.
const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimeOfDayFromHour buckets an hour (0-23).
func TimeOfDayFromHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// Mood is the user's self-reported reading mood.
type Mood string

// Supported moods.
const (
	MoodFocused Mood = "focused"
	MoodRelaxed Mood = "relaxed"
	MoodTired   Mood = "tired"
)

// ReadingContext is the caller-supplied situation for a recommendation
// request. All fields are optional; missing fields score neutrally.
type ReadingContext struct {
	TimeOfDay        TimeOfDay `json:"time_of_day,omitempty"`
	Device           string    `json:"device,omitempty"`
	Location         string    `json:"location,omitempty"`
	AvailableMinutes int       `json:"available_minutes,omitempty"`
	Mood             Mood      `json:"mood,omitempty"`
}

// DiscoveryRecommendation is one persisted discovery emission.
// A (user, content) pair is never re-emitted within the exclusion window.
type DiscoveryRecommendation struct {
	UserID          string    `json:"user_id"`
	ContentID       string    `json:"content_id"`
	DivergenceScore float64   `json:"divergence_score"`
	BridgingTopics  []string  `json:"bridging_topics,omitempty"`
	DiscoveryReason string    `json:"discovery_reason"`
	CreatedAt       time.Time `json:"created_at"`

	// UserResponse records the user's reaction, set once via
	// TrackDiscoveryResponse. It is a transparency/audit field and does
	// not feed back into divergence scoring.
	UserResponse string `json:"user_response,omitempty"`
}

// ClampWeight clamps a preference weight to [-1, 1].
func ClampWeight(w float64) float64 {
	if w < -1 {
		return -1
	}
	if w > 1 {
		return 1
	}
	return w
}

// ClampConfidence clamps a confidence to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ClampUnit clamps a score to [0, 1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
