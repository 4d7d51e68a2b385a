// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"errors"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input   string
		want    Language
		wantErr bool
	}{
		{"english", LanguageEnglish, false},
		{"japanese", LanguageJapanese, false},
		{"", "", true},
		{"English", "", true},
		{"french", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLanguage(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedLanguage) {
					t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLanguage(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClampLevel(t *testing.T) {
	tests := []struct {
		name  string
		lang  Language
		level float64
		want  float64
	}{
		{"english below floor", LanguageEnglish, 0.5, 1.0},
		{"english above ceiling", LanguageEnglish, 20, 15.0},
		{"english in range", LanguageEnglish, 8.5, 8.5},
		{"japanese below floor", LanguageJapanese, -0.1, 0.0},
		{"japanese above ceiling", LanguageJapanese, 1.3, 1.0},
		{"japanese in range", LanguageJapanese, 0.45, 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lang.ClampLevel(tt.level); got != tt.want {
				t.Errorf("ClampLevel(%f) = %f, want %f", tt.level, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayFromHour(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{5, Morning},
		{11, Morning},
		{12, Afternoon},
		{16, Afternoon},
		{17, Evening},
		{21, Evening},
		{22, Night},
		{3, Night},
	}

	for _, tt := range tests {
		if got := TimeOfDayFromHour(tt.hour); got != tt.want {
			t.Errorf("hour %d: got %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestProfileLevelFallback(t *testing.T) {
	p := &UserProfile{UserID: "u1"}

	lvl := p.Level(LanguageEnglish)
	if lvl.Level != 8.0 || lvl.Confidence != 0.3 {
		t.Errorf("expected conservative english default, got %+v", lvl)
	}

	lvl = p.Level(LanguageJapanese)
	if lvl.Level != 0.3 {
		t.Errorf("expected conservative japanese default, got %+v", lvl)
	}
}

func TestFeedbackValidate(t *testing.T) {
	rating := func(n int) *int { return &n }
	liked := true

	tests := []struct {
		name    string
		fb      Feedback
		wantErr bool
	}{
		{"rating only", Feedback{UserID: "u", ContentID: "c", Rating: rating(4)}, false},
		{"like only", Feedback{UserID: "u", ContentID: "c", Liked: &liked}, false},
		{"comment only", Feedback{UserID: "u", ContentID: "c", Comment: "great"}, false},
		{"missing user", Feedback{ContentID: "c", Rating: rating(4)}, true},
		{"missing content", Feedback{UserID: "u", Rating: rating(4)}, true},
		{"rating too low", Feedback{UserID: "u", ContentID: "c", Rating: rating(0)}, true},
		{"rating too high", Feedback{UserID: "u", ContentID: "c", Rating: rating(6)}, true},
		{"no signal", Feedback{UserID: "u", ContentID: "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fb.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidFeedback) {
				t.Fatalf("expected ErrInvalidFeedback, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
