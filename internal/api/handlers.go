// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/karasawa/shiori/internal/recommend"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if !s.decode(w, r, &req) {
		return
	}
	req.RequestID = r.Header.Get(requestIDHeader)

	resp, err := s.engine.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if !s.decode(w, r, &req) {
		return
	}
	req.RequestID = r.Header.Get(requestIDHeader)

	resp, err := s.engine.Discover(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb recommend.Feedback
	if !s.decode(w, r, &fb) {
		return
	}

	result, err := s.engine.SubmitFeedback(r.Context(), fb)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var b recommend.ReadingBehavior
	if !s.decode(w, r, &b) {
		return
	}

	result, err := s.engine.RecordSession(r.Context(), b)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

// assessmentRequest is the level-assessment payload.
type assessmentRequest struct {
	UserID            string                       `json:"user_id"`
	Language          string                       `json:"language"`
	ContentDifficulty float64                      `json:"content_difficulty"`
	Performance       recommend.PerformanceMetrics `json:"performance"`
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if !s.decode(w, r, &req) {
		return
	}

	level, err := s.engine.AssessReadingLevel(r.Context(), req.UserID, req.Language, req.ContentDifficulty, req.Performance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, level)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	window := 30 * 24 * time.Hour
	if days := r.URL.Query().Get("window_days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_days must be a positive integer"})
			return
		}
		window = time.Duration(n) * 24 * time.Hour
	}

	patterns, err := s.engine.AnalyzeFeedbackPatterns(r.Context(), userID, window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleTransparency(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.PreferenceTransparency(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.TrackEvolution(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// discoveryResponseRequest records a user's reaction to a discovery.
type discoveryResponseRequest struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	Response  string `json:"response"`
}

func (s *Server) handleDiscoveryResponse(w http.ResponseWriter, r *http.Request) {
	var req discoveryResponseRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.TrackDiscoveryResponse(r.Context(), req.UserID, req.ContentID, req.Response); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	var item recommend.ContentItem
	if !s.decode(w, r, &item) {
		return
	}
	if _, err := recommend.ParseLanguage(string(item.Language)); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.catalog.PutContent(r.Context(), &item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": item.ID})
}

// decode parses the JSON body, answering 400 on malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response")
	}
}

// writeError maps engine errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, recommend.ErrInvalidFeedback),
		errors.Is(err, recommend.ErrUnsupportedLanguage):
		status = http.StatusBadRequest
	case recommend.IsNotFound(err):
		status = http.StatusNotFound
	case recommend.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
