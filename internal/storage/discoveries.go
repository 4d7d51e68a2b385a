// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package storage

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/karasawa/shiori/internal/recommend"
)

// Record stores an emitted discovery recommendation.
func (s *Store) Record(ctx context.Context, rec recommend.DiscoveryRecommendation) error {
	bridging, err := json.Marshal(rec.BridgingTopics)
	if err != nil {
		return fmt.Errorf("encoding bridging topics: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO discoveries (user_id, content_id, divergence, bridging, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.ContentID, rec.DivergenceScore, string(bridging),
		rec.DiscoveryReason, createdAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: recording discovery: %v", recommend.ErrUnavailable, err)
	}
	return nil
}

// RecentIDs returns content ids discovery-recommended to the user within
// the window. Timestamps are Unix nanoseconds, so the cutoff comparison
// is numeric.
func (s *Store) RecentIDs(ctx context.Context, userID string, window time.Duration) (map[string]struct{}, error) {
	cutoff := time.Now().Add(-window).UnixNano()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT content_id FROM discoveries
		WHERE user_id = ? AND created_at > ?`, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: querying recent discoveries: %v", recommend.ErrUnavailable, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning discovery id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// RecordResponse attaches the user's reaction to the latest emission of
// the content. Audit only.
func (s *Store) RecordResponse(ctx context.Context, userID, contentID, response string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discoveries SET user_response = ?
		WHERE id = (
			SELECT id FROM discoveries
			WHERE user_id = ? AND content_id = ?
			ORDER BY created_at DESC LIMIT 1
		)`, response, userID, contentID)
	if err != nil {
		return fmt.Errorf("%w: recording response: %v", recommend.ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking response update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no discovery of %s for user %s", recommend.ErrContentNotFound, contentID, userID)
	}
	return nil
}
