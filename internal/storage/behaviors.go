// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package storage

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/karasawa/shiori/internal/recommend"
)

// Append records a completed reading session. Sessions are append-only;
// nothing in the engine mutates them afterwards. The timestamp is stored
// as Unix nanoseconds so ORDER BY stays chronological; formatted text
// sorts fractional seconds wrong once trailing zeros are trimmed.
func (s *Store) Append(ctx context.Context, b recommend.ReadingBehavior) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO behaviors (user_id, content_id, ts, doc)
		VALUES (?, ?, ?, ?)`,
		b.UserID, b.ContentID, b.Timestamp.UTC().UnixNano(), string(doc))
	if err != nil {
		return fmt.Errorf("%w: appending session: %v", recommend.ErrUnavailable, err)
	}
	return nil
}

// ByUser returns the user's sessions, newest first.
func (s *Store) ByUser(ctx context.Context, userID string) ([]recommend.ReadingBehavior, error) {
	return s.queryBehaviors(ctx,
		"SELECT doc FROM behaviors WHERE user_id = ? ORDER BY ts DESC", userID)
}

// ByContent returns all sessions against one item, newest first.
func (s *Store) ByContent(ctx context.Context, contentID string) ([]recommend.ReadingBehavior, error) {
	return s.queryBehaviors(ctx,
		"SELECT doc FROM behaviors WHERE content_id = ? ORDER BY ts DESC", contentID)
}

func (s *Store) queryBehaviors(ctx context.Context, query string, arg any) ([]recommend.ReadingBehavior, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: querying sessions: %v", recommend.ErrUnavailable, err)
	}
	defer rows.Close()

	var sessions []recommend.ReadingBehavior
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		var b recommend.ReadingBehavior
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		sessions = append(sessions, b)
	}
	return sessions, rows.Err()
}
