// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/karasawa/shiori/internal/metrics"
	"github.com/karasawa/shiori/internal/recommend"
)

// commitRetries bounds the optimistic-concurrency retry loop. With the
// single-writer connection a conflict needs an interleaved commit, so a
// handful of retries is plenty.
const commitRetries = 5

var errCommitConflict = errors.New("profile version conflict")

// GetOrCreate returns the user's profile, inserting the default document
// on first access. Idempotent under concurrent calls: the insert is a
// no-op when the row already exists.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", recommend.ErrInvalidFeedback)
	}

	doc, err := json.Marshal(recommend.NewUserProfile(userID))
	if err != nil {
		return nil, fmt.Errorf("encoding default profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO profiles (user_id, doc, version, updated_at)
		VALUES (?, ?, 1, ?)`,
		userID, string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("%w: inserting profile: %v", recommend.ErrUnavailable, err)
	}

	profile, _, err := s.loadProfile(ctx, userID)
	return profile, err
}

// Commit applies mutate to the latest profile document under optimistic
// concurrency. The write only lands if the document version is unchanged
// since the read; on interleaving it reloads and reapplies, so no update
// is lost. An error from mutate aborts with no write.
func (s *Store) Commit(ctx context.Context, userID string, mutate func(*recommend.UserProfile) error) error {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return err
	}

	for attempt := 0; attempt < commitRetries; attempt++ {
		err := s.tryCommit(ctx, userID, mutate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errCommitConflict) {
			return err
		}
		metrics.ProfileCommitConflicts.Inc()
		s.logger.Debug().
			Str("user_id", userID).
			Int("attempt", attempt+1).
			Msg("profile commit conflict, retrying")
	}

	return fmt.Errorf("%w: profile commit for %s kept conflicting", recommend.ErrUnavailable, userID)
}

// tryCommit performs one read-modify-write attempt.
func (s *Store) tryCommit(ctx context.Context, userID string, mutate func(*recommend.UserProfile) error) error {
	profile, version, err := s.loadProfile(ctx, userID)
	if err != nil {
		return err
	}

	if err := mutate(profile); err != nil {
		return err
	}

	doc, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET doc = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		string(doc), time.Now().UTC().Format(time.RFC3339Nano), userID, version)
	if err != nil {
		return fmt.Errorf("%w: updating profile: %v", recommend.ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking profile update: %w", err)
	}
	if n == 0 {
		return errCommitConflict
	}
	return nil
}

// loadProfile reads the document and its version token.
func (s *Store) loadProfile(ctx context.Context, userID string) (*recommend.UserProfile, int64, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT doc, version FROM profiles WHERE user_id = ?", userID).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// GetOrCreate inserts before any load, so this indicates a
		// concurrent deletion outside this engine.
		return nil, 0, fmt.Errorf("%w: profile %s vanished", recommend.ErrUnavailable, userID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: loading profile: %v", recommend.ErrUnavailable, err)
	}

	var profile recommend.UserProfile
	if err := json.Unmarshal([]byte(doc), &profile); err != nil {
		return nil, 0, fmt.Errorf("decoding profile %s: %w", userID, err)
	}
	return &profile, version, nil
}
