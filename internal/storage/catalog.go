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

	"github.com/karasawa/shiori/internal/recommend"
)

// PutContent inserts or replaces a catalog item and folds its topics and
// content type into the global vocabulary.
func (s *Store) PutContent(ctx context.Context, item *recommend.ContentItem) error {
	if item.ID == "" {
		return fmt.Errorf("content item without id")
	}

	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding content %s: %w", item.ID, err)
	}

	analyzed := 0
	if item.Analysis != nil {
		analyzed = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning catalog write: %v", recommend.ErrUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO content (id, language, content_type, analyzed, published_at, doc)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Language), item.Metadata.ContentType, analyzed,
		item.PublishedAt.UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return fmt.Errorf("%w: writing content %s: %v", recommend.ErrUnavailable, item.ID, err)
	}

	if err := s.growVocabulary(ctx, tx, item); err != nil {
		return err
	}

	return tx.Commit()
}

// Query returns items matching the filter. The exclusion set is applied
// after the scan; it is request-scoped and usually small relative to the
// language slice.
func (s *Store) Query(ctx context.Context, q recommend.CatalogQuery) ([]recommend.ContentItem, error) {
	sqlQuery := "SELECT doc FROM content"
	var args []any
	var where []string

	if q.Language != "" {
		where = append(where, "language = ?")
		args = append(args, string(q.Language))
	}
	if q.RequireAnalysis {
		where = append(where, "analyzed = 1")
	}
	for i, clause := range where {
		if i == 0 {
			sqlQuery += " WHERE " + clause
		} else {
			sqlQuery += " AND " + clause
		}
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying catalog: %v", recommend.ErrUnavailable, err)
	}
	defer rows.Close()

	var items []recommend.ContentItem
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		var item recommend.ContentItem
		if err := json.Unmarshal([]byte(doc), &item); err != nil {
			return nil, fmt.Errorf("decoding content: %w", err)
		}
		if _, excluded := q.ExcludeIDs[item.ID]; excluded {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns one item, or recommend.ErrContentNotFound.
func (s *Store) Get(ctx context.Context, id string) (*recommend.ContentItem, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM content WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", recommend.ErrContentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading content %s: %v", recommend.ErrUnavailable, id, err)
	}

	var item recommend.ContentItem
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		return nil, fmt.Errorf("decoding content %s: %w", id, err)
	}
	return &item, nil
}

// growVocabulary registers the item's topics and content type.
func (s *Store) growVocabulary(ctx context.Context, tx *sql.Tx, item *recommend.ContentItem) error {
	if item.Metadata.ContentType != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO vocab_content_types (content_type) VALUES (?)",
			item.Metadata.ContentType); err != nil {
			return fmt.Errorf("registering content type: %w", err)
		}
	}
	for _, topic := range item.Topics() {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO vocab_topics (topic) VALUES (?)", topic); err != nil {
			return fmt.Errorf("registering topic %s: %w", topic, err)
		}
	}
	return nil
}

// Topics returns the global topic vocabulary, sorted.
func (s *Store) Topics(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "SELECT topic FROM vocab_topics ORDER BY topic")
}

// ContentTypes returns the global content-type vocabulary, sorted.
func (s *Store) ContentTypes(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "SELECT content_type FROM vocab_content_types ORDER BY content_type")
}

func (s *Store) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vocabulary: %v", recommend.ErrUnavailable, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning vocabulary: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
