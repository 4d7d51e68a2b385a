// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package cache

import (
	"context"
	"time"

	"github.com/karasawa/shiori/internal/recommend"
)

// vocabTTL bounds how stale the topic vocabulary may go. New topics
// only appear on catalog ingest, so a short TTL is enough.
const vocabTTL = time.Minute

// Catalog decorates a content catalog and vocabulary with item-level
// caching. Pattern building and scoring resolve the same items over and
// over; serving them from memory keeps the fan-out off the database.
type Catalog struct {
	inner interface {
		recommend.ContentCatalog
		recommend.TopicVocabulary
	}
	items *TTL[*recommend.ContentItem]
	vocab *TTL[[]string]
}

// NewCatalog wraps inner with caching. itemTTL controls how long
// resolved items are served from memory.
func NewCatalog(inner interface {
	recommend.ContentCatalog
	recommend.TopicVocabulary
}, itemTTL time.Duration) *Catalog {
	return &Catalog{
		inner: inner,
		items: NewTTL[*recommend.ContentItem](itemTTL, 8192),
		vocab: NewTTL[[]string](vocabTTL, 4),
	}
}

// Get returns one item, from cache when fresh.
func (c *Catalog) Get(ctx context.Context, id string) (*recommend.ContentItem, error) {
	if item, ok := c.items.Get(id); ok {
		return item, nil
	}

	item, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.items.Set(id, item)
	return item, nil
}

// Query passes through uncached: result sets depend on the caller's
// exclusion set, which is request-specific.
func (c *Catalog) Query(ctx context.Context, q recommend.CatalogQuery) ([]recommend.ContentItem, error) {
	return c.inner.Query(ctx, q)
}

// Topics returns the topic vocabulary, briefly cached.
func (c *Catalog) Topics(ctx context.Context) ([]string, error) {
	return c.vocabulary(ctx, "topics", c.inner.Topics)
}

// ContentTypes returns the content-type vocabulary, briefly cached.
func (c *Catalog) ContentTypes(ctx context.Context) ([]string, error) {
	return c.vocabulary(ctx, "content_types", c.inner.ContentTypes)
}

// Invalidate drops a cached item after an upsert.
func (c *Catalog) Invalidate(id string) {
	c.items.Invalidate(id)
	c.vocab.Invalidate("topics")
	c.vocab.Invalidate("content_types")
}

func (c *Catalog) vocabulary(ctx context.Context, key string, load func(context.Context) ([]string, error)) ([]string, error) {
	if values, ok := c.vocab.Get(key); ok {
		return values, nil
	}

	values, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.vocab.Set(key, values)
	return values, nil
}
