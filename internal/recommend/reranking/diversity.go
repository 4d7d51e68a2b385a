// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package reranking post-filters ranked lists so no single topic or
// content type dominates what the user sees.
package reranking

import (
	"context"
	"math"

	"github.com/karasawa/shiori/internal/recommend"
)

// Diversity caps per-topic and per-type occurrences in a standard
// result list. It implements recommend.Reranker.
type Diversity struct {
	config *recommend.Config
}

// NewDiversity creates the standard-mode diversity reranker.
func NewDiversity(cfg *recommend.Config) *Diversity {
	return &Diversity{config: cfg}
}

// Name returns the reranker identifier.
func (d *Diversity) Name() string { return "diversity" }

// Rerank greedily keeps top-scored items while capping any single topic
// or content type at limit*MaxShare occurrences. When the cap leaves the
// list under half full, remaining slots are filled from the skipped
// items in score order.
func (d *Diversity) Rerank(_ context.Context, items []recommend.ScoredContent, limit int) []recommend.ScoredContent {
	if limit <= 0 || len(items) == 0 {
		return nil
	}

	maxPerKey := occurrenceCap(limit, d.config.Diversity.MaxShare)
	topicCounts := make(map[string]int)
	typeCounts := make(map[string]int)

	selected := make([]recommend.ScoredContent, 0, limit)
	var skipped []recommend.ScoredContent

	for i := range items {
		if len(selected) >= limit {
			break
		}
		item := &items[i]
		if overCap(item, topicCounts, typeCounts, maxPerKey) {
			skipped = append(skipped, *item)
			continue
		}
		count(item, topicCounts, typeCounts)
		selected = append(selected, *item)
	}

	// Too few diverse results reads as an empty shelf; repeats beat that.
	if len(selected) < limit/2 {
		for i := range skipped {
			if len(selected) >= limit {
				break
			}
			selected = append(selected, skipped[i])
		}
	}

	return selected
}

// occurrenceCap converts the share into a per-key count, at least 1.
func occurrenceCap(limit int, share float64) int {
	return int(math.Max(1, math.Floor(float64(limit)*share)))
}

// overCap reports whether selecting the item would push any of its
// topics or its content type past the cap.
func overCap(item *recommend.ScoredContent, topicCounts, typeCounts map[string]int, maxPerKey int) bool {
	if typeCounts[item.Item.Metadata.ContentType] >= maxPerKey {
		return true
	}
	for _, topic := range item.Item.Topics() {
		if topicCounts[topic] >= maxPerKey {
			return true
		}
	}
	return false
}

// count registers a selected item's topics and type.
func count(item *recommend.ScoredContent, topicCounts, typeCounts map[string]int) {
	typeCounts[item.Item.Metadata.ContentType]++
	for _, topic := range item.Item.Topics() {
		topicCounts[topic]++
	}
}
