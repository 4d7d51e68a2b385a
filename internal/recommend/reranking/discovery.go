// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package reranking

import (
	"context"

	"github.com/karasawa/shiori/internal/recommend"
)

// DiscoveryDiversity enforces spread across discovery selections: low
// topic overlap and a distinct content type per pick. It implements
// recommend.Reranker.
type DiscoveryDiversity struct {
	config *recommend.Config
}

// NewDiscoveryDiversity creates the discovery-mode diversity reranker.
func NewDiscoveryDiversity(cfg *recommend.Config) *DiscoveryDiversity {
	return &DiscoveryDiversity{config: cfg}
}

// Name returns the reranker identifier.
func (d *DiscoveryDiversity) Name() string { return "discovery_diversity" }

// Rerank greedily keeps top-ranked items whose topics overlap already
// selected items by at most MaxTopicOverlap and whose content type has
// not been selected yet. When that leaves the list under half full,
// remaining slots are filled from the skipped items, overlap allowed.
func (d *DiscoveryDiversity) Rerank(_ context.Context, items []recommend.ScoredContent, limit int) []recommend.ScoredContent {
	if limit <= 0 || len(items) == 0 {
		return nil
	}

	seenTopics := make(map[string]struct{})
	seenTypes := make(map[string]struct{})

	selected := make([]recommend.ScoredContent, 0, limit)
	var skipped []recommend.ScoredContent

	for i := range items {
		if len(selected) >= limit {
			break
		}
		item := &items[i]

		if d.tooSimilar(item, seenTopics, seenTypes) {
			skipped = append(skipped, *item)
			continue
		}

		for _, topic := range item.Item.Topics() {
			seenTopics[topic] = struct{}{}
		}
		seenTypes[item.Item.Metadata.ContentType] = struct{}{}
		selected = append(selected, *item)
	}

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

// tooSimilar reports whether the item repeats an already-selected
// content type or overlaps selected topics past the cap.
func (d *DiscoveryDiversity) tooSimilar(item *recommend.ScoredContent, seenTopics, seenTypes map[string]struct{}) bool {
	if _, ok := seenTypes[item.Item.Metadata.ContentType]; ok {
		return true
	}

	overlap := 0
	for _, topic := range item.Item.Topics() {
		if _, ok := seenTopics[topic]; ok {
			overlap++
			if overlap > d.config.Diversity.MaxTopicOverlap {
				return true
			}
		}
	}
	return false
}
