// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package recommend implements preference learning and recommendation
// for bilingual (English/Japanese) reading.
//
// The package defines the domain model, the Engine orchestrator, and
// the interfaces its components and storage collaborators implement.
// Concrete components live in the subpackages feedback, assessment,
// retrieval, scoring, discovery and reranking; persistence lives in
// internal/storage. The dependency direction is strictly inward: this
// package imports none of them.
//
// Two recommendation modes are provided. Contextual recommendation
// (Engine.Recommend) ranks level-gated candidates by learned interest
// plus the caller's reading situation. Discovery (Engine.Discover)
// deliberately steps outside the user's established patterns, bounded
// by a divergence gate and an accessibility requirement so suggestions
// stay reachable rather than random.
//
// Preference state flows only through explicit feedback
// (Engine.SubmitFeedback) and recorded sessions (Engine.RecordSession).
// Profile writes go through ProfileStore.Commit, which applies a mutation
// atomically; concurrent signal processing for the same user never
// produces partial updates.
package recommend
