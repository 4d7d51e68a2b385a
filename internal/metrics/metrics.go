// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package metrics provides Prometheus instrumentation for the engine:
// request throughput and latency, per-candidate scoring failures,
// preference commit conflicts, and emitted recommendation counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineRequests counts engine operations by outcome.
	EngineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiori_engine_requests_total",
			Help: "Total engine operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// EngineDuration observes engine operation latency.
	EngineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiori_engine_duration_seconds",
			Help:    "Engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ScoringFailures counts candidates skipped due to scoring errors.
	// A skipped candidate never fails the enclosing batch.
	ScoringFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiori_scoring_failures_total",
			Help: "Candidates skipped due to scoring errors",
		},
		[]string{"mode"},
	)

	// RecommendationsEmitted counts ranked items returned to callers.
	RecommendationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiori_recommendations_emitted_total",
			Help: "Ranked recommendation items returned, by mode",
		},
		[]string{"mode"},
	)

	// ProfileCommitConflicts counts optimistic commit retries in the
	// profile store.
	ProfileCommitConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiori_profile_commit_conflicts_total",
			Help: "Profile commits retried due to concurrent writers",
		},
	)

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiori_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// ObserveEngineOp records one engine operation's outcome and latency.
func ObserveEngineOp(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EngineRequests.WithLabelValues(operation, status).Inc()
	EngineDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
