// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Collaborator breakers prevent cascading failures when a backing store is
// unavailable or slow. An open breaker surfaces to callers as
// ErrUnavailable; the enclosing request fails cleanly with no partial
// preference writes.

// newBreaker builds a circuit breaker from BreakerConfig.
func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
		},
	})
}

// breakerExec runs fn through the breaker, mapping breaker rejections to
// ErrUnavailable.
func breakerExec[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// breakerCatalog wraps a ContentCatalog with circuit breaker protection.
type breakerCatalog struct {
	inner ContentCatalog
	cb    *gobreaker.CircuitBreaker[any]
}

// WrapCatalog protects a catalog collaborator with a circuit breaker.
func WrapCatalog(inner ContentCatalog, cfg BreakerConfig, logger zerolog.Logger) ContentCatalog {
	if !cfg.Enabled {
		return inner
	}
	return &breakerCatalog{inner: inner, cb: newBreaker("content-catalog", cfg, logger)}
}

func (b *breakerCatalog) Query(ctx context.Context, q CatalogQuery) ([]ContentItem, error) {
	return breakerExec(b.cb, func() ([]ContentItem, error) { return b.inner.Query(ctx, q) })
}

func (b *breakerCatalog) Get(ctx context.Context, id string) (*ContentItem, error) {
	return breakerExec(b.cb, func() (*ContentItem, error) { return b.inner.Get(ctx, id) })
}

// breakerBehaviors wraps a BehaviorStore with circuit breaker protection.
type breakerBehaviors struct {
	inner BehaviorStore
	cb    *gobreaker.CircuitBreaker[any]
}

// WrapBehaviors protects a behavior collaborator with a circuit breaker.
func WrapBehaviors(inner BehaviorStore, cfg BreakerConfig, logger zerolog.Logger) BehaviorStore {
	if !cfg.Enabled {
		return inner
	}
	return &breakerBehaviors{inner: inner, cb: newBreaker("behavior-store", cfg, logger)}
}

func (b *breakerBehaviors) ByUser(ctx context.Context, userID string) ([]ReadingBehavior, error) {
	return breakerExec(b.cb, func() ([]ReadingBehavior, error) { return b.inner.ByUser(ctx, userID) })
}

func (b *breakerBehaviors) ByContent(ctx context.Context, contentID string) ([]ReadingBehavior, error) {
	return breakerExec(b.cb, func() ([]ReadingBehavior, error) { return b.inner.ByContent(ctx, contentID) })
}

func (b *breakerBehaviors) Append(ctx context.Context, behavior ReadingBehavior) error {
	_, err := breakerExec(b.cb, func() (struct{}, error) {
		return struct{}{}, b.inner.Append(ctx, behavior)
	})
	return err
}

// breakerProfiles wraps a ProfileStore with circuit breaker protection.
type breakerProfiles struct {
	inner ProfileStore
	cb    *gobreaker.CircuitBreaker[any]
}

// WrapProfiles protects the profile store with a circuit breaker.
func WrapProfiles(inner ProfileStore, cfg BreakerConfig, logger zerolog.Logger) ProfileStore {
	if !cfg.Enabled {
		return inner
	}
	return &breakerProfiles{inner: inner, cb: newBreaker("profile-store", cfg, logger)}
}

func (b *breakerProfiles) GetOrCreate(ctx context.Context, userID string) (*UserProfile, error) {
	return breakerExec(b.cb, func() (*UserProfile, error) { return b.inner.GetOrCreate(ctx, userID) })
}

// Commit counts only store-side failures against the breaker. An error
// raised by the caller's mutate function aborts the commit as usual, but
// it says nothing about the store's health and must not open the circuit.
func (b *breakerProfiles) Commit(ctx context.Context, userID string, mutate func(*UserProfile) error) error {
	var mutateErr error
	wrapped := func(p *UserProfile) error {
		if err := mutate(p); err != nil {
			mutateErr = err
			return err
		}
		return nil
	}

	var commitErr error
	_, err := breakerExec(b.cb, func() (struct{}, error) {
		commitErr = b.inner.Commit(ctx, userID, wrapped)
		if commitErr != nil && mutateErr != nil {
			// caller-aborted mutation; a successful call as far as the
			// breaker is concerned
			return struct{}{}, nil
		}
		return struct{}{}, commitErr
	})
	if err != nil {
		return err
	}
	return commitErr
}
