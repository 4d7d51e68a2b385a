// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// stubProfiles lets each test script the underlying store's behavior.
type stubProfiles struct {
	getOrCreateFn func(ctx context.Context, userID string) (*UserProfile, error)
	commitFn      func(ctx context.Context, userID string, mutate func(*UserProfile) error) error
}

func (s *stubProfiles) GetOrCreate(ctx context.Context, userID string) (*UserProfile, error) {
	return s.getOrCreateFn(ctx, userID)
}

func (s *stubProfiles) Commit(ctx context.Context, userID string, mutate func(*UserProfile) error) error {
	return s.commitFn(ctx, userID, mutate)
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	}
}

func TestWrapProfilesDisabledPassesThrough(t *testing.T) {
	inner := &stubProfiles{}
	wrapped := WrapProfiles(inner, BreakerConfig{Enabled: false}, zerolog.Nop())
	if wrapped != inner {
		t.Error("disabled breaker must return the inner store unchanged")
	}
}

func TestCommitMutateErrorsDoNotOpenCircuit(t *testing.T) {
	inner := &stubProfiles{
		commitFn: func(_ context.Context, _ string, mutate func(*UserProfile) error) error {
			// Healthy store: runs the mutation and relays its error,
			// the way the storage layer aborts on a mutate failure.
			return mutate(NewUserProfile("u1"))
		},
	}
	wrapped := WrapProfiles(inner, testBreakerConfig(), zerolog.Nop())
	ctx := context.Background()

	bad := errors.New("weight out of range")
	for i := 0; i < 10; i++ {
		err := wrapped.Commit(ctx, "u1", func(*UserProfile) error { return bad })
		if !errors.Is(err, bad) {
			t.Fatalf("call %d: expected the mutate error, got %v", i, err)
		}
		if errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: mutate failures must not open the circuit", i)
		}
	}

	// The store stayed healthy throughout, so a valid commit still lands.
	if err := wrapped.Commit(ctx, "u1", func(*UserProfile) error { return nil }); err != nil {
		t.Fatalf("healthy commit after mutate failures: %v", err)
	}
}

func TestCommitStoreFailuresOpenCircuit(t *testing.T) {
	down := errors.New("database is locked")
	inner := &stubProfiles{
		commitFn: func(context.Context, string, func(*UserProfile) error) error {
			return down
		},
	}
	wrapped := WrapProfiles(inner, testBreakerConfig(), zerolog.Nop())
	ctx := context.Background()

	mutate := func(*UserProfile) error { return nil }
	for i := 0; i < 5; i++ {
		if err := wrapped.Commit(ctx, "u1", mutate); err == nil {
			t.Fatalf("call %d: expected a failure", i)
		}
	}

	if err := wrapped.Commit(ctx, "u1", mutate); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from the open circuit, got %v", err)
	}
}

func TestCommitSuccessPassesThroughBreaker(t *testing.T) {
	var mutated bool
	inner := &stubProfiles{
		commitFn: func(_ context.Context, _ string, mutate func(*UserProfile) error) error {
			return mutate(NewUserProfile("u1"))
		},
	}
	wrapped := WrapProfiles(inner, testBreakerConfig(), zerolog.Nop())

	err := wrapped.Commit(context.Background(), "u1", func(*UserProfile) error {
		mutated = true
		return nil
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !mutated {
		t.Error("mutate was not invoked")
	}
}
