// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

package recommend

import "errors"

// Sentinel errors returned by the engine. Validation errors are raised
// synchronously before any state is mutated; unavailability errors wrap
// the collaborator failure.
var (
	// ErrUnsupportedLanguage indicates a language code outside the
	// supported set.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrInvalidFeedback indicates feedback with a type or value outside
	// its domain. No preference state is mutated.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrUnavailable indicates a required collaborator could not be
	// reached (store down or circuit open). The request fails cleanly
	// with no partial preference writes.
	ErrUnavailable = errors.New("service unavailable")

	// ErrContentNotFound indicates a referenced content item does not
	// exist in the catalog.
	ErrContentNotFound = errors.New("content not found")
)

// IsNotFound reports whether err is a missing-content error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContentNotFound)
}

// IsUnavailable reports whether err is a collaborator outage, including
// an open circuit breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
