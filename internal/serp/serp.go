// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package serp talks to the search-data provider: ranked result URLs for a
// phrase, and the phrases a URL ranks for. Both collaborator contracts are
// interfaces so the pipeline can run against fakes in tests and against
// alternative providers later.
package serp

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/overlap-engine/pkg/types"
)

// SERPClient returns ranked organic result URLs for a phrase in a fixed
// market/locale configuration. The slice is in provider rank order and
// holds at most depth entries.
type SERPClient interface {
	TopResults(ctx context.Context, phrase string, depth int) ([]string, error)
}

// RankingsClient returns phrases a URL currently ranks for, up to limit,
// each with the URL's rank position in that phrase's own result set.
type RankingsClient interface {
	RankedPhrases(ctx context.Context, url string, limit int) ([]types.RankedPhrase, error)
}

// FailureClass categorizes a provider failure for the caller.
type FailureClass string

const (
	// ClassAuth means the provider rejected the credentials.
	ClassAuth FailureClass = "authentication"

	// ClassBadRequest means the provider rejected the request payload.
	ClassBadRequest FailureClass = "malformed-request"

	// ClassUpstream covers provider-side errors and malformed responses.
	ClassUpstream FailureClass = "upstream-error"

	// ClassTimeout means the per-call deadline expired.
	ClassTimeout FailureClass = "timeout"
)

// APIError is a classified provider failure.
type APIError struct {
	Class   FailureClass
	Status  int // provider status code when available, else HTTP status
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s (%d): %s", e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Class, e.Message)
}

// Classify returns the FailureClass of err, or ClassUpstream when err is
// not an APIError. Context deadline errors map to ClassTimeout.
func Classify(err error) FailureClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassUpstream
}

// wrapTransport converts a transport-level error into an APIError,
// preserving timeout classification.
func wrapTransport(err error, what string) error {
	class := ClassUpstream
	if errors.Is(err, context.DeadlineExceeded) {
		class = ClassTimeout
	}
	return &APIError{Class: class, Message: fmt.Sprintf("%s: %v", what, err)}
}
