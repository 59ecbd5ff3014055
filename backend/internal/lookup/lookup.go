// Package lookup talks to the place-search service used to resolve
// institution coordinates.
package lookup

import (
	"context"

	"referral-map/backend/internal/graph"
)

// Status is the status string reported by the place search
type Status string

// Non-fatal statuses. There are exactly two.
const (
	StatusOK          Status = "OK"
	StatusZeroResults Status = "ZERO_RESULTS"
)

// Known fatal statuses. Any status not listed above is fatal, including
// ones that do not appear here.
const (
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusInvalidRequest Status = "INVALID_REQUEST"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// Outcome is what a reply means for an enrichment run
type Outcome int

const (
	// OutcomeFatal aborts the run
	OutcomeFatal Outcome = iota
	// OutcomeMatch carries at least one result
	OutcomeMatch
	// OutcomeNoMatch leaves the institution unresolved
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "fatal"
	}
}

// Classify maps a reply to its outcome. OK with no results counts as
// ZERO_RESULTS.
func Classify(status Status, results int) Outcome {
	switch status {
	case StatusOK:
		if results > 0 {
			return OutcomeMatch
		}
		return OutcomeNoMatch
	case StatusZeroResults:
		return OutcomeNoMatch
	default:
		return OutcomeFatal
	}
}

// Service searches for places matching a free-text query. A non-nil
// error means the request itself failed; status and results are then
// meaningless.
type Service interface {
	Search(ctx context.Context, query string) (Status, []graph.PlaceResult, error)
}

// ServiceFunc adapts a function to Service
type ServiceFunc func(ctx context.Context, query string) (Status, []graph.PlaceResult, error)

// Search calls f
func (f ServiceFunc) Search(ctx context.Context, query string) (Status, []graph.PlaceResult, error) {
	return f(ctx, query)
}
