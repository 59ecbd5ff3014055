package lookup

import (
	"context"
	"sync"

	"referral-map/backend/internal/graph"
)

// WithQuerySuffix appends suffix to every query before passing it on.
// An empty suffix returns svc unchanged.
func WithQuerySuffix(svc Service, suffix string) Service {
	if suffix == "" {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, query string) (Status, []graph.PlaceResult, error) {
		return svc.Search(ctx, query+suffix)
	})
}

// Reply is a canned answer of a StaticService
type Reply struct {
	Status  Status              `json:"status"`
	Results []graph.PlaceResult `json:"results"`
}

// StaticService answers from a fixed table of replies. Unknown queries
// get ZERO_RESULTS. It records every query it receives.
type StaticService struct {
	replies map[string]Reply

	mu      sync.Mutex
	queries []string
}

// NewStaticService creates a service answering from replies
func NewStaticService(replies map[string]Reply) *StaticService {
	return &StaticService{replies: replies}
}

// Search implements Service
func (s *StaticService) Search(ctx context.Context, query string) (Status, []graph.PlaceResult, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	reply, ok := s.replies[query]
	if !ok {
		return StatusZeroResults, nil, nil
	}
	return reply.Status, reply.Results, nil
}

// Queries returns the queries received so far
func (s *StaticService) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
