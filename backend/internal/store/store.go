// Package store keeps referral graphs between requests.
package store

import (
	"context"
	"sort"
	"sync"

	"referral-map/backend/internal/graph"
	apperrors "referral-map/backend/pkg/errors"
)

// Store persists graphs by id. *graph.Repository satisfies it for Neo4j.
type Store interface {
	SaveGraph(ctx context.Context, id string, g *graph.Graph) error
	LoadGraph(ctx context.Context, id string) (*graph.Graph, error)
	ListGraphs(ctx context.Context) ([]string, error)
	DeleteGraph(ctx context.Context, id string) error
}

var _ Store = (*graph.Repository)(nil)

// MemoryStore keeps graphs in process memory. It stores and hands out
// copies, so callers never share a graph with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[string]*graph.Graph)}
}

// SaveGraph stores a copy of g
func (s *MemoryStore) SaveGraph(ctx context.Context, id string, g *graph.Graph) error {
	clone := g.Clone()
	s.mu.Lock()
	s.graphs[id] = clone
	s.mu.Unlock()
	return nil
}

// LoadGraph returns a copy of the stored graph
func (s *MemoryStore) LoadGraph(ctx context.Context, id string) (*graph.Graph, error) {
	s.mu.RLock()
	g, ok := s.graphs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewGraphNotFound(id)
	}
	return g.Clone(), nil
}

// ListGraphs returns the stored ids in sorted order
func (s *MemoryStore) ListGraphs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.graphs))
	for id := range s.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteGraph removes a stored graph
func (s *MemoryStore) DeleteGraph(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[id]; !ok {
		return apperrors.NewGraphNotFound(id)
	}
	delete(s.graphs, id)
	return nil
}
