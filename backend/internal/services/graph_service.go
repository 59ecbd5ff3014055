package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"referral-map/backend/internal/enrich"
	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	"referral-map/backend/internal/store"
	"referral-map/backend/internal/table"
	apperrors "referral-map/backend/pkg/errors"
)

// GraphService imports, stores and enriches referral graphs
type GraphService struct {
	store   store.Store
	builder *graph.Builder
	runner  *enrich.Runner
	lookup  lookup.Service // nil disables enrichment
	logger  *zap.Logger

	// enrichments coalesces concurrent Enrich calls for the same graph id
	enrichments singleflight.Group
	newID       func() string

	// mu guards enriching; Put holds it while saving
	mu        sync.Mutex
	enriching map[string]bool
}

// Summary describes a stored graph
type Summary struct {
	ID            string           `json:"id"`
	Institutions  int              `json:"institutions"`
	LegendEntries int              `json:"legend_entries"`
	Coords        graph.CoordStats `json:"coords"`
}

// EnrichSummary describes a completed enrichment
type EnrichSummary struct {
	Summary
	Queried    int      `json:"queried"`
	Resolved   []string `json:"resolved"`
	Unresolved []string `json:"unresolved"`
}

// NewGraphService creates a new graph service. svc may be nil when no
// place search is configured.
func NewGraphService(st store.Store, runner *enrich.Runner, svc lookup.Service, logger *zap.Logger) *GraphService {
	return &GraphService{
		store:   st,
		builder: graph.NewBuilderWithLogger(logger),
		runner:  runner,
		lookup:  svc,
		logger:  logger,
		newID:   uuid.NewString,

		enriching: make(map[string]bool),
	}
}

// EnrichmentEnabled reports whether a place search is configured
func (s *GraphService) EnrichmentEnabled() bool {
	return s.lookup != nil
}

// Import decodes a referral table, builds its graph and stores it under a
// new id.
func (s *GraphService) Import(ctx context.Context, filename string, r io.Reader) (*Summary, error) {
	dec, err := table.DecoderFor(filename)
	if err != nil {
		return nil, err
	}
	g, err := s.builder.BuildFrom(ctx, dec, r)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	if err := s.store.SaveGraph(ctx, id, g); err != nil {
		return nil, err
	}

	s.logger.Info("Graph imported",
		zap.String("graph_id", id),
		zap.String("filename", filename),
		zap.Int("institutions", g.Len()),
	)
	return summarize(id, g), nil
}

// Put stores a previously saved graph under id. It is rejected while an
// enrichment of id is running, since the run would overwrite it.
func (s *GraphService) Put(ctx context.Context, id string, g *graph.Graph) (*Summary, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enriching[id] {
		return nil, apperrors.NewEnrichmentInProgress(id)
	}
	if err := s.store.SaveGraph(ctx, id, g); err != nil {
		return nil, err
	}
	return summarize(id, g), nil
}

// Get loads a stored graph
func (s *GraphService) Get(ctx context.Context, id string) (*graph.Graph, error) {
	return s.store.LoadGraph(ctx, id)
}

// List returns the stored graph ids
func (s *GraphService) List(ctx context.Context) ([]string, error) {
	return s.store.ListGraphs(ctx)
}

// Delete removes a stored graph
func (s *GraphService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteGraph(ctx, id)
}

// Enrich resolves missing coordinates of a stored graph. The run works on
// a freshly loaded copy that is saved back only when the run completes,
// so an aborted run leaves the stored graph as it was. Concurrent calls
// for the same id share one run. The shared run is not tied to any
// caller's ctx; a cancelled caller stops waiting and the run goes on for
// the others.
func (s *GraphService) Enrich(ctx context.Context, id string) (*EnrichSummary, error) {
	if s.lookup == nil {
		return nil, apperrors.NewConfigMissingRequired("PLACES_API_KEY")
	}

	runCtx := context.WithoutCancel(ctx)
	ch := s.enrichments.DoChan(id, func() (any, error) {
		return s.enrich(runCtx, id)
	})

	select {
	case <-ctx.Done():
		s.logger.Debug("Stopped waiting for enrichment", zap.String("graph_id", id), zap.Error(ctx.Err()))
		return nil, apperrors.NewEnrichmentCancelled("", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Enrichment result shared", zap.String("graph_id", id))
		}
		return res.Val.(*EnrichSummary), nil
	}
}

// enrich performs one run for id. The id is marked as running before the
// load, under the lock Put holds while saving, so the loaded graph is the
// latest one saved.
func (s *GraphService) enrich(ctx context.Context, id string) (*EnrichSummary, error) {
	s.mu.Lock()
	s.enriching[id] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.enriching, id)
		s.mu.Unlock()
	}()

	g, err := s.store.LoadGraph(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.runner.Run(ctx, g, s.lookup)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveGraph(ctx, id, result.Graph); err != nil {
		return nil, err
	}

	return &EnrichSummary{
		Summary:    *summarize(id, result.Graph),
		Queried:    result.Queried,
		Resolved:   result.Resolved,
		Unresolved: result.Unresolved,
	}, nil
}

func summarize(id string, g *graph.Graph) *Summary {
	return &Summary{
		ID:            id,
		Institutions:  g.Len(),
		LegendEntries: len(g.Legend()),
		Coords:        g.CoordStats(),
	}
}
