// Package enrich resolves missing institution coordinates through a
// place-search service, one query at a time.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	apperrors "referral-map/backend/pkg/errors"
	"referral-map/backend/pkg/logger"
)

// State is the lifecycle state of a run
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Result describes a completed run. A completed run may still leave
// institutions without coordinates; they are listed in Unresolved.
type Result struct {
	Graph      *graph.Graph
	State      State
	Queried    int      // lookups issued
	Resolved   []string // names that received coordinates, in query order
	Unresolved []string // names queried without a match, in query order
}

// Runner runs enrichment passes. A Runner holds no per-run state and may
// be shared; each call to Run gets its own queue and working results.
type Runner struct {
	logger *zap.Logger
	delay  time.Duration
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = log
	}
}

// WithQueryDelay pauses between consecutive lookups of a run
func WithQueryDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.delay = d
	}
}

// NewRunner creates a runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: logger.Get()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run is the bookkeeping of one invocation
type run struct {
	target   *graph.Graph
	queue    []string
	working  map[string][]graph.PlaceResult
	state    State
	position int // queries dequeued so far

	resolved   []string
	unresolved []string
}

func newRun(g *graph.Graph) *run {
	rn := &run{
		target:  g,
		working: make(map[string][]graph.PlaceResult),
		state:   StateIdle,
	}
	for _, inst := range g.Institutions() {
		if inst.Coords == nil {
			rn.queue = append(rn.queue, inst.Name)
		}
	}
	return rn
}

// Run looks up every institution of g that has no coordinates, in graph
// order, with at most one lookup outstanding. Results are merged into g
// only once every lookup has finished. A fatal status, a failed request
// or a cancelled ctx aborts the run and leaves g untouched.
func (r *Runner) Run(ctx context.Context, g *graph.Graph, svc lookup.Service) (*Result, error) {
	rn := newRun(g)
	rn.state = StateRunning

	r.logger.Info("Enrichment started",
		zap.Int("institutions", g.Len()),
		zap.Int("queued", len(rn.queue)),
	)

	for len(rn.queue) > 0 {
		name := rn.queue[0]

		if err := r.wait(ctx, rn.position); err != nil {
			return nil, r.abort(rn, apperrors.NewEnrichmentCancelled(name, err))
		}

		status, results, err := svc.Search(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, r.abort(rn, apperrors.NewEnrichmentCancelled(name, ctx.Err()))
			}
			// a request that never got an answer counts as UNKNOWN_ERROR
			return nil, r.abort(rn, apperrors.NewEnrichmentFailed(name, string(lookup.StatusUnknownError), rn.position, err))
		}

		outcome := lookup.Classify(status, len(results))
		r.logger.Debug("Lookup reply",
			zap.String("query", name),
			zap.String("status", string(status)),
			zap.Int("results", len(results)),
			zap.Stringer("outcome", outcome),
		)

		switch outcome {
		case lookup.OutcomeMatch:
			rn.working[name] = results
			rn.resolved = append(rn.resolved, name)
		case lookup.OutcomeNoMatch:
			rn.unresolved = append(rn.unresolved, name)
		default:
			return nil, r.abort(rn, apperrors.NewEnrichmentFailed(name, string(status), rn.position, nil))
		}

		rn.queue = rn.queue[1:]
		rn.position++
	}

	rn.finalize()

	stats := g.CoordStats()
	r.logger.Info("Enrichment completed",
		zap.Int("queried", rn.position),
		zap.Int("resolved", len(rn.resolved)),
		zap.Int("with_coords", stats.WithCoords),
		zap.Int("total", stats.Total),
	)

	return &Result{
		Graph:      g,
		State:      rn.state,
		Queried:    rn.position,
		Resolved:   rn.resolved,
		Unresolved: rn.unresolved,
	}, nil
}

// wait checks for cancellation and applies the query delay before every
// lookup but the first.
func (r *Runner) wait(ctx context.Context, position int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if position == 0 || r.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) abort(rn *run, err error) error {
	rn.state = StateAborted
	rn.working = nil
	r.logger.Warn("Enrichment aborted",
		zap.Int("position", rn.position),
		zap.Int("remaining", len(rn.queue)),
		zap.Error(err),
	)
	return err
}

// finalize copies the working results into the target graph
func (rn *run) finalize() {
	for _, inst := range rn.target.Institutions() {
		results, ok := rn.working[inst.Name]
		if !ok || len(results) == 0 {
			continue
		}
		coords := results[0].Location
		inst.Geocoding = results
		inst.Coords = &coords
	}
	rn.state = StateCompleted
}
