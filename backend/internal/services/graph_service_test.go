package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-map/backend/internal/enrich"
	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	"referral-map/backend/internal/store"
	apperrors "referral-map/backend/pkg/errors"
)

const referralCSV = `Referral register 2016
APPLICATION ID,PI,HOSP,,CLIENT,,CLIENT
A-1,Smith,Hospital A,,Hospital B,,Hospital C
A-2,Jones,Hospital B,,Hospital C
`

func newTestService(t *testing.T, svc lookup.Service) (*GraphService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	runner := enrich.NewRunner(enrich.WithLogger(zap.NewNop()))
	s := NewGraphService(st, runner, svc, zap.NewNop())
	s.newID = func() string { return "graph-1" }
	return s, st
}

func located(lat, lng float64) lookup.Reply {
	return lookup.Reply{Status: lookup.StatusOK, Results: []graph.PlaceResult{{Location: graph.Coords{Lat: lat, Lng: lng}}}}
}

func TestImport(t *testing.T) {
	s, _ := newTestService(t, nil)

	summary, err := s.Import(context.Background(), "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	assert.Equal(t, &Summary{
		ID:            "graph-1",
		Institutions:  3,
		LegendEntries: 2,
		Coords:        graph.CoordStats{Total: 3},
	}, summary)

	g, err := s.Get(context.Background(), "graph-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hospital A", "Hospital B", "Hospital C"}, g.Names())
}

func TestImport_UnsupportedFormat(t *testing.T) {
	s, _ := newTestService(t, nil)

	_, err := s.Import(context.Background(), "referrals.doc", strings.NewReader(referralCSV))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeTable))
}

func TestEnrich_SavesOnCompletion(t *testing.T) {
	static := lookup.NewStaticService(map[string]lookup.Reply{
		"Hospital A": located(1, 2),
		"Hospital C": located(3, 4),
	})
	s, _ := newTestService(t, static)
	ctx := context.Background()
	_, err := s.Import(ctx, "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	summary, err := s.Enrich(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Queried)
	assert.Equal(t, graph.CoordStats{Total: 3, WithCoords: 2}, summary.Coords)
	assert.Equal(t, []string{"Hospital B"}, summary.Unresolved)

	g, err := s.Get(ctx, "graph-1")
	require.NoError(t, err)
	c, _ := g.Get("Hospital C")
	require.NotNil(t, c.Coords)
	assert.Equal(t, graph.Coords{Lat: 3, Lng: 4}, *c.Coords)

	// a second pass only queries what is still missing
	_, err = s.Enrich(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hospital A", "Hospital B", "Hospital C", "Hospital B"}, static.Queries())
}

func TestEnrich_AbortLeavesStoredGraph(t *testing.T) {
	static := lookup.NewStaticService(map[string]lookup.Reply{
		"Hospital A": located(1, 2),
		"Hospital B": {Status: lookup.StatusRequestDenied},
	})
	s, _ := newTestService(t, static)
	ctx := context.Background()
	_, err := s.Import(ctx, "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	_, err = s.Enrich(ctx, "graph-1")
	var failed *apperrors.ErrEnrichmentFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "REQUEST_DENIED", failed.Status)

	g, err := s.Get(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, 0, g.CoordStats().WithCoords)
}

func TestEnrich_Disabled(t *testing.T) {
	s, _ := newTestService(t, nil)

	_, err := s.Enrich(context.Background(), "graph-1")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
	assert.False(t, s.EnrichmentEnabled())
}

func TestEnrich_NotFound(t *testing.T) {
	s, _ := newTestService(t, lookup.NewStaticService(nil))

	_, err := s.Enrich(context.Background(), "missing")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeGraph))
}

func TestEnrich_ConcurrentCallsShareOneRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32

	svc := lookup.ServiceFunc(func(ctx context.Context, query string) (lookup.Status, []graph.PlaceResult, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return lookup.StatusZeroResults, nil, nil
	})
	s, _ := newTestService(t, svc)
	ctx := context.Background()
	_, err := s.Import(ctx, "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*EnrichSummary, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Enrich(ctx, "graph-1")
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.Enrich(ctx, "graph-1")
	}()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(3), calls.Load())
	require.NotNil(t, results[0])
	assert.Same(t, results[0], results[1])
}

// blockingLookup answers ZERO_RESULTS once release is closed and signals
// started on its first call
func blockingLookup(release <-chan struct{}, started chan<- struct{}) lookup.Service {
	return lookup.ServiceFunc(func(ctx context.Context, query string) (lookup.Status, []graph.PlaceResult, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return lookup.StatusZeroResults, nil, nil
	})
}

func TestEnrich_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, _ := newTestService(t, blockingLookup(release, started))
	_, err := s.Import(context.Background(), "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var firstErr, secondErr error
	var second *EnrichSummary
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Enrich(firstCtx, "graph-1")
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = s.Enrich(context.Background(), "graph-1")
	}()
	time.Sleep(100 * time.Millisecond)

	// The first caller leaves while the lookup is in flight
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, apperrors.IsErrorType(firstErr, apperrors.ErrorTypeContext))
	require.NoError(t, secondErr)
	assert.Equal(t, 3, second.Queried)

	// The shared run completed and saved its result
	g, err := s.Get(context.Background(), "graph-1")
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestPut_RejectedWhileEnriching(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, _ := newTestService(t, blockingLookup(release, started))
	ctx := context.Background()
	_, err := s.Import(ctx, "referrals.csv", strings.NewReader(referralCSV))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Enrich(ctx, "graph-1")
		done <- err
	}()
	<-started

	replacement := graph.New()
	replacement.Ensure("Hospital Z")
	_, err = s.Put(ctx, "graph-1", replacement)
	var busy *apperrors.ErrEnrichmentInProgress
	assert.ErrorAs(t, err, &busy)
	assert.True(t, apperrors.IsRetryable(err))

	// Other ids are not affected
	_, err = s.Put(ctx, "graph-2", replacement)
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	_, err = s.Put(ctx, "graph-1", replacement)
	require.NoError(t, err)
	g, err := s.Get(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hospital Z"}, g.Names())
}

func TestPut_RejectsInconsistentGraph(t *testing.T) {
	s, _ := newTestService(t, nil)

	g := graph.New()
	a := g.Ensure("A")
	a.Neighbours["B"] = graph.NewRowSet(1)

	_, err := s.Put(context.Background(), "x", g)
	assert.Error(t, err)

	ok := graph.New()
	ok.Ensure("A")
	summary, err := s.Put(context.Background(), "x", ok)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Institutions)

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
	require.NoError(t, s.Delete(context.Background(), "x"))
}
