package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/model"
	"crewlink/ingestion-service/internal/provider"
)

// ── Stubs ──────────────────────────────────────────────────────────────────

type stubProvider struct {
	name    string
	jobs    []model.ExternalJob
	err     error
	delay   time.Duration
	release chan struct{} // when non-nil, Fetch blocks until closed
	calls   atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context, _ model.SearchQuery) ([]model.ExternalJob, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.release != nil {
		<-p.release
	}
	return p.jobs, p.err
}

type stubStore struct {
	mu        sync.Mutex
	existing  map[string]model.ExternalJob
	pingErr   error
	createErr map[string]error
}

func newStubStore() *stubStore {
	return &stubStore{
		existing:  make(map[string]model.ExternalJob),
		createErr: make(map[string]error),
	}
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

func (s *stubStore) ExistsByExternalID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.existing[id]
	return ok, nil
}

func (s *stubStore) Create(_ context.Context, job model.ExternalJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErr[job.ProviderID]; err != nil {
		return err
	}
	s.existing[job.ProviderID] = job
	return nil
}

func newTestSyncer(store JobStore, cache SnapshotCache, maxTotal int, providers ...provider.Provider) *Syncer {
	return NewSyncer(SyncerConfig{
		Providers:    providers,
		Classifier:   testClassifier(),
		Cache:        cache,
		Store:        store,
		Query:        model.SearchQuery{Keywords: "event technician", Location: "London", MaxResults: 50},
		MaxTotalJobs: maxTotal,
	}, zap.NewNop().Sugar())
}

// ── Tests ──────────────────────────────────────────────────────────────────

func TestSync_EndToEnd(t *testing.T) {
	avTech := model.ExternalJob{Title: "AV Technician", Company: "Acme", Location: "London"}

	a := avTech
	a.ProviderID = "reed_1"
	a.Source = model.SourceReed
	b := avTech
	b.ProviderID = "adzuna_7"
	b.Source = model.SourceAdzuna
	chef := model.ExternalJob{ProviderID: "adzuna_8", Title: "Head Chef", Company: "Bistro", Location: "London"}

	reed := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{a}}
	adzuna := &stubProvider{name: model.SourceAdzuna, jobs: []model.ExternalJob{b, chef}}
	store := newStubStore()

	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, reed, adzuna)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.TotalFetched)
	assert.Equal(t, 1, res.PerSourceCounts[model.SourceReed])
	assert.Equal(t, 2, res.PerSourceCounts[model.SourceAdzuna])
	assert.Empty(t, res.Errors)

	// Chef classified out, the two AV Technicians collapsed, reed's wins.
	assert.Equal(t, 1, res.NewJobsAdded)
	_, reedKept := store.existing["reed_1"]
	assert.True(t, reedKept)
	assert.Len(t, store.existing, 1)
}

func TestSync_SecondRunAddsNothing(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"},
	}}
	store := newStubStore()
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, p)

	first, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewJobsAdded)

	second, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewJobsAdded, "persistence must be idempotent on provider_id")
}

func TestSync_SingleFlightGuard(t *testing.T) {
	release := make(chan struct{})
	p := &stubProvider{
		name:    model.SourceReed,
		jobs:    []model.ExternalJob{{ProviderID: "reed_1", Title: "AV Technician"}},
		release: release,
	}
	store := newStubStore()
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, p)

	done := make(chan model.SyncResult, 1)
	go func() {
		res, _ := s.Sync(context.Background())
		done <- res
	}()

	require.Eventually(t, s.InProgress, time.Second, 5*time.Millisecond)

	skipped, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)
	assert.Equal(t, 0, skipped.TotalFetched)
	assert.Equal(t, 0, skipped.NewJobsAdded)

	close(release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.NewJobsAdded)
	assert.False(t, s.InProgress())
}

func TestSync_ProviderFailureIsSoft(t *testing.T) {
	failing := &stubProvider{name: model.SourceReed, err: errors.New("status 500: upstream on fire")}
	healthy := &stubProvider{name: model.SourceAdzuna, jobs: []model.ExternalJob{
		{ProviderID: "adzuna_1", Title: "Lighting Technician", Company: "Globex", Location: "Leeds"},
	}}
	store := newStubStore()
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, failing, healthy)

	res, err := s.Sync(context.Background())
	require.NoError(t, err, "a failed provider must not fail the run")

	assert.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], model.SourceReed)
	assert.Equal(t, 1, res.NewJobsAdded)
	assert.Equal(t, 0, res.PerSourceCounts[model.SourceReed])
}

func TestSync_StoreUnreachableIsFatal(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician"},
	}}
	store := newStubStore()
	store.pingErr = errors.New("connection refused")
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, p)

	_, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job store unreachable")
	assert.False(t, s.InProgress(), "the guard must be released after a failed run")
}

func TestSync_PerRecordFailureSkipsRecordOnly(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"},
		{ProviderID: "reed_2", Title: "Sound Engineer", Company: "Globex", Location: "Leeds"},
	}}
	store := newStubStore()
	store.createErr["reed_1"] = errors.New("constraint violation")
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, p)

	res, err := s.Sync(context.Background())
	require.NoError(t, err, "one bad record must not abort the batch")

	assert.Equal(t, 1, res.NewJobsAdded)
	assert.Len(t, res.Errors, 1)
	_, ok := store.existing["reed_2"]
	assert.True(t, ok)
}

func TestSync_CapsTotalPostings(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "A", Location: "London"},
		{ProviderID: "reed_2", Title: "AV Technician", Company: "B", Location: "London"},
		{ProviderID: "reed_3", Title: "AV Technician", Company: "C", Location: "London"},
	}}
	store := newStubStore()
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 2, p)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewJobsAdded)
}

func TestSync_PreservesProviderOrderDespiteConcurrency(t *testing.T) {
	slow := &stubProvider{
		name:  model.SourceReed,
		delay: 30 * time.Millisecond,
		jobs:  []model.ExternalJob{{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"}},
	}
	fast := &stubProvider{
		name: model.SourceAdzuna,
		jobs: []model.ExternalJob{{ProviderID: "adzuna_1", Title: "AV Technician", Company: "Acme", Location: "London"}},
	}
	store := newStubStore()
	s := newTestSyncer(store, NewMemoryCache(time.Minute), 50, slow, fast)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)

	// Reed is configured first, so its record wins dedup even though
	// adzuna's response arrived first.
	assert.Equal(t, 1, res.NewJobsAdded)
	_, ok := store.existing["reed_1"]
	assert.True(t, ok)
}

func TestExternalJobs_ServesCacheWithinTTL(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"},
	}}
	s := newTestSyncer(newStubStore(), NewMemoryCache(time.Minute), 50, p)

	first, err := s.ExternalJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.EqualValues(t, 1, p.calls.Load())

	second, err := s.ExternalJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, p.calls.Load(), "a fresh snapshot must be served without re-invoking adapters")
}

func TestExternalJobs_RecomputesAfterExpiry(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"},
	}}
	now := time.Now()
	cache := NewMemoryCache(30 * time.Minute)
	cache.now = func() time.Time { return now }
	s := newTestSyncer(newStubStore(), cache, 50, p)

	_, err := s.ExternalJobs(context.Background())
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = s.ExternalJobs(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestSync_BypassesCacheButRefreshesIt(t *testing.T) {
	p := &stubProvider{name: model.SourceReed, jobs: []model.ExternalJob{
		{ProviderID: "reed_1", Title: "AV Technician", Company: "Acme", Location: "London"},
	}}
	cache := NewMemoryCache(time.Minute)
	s := newTestSyncer(newStubStore(), cache, 50, p)

	_, err := s.ExternalJobs(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, p.calls.Load())

	_, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load(), "the scheduled sync always fetches fresh data")

	jobs, hit := cache.Get(context.Background())
	require.True(t, hit)
	assert.Len(t, jobs, 1)
}

func TestExternalJobs_AllProvidersFailed(t *testing.T) {
	a := &stubProvider{name: model.SourceReed, err: errors.New("status 503")}
	b := &stubProvider{name: model.SourceAdzuna, err: errors.New("status 500")}
	s := newTestSyncer(newStubStore(), NewMemoryCache(time.Minute), 50, a, b)

	_, err := s.ExternalJobs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}
