package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/model"
	"crewlink/ingestion-service/internal/provider"
)

// SyncerConfig bundles the orchestrator's collaborators and tuning knobs.
// Provider order is significant: dedup is first-seen-wins, so earlier
// providers win ties.
type SyncerConfig struct {
	Providers      []provider.Provider
	Classifier     *Classifier
	Cache          SnapshotCache
	Store          JobStore
	Query          model.SearchQuery
	MaxTotalJobs   int
	DedupeDisabled bool
}

// Syncer runs full ingestion cycles: concurrent provider fan-out with
// settle-all join, classification, deduplication, capping and idempotent
// persistence. At most one cycle runs at a time; concurrent callers get a
// no-op skip rather than an error.
type Syncer struct {
	cfg     SyncerConfig
	syncing atomic.Bool
	log     *zap.SugaredLogger
}

// NewSyncer constructs a Syncer.
func NewSyncer(cfg SyncerConfig, log *zap.SugaredLogger) *Syncer {
	return &Syncer{cfg: cfg, log: log}
}

// InProgress reports whether a sync is currently running.
func (s *Syncer) InProgress() bool {
	return s.syncing.Load()
}

// Sync executes one ingestion run and reports what happened. Provider
// failures are soft: they are collected into the result's error list and
// the run proceeds with whatever data arrived. Per-record persistence
// failures are logged and skipped. Only an unreachable store fails the run.
func (s *Syncer) Sync(ctx context.Context) (model.SyncResult, error) {
	res := model.SyncResult{
		PerSourceCounts: make(map[string]int),
		StartedAt:       time.Now().UTC(),
	}

	if !s.syncing.CompareAndSwap(false, true) {
		res.Skipped = true
		res.FinishedAt = time.Now().UTC()
		s.log.Infow("sync already in progress, skipping")
		return res, nil
	}
	defer s.syncing.Store(false)

	jobs := s.collect(ctx, &res)

	if err := s.cfg.Store.Ping(ctx); err != nil {
		res.FinishedAt = time.Now().UTC()
		return res, fmt.Errorf("job store unreachable: %w", err)
	}

	for _, job := range jobs {
		exists, err := s.cfg.Store.ExistsByExternalID(ctx, job.ProviderID)
		if err != nil {
			s.log.Warnw("existence check failed, skipping record", "providerId", job.ProviderID, "err", err)
			res.Errors = append(res.Errors, fmt.Sprintf("persist %s: %v", job.ProviderID, err))
			continue
		}
		if exists {
			continue
		}
		if err := s.cfg.Store.Create(ctx, job); err != nil {
			s.log.Warnw("insert failed, skipping record", "providerId", job.ProviderID, "err", err)
			res.Errors = append(res.Errors, fmt.Sprintf("persist %s: %v", job.ProviderID, err))
			continue
		}
		res.NewJobsAdded++
	}

	// Refresh the snapshot so ad-hoc reads serve this run's candidate set.
	s.cfg.Cache.Set(ctx, jobs)

	res.FinishedAt = time.Now().UTC()
	s.log.Infow("sync complete",
		"fetched", res.TotalFetched,
		"candidates", len(jobs),
		"new", res.NewJobsAdded,
		"errors", len(res.Errors),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

// ExternalJobs serves the ad-hoc read path: the cached snapshot when fresh,
// otherwise a full recompute whose result is written back to the cache.
// It never persists anything.
func (s *Syncer) ExternalJobs(ctx context.Context) ([]model.ExternalJob, error) {
	if jobs, hit := s.cfg.Cache.Get(ctx); hit {
		return jobs, nil
	}

	res := model.SyncResult{PerSourceCounts: make(map[string]int)}
	jobs := s.collect(ctx, &res)
	if len(jobs) == 0 && len(res.Errors) > 0 && len(res.Errors) == len(s.cfg.Providers) {
		return nil, fmt.Errorf("all providers failed: %s", strings.Join(res.Errors, "; "))
	}

	s.cfg.Cache.Set(ctx, jobs)
	return jobs, nil
}

// collect fans out to every provider concurrently and joins settle-all: a
// failed provider contributes an error string, never cancels the others.
// The merged list keeps the configured provider order regardless of which
// call finished first, then is classified, deduped and capped.
func (s *Syncer) collect(ctx context.Context, res *model.SyncResult) []model.ExternalJob {
	s.log.Debugw("fetching", "providers", len(s.cfg.Providers))

	type outcome struct {
		jobs []model.ExternalJob
		err  error
	}
	outcomes := make([]outcome, len(s.cfg.Providers))

	var wg sync.WaitGroup
	for i, p := range s.cfg.Providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			jobs, err := p.Fetch(ctx, s.cfg.Query)
			outcomes[i] = outcome{jobs: jobs, err: err}
		}(i, p)
	}
	wg.Wait()

	var merged []model.ExternalJob
	for i, p := range s.cfg.Providers {
		o := outcomes[i]
		if o.err != nil {
			s.log.Warnw("provider failed", "provider", p.Name(), "err", o.err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p.Name(), o.err))
			res.PerSourceCounts[p.Name()] = 0
			continue
		}
		res.PerSourceCounts[p.Name()] = len(o.jobs)
		merged = append(merged, o.jobs...)
	}
	res.TotalFetched = len(merged)

	s.log.Debugw("filtering", "fetched", len(merged))
	kept := s.cfg.Classifier.Filter(merged)

	if !s.cfg.DedupeDisabled {
		s.log.Debugw("deduping", "classified", len(kept))
		kept = Dedupe(kept)
	}

	if s.cfg.MaxTotalJobs > 0 && len(kept) > s.cfg.MaxTotalJobs {
		kept = kept[:s.cfg.MaxTotalJobs]
	}
	return kept
}
