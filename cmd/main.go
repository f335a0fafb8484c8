// crewlink-ingestion-service
//
// Polls external job boards (Reed, Adzuna) on a recurring schedule,
// normalises and classifies the results for event/AV production roles,
// deduplicates across sources and persists new postings into the
// marketplace job store. Exposes a small admin surface:
//   - GET  /health — liveness probe
//   - POST /sync   — manual sync trigger (honours the single-flight guard)
//   - GET  /jobs   — current candidate set, served from the snapshot cache
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/config"
	"crewlink/ingestion-service/internal/db"
	"crewlink/ingestion-service/internal/ingest"
	"crewlink/ingestion-service/internal/model"
	"crewlink/ingestion-service/internal/provider"
	"crewlink/ingestion-service/internal/scheduler"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zap: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	log := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config error", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("postgres", "err", err)
	}
	defer pool.Close()
	log.Infow("postgres connected")

	// Redis is optional: with it the snapshot cache is shared across
	// instances, without it each instance caches in memory.
	cacheTTL := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	var cache ingest.SnapshotCache = ingest.NewMemoryCache(cacheTTL)
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalw("redis", "err", err)
		}
		defer rdb.Close()
		cache = ingest.NewRedisCache(rdb, cacheTTL, log)
		log.Infow("redis connected, using shared snapshot cache")
	}

	retry := provider.DefaultRetryPolicy
	providers := []provider.Provider{
		provider.NewReedFetcher(cfg.ReedAPIKey, retry, log),
		provider.NewAdzunaFetcher(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry, retry, log),
	}

	syncer := ingest.NewSyncer(ingest.SyncerConfig{
		Providers:  providers,
		Classifier: ingest.NewClassifier(cfg.IncludeKeywords, cfg.ExcludeKeywords),
		Cache:      cache,
		Store:      ingest.NewPostgresStore(pool),
		Query: model.SearchQuery{
			Keywords:   cfg.SearchKeywords,
			Location:   cfg.SearchLocation,
			MaxResults: cfg.MaxPerProvider,
			MinSalary:  cfg.MinSalary,
		},
		MaxTotalJobs:   cfg.MaxTotalJobs,
		DedupeDisabled: cfg.DedupeDisabled,
	}, log)

	sched := scheduler.New(syncer, time.Duration(cfg.SyncIntervalMinutes)*time.Minute, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatalw("scheduler", "err", err)
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/sync", syncHandler(syncer, log))
	mux.HandleFunc("/jobs", jobsHandler(syncer, log))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // /sync and a cold /jobs wait on providers
	}

	go func() {
		log.Infow("listening", "version", version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown", "err", err)
	}
	log.Infow("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "ingestion-service",
		"version": version,
	})
}

// syncHandler triggers one ingestion cycle. A sync already in flight
// responds 409 with the skip report rather than queueing a second run.
func syncHandler(syncer *ingest.Syncer, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		res, err := syncer.Sync(r.Context())
		if err != nil {
			log.Errorw("manual sync failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if res.Skipped {
			writeJSON(w, http.StatusConflict, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// jobsHandler serves the current candidate set, from cache when fresh.
func jobsHandler(syncer *ingest.Syncer, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		jobs, err := syncer.ExternalJobs(r.Context())
		if err != nil {
			log.Errorw("jobs read failed", "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(jobs), "jobs": jobs})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
