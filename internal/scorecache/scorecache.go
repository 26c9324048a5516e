package scorecache

import (
	"context"
	"log/slog"
	"time"

	"github.com/castlens/castlens/internal/metrics"
	"github.com/castlens/castlens/internal/profile"
	"github.com/castlens/castlens/internal/store"
)

// DefaultExpiry is the freshness window applied when none is configured.
const DefaultExpiry = 24 * time.Hour

// FetchFunc produces a fresh profile for a fid. ok=false signals that
// upstream has no data; a non-nil error signals that upstream could not
// be reached or understood. The coordinator treats both as absence and
// never retries.
type FetchFunc func(ctx context.Context, fid string) (profile.Profile, bool, error)

// Result is what the coordinator hands to callers: the profile, where
// it came from, and when it was last fetched from upstream.
type Result struct {
	Profile       profile.Profile `json:"profile"`
	FromCache     bool            `json:"isFromCache"`
	LastRefreshed time.Time       `json:"lastRefreshed"`
}

// Config assembles a Service. Store is required; everything else has a
// usable zero value. Now is injectable so tests control the clock.
type Config struct {
	Store   store.Store
	Expiry  time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

// Service coordinates cache-or-fetch for score records. It holds no
// cross-process locks: concurrent callers for the same fid may each
// fetch and upsert, and the last write wins.
type Service struct {
	store   store.Store
	expiry  time.Duration
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// New constructs the coordinator.
func New(cfg Config) *Service {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		expiry:  expiry,
		logger:  logger.With(slog.String("component", "scorecache")),
		metrics: cfg.Metrics,
		now:     now,
	}
}

// GetWithCache returns the score record for fid, serving from the store
// when a row exists and is fresher than the expiry window, otherwise
// fetching once from upstream and writing the result back. ok=false
// means neither cache nor upstream produced data. Store failures never
// surface: a failed read degrades to a fetch, a failed write still
// returns the freshly fetched record.
func (s *Service) GetWithCache(ctx context.Context, fid string, fetch FetchFunc, forceRefresh bool) (Result, bool) {
	start := time.Now()

	if !forceRefresh {
		if result, ok := s.lookup(ctx, fid); ok {
			s.metrics.ObserveLookup(metrics.LookupOutcomeHit, true, time.Since(start))
			return result, true
		}
	}

	fresh, ok, err := fetch(ctx, fid)
	if err != nil {
		// Unreachable upstream and truly-absent data collapse into one
		// signal; the widget shows the same "not found" state for both.
		s.logger.Warn("upstream fetch failed", slog.String("fid", fid), slog.Any("error", err))
		s.metrics.ObserveLookup(metrics.LookupOutcomeAbsent, false, time.Since(start))
		return Result{}, false
	}
	if !ok {
		s.logger.Info("no upstream record", slog.String("fid", fid))
		s.metrics.ObserveLookup(metrics.LookupOutcomeAbsent, false, time.Since(start))
		return Result{}, false
	}

	refreshedAt := s.now().UTC()
	s.persist(ctx, fid, fresh, refreshedAt)
	s.metrics.ObserveLookup(metrics.LookupOutcomeRefreshed, false, time.Since(start))
	return Result{Profile: fresh, FromCache: false, LastRefreshed: refreshedAt}, true
}

// lookup reads the store and decides whether the row is trustworthy.
// Any read failure is logged and reported as a miss.
func (s *Service) lookup(ctx context.Context, fid string) (Result, bool) {
	readStart := time.Now()
	entry, found, err := s.store.Get(ctx, fid)
	switch {
	case err != nil:
		s.metrics.ObserveStoreGet(metrics.StoreOutcomeError, time.Since(readStart))
		s.logger.Warn("store read failed, treating as miss", slog.String("fid", fid), slog.Any("error", err))
		return Result{}, false
	case !found:
		s.metrics.ObserveStoreGet(metrics.StoreOutcomeMiss, time.Since(readStart))
		return Result{}, false
	}
	s.metrics.ObserveStoreGet(metrics.StoreOutcomeHit, time.Since(readStart))

	age := s.now().Sub(entry.LastRefreshed)
	if age > s.expiry {
		// The stale row stays in place; only the read distrusts it.
		s.logger.Info("cache entry expired", slog.String("fid", fid), slog.Duration("age", age))
		return Result{}, false
	}
	return Result{Profile: entry.Profile, FromCache: true, LastRefreshed: entry.LastRefreshed}, true
}

// persist writes the fetched record back, best effort.
func (s *Service) persist(ctx context.Context, fid string, p profile.Profile, refreshedAt time.Time) {
	writeStart := time.Now()
	if _, err := s.store.Upsert(ctx, fid, p, refreshedAt); err != nil {
		s.metrics.ObserveStoreUpsert(metrics.StoreOutcomeError, time.Since(writeStart))
		s.logger.Warn("store write failed, serving uncached result", slog.String("fid", fid), slog.Any("error", err))
		return
	}
	s.metrics.ObserveStoreUpsert(metrics.StoreOutcomeStored, time.Since(writeStart))
}
