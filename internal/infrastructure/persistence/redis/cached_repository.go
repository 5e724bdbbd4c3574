package redis

import (
	"context"
	"errors"
	"time"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/pkg/circuitbreaker"
	"github.com/majorpath/majorpath-hub/pkg/logger"
)

// CachedRepository decorates a progress.Store with a read-through Redis
// cache. Saves go to the store first and then drop the cached copy; the
// next read refills it. Any cache failure degrades to the store and trips
// the breaker, so a dead Redis never fails a request.
type CachedRepository struct {
	store   progress.Store
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	log     *logger.Logger
}

var _ progress.Store = (*CachedRepository)(nil)

// IsCacheFailure reports whether err should count against the cache
// breaker. Misses are normal traffic.
func IsCacheFailure(err error) bool {
	return !errors.Is(err, ErrCacheMiss)
}

// NewCachedRepository wraps store. A nil breaker gets the default cache
// breaker, configured to ignore misses.
func NewCachedRepository(store progress.Store, cache *Cache, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration, log *logger.Logger) *CachedRepository {
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil, circuitbreaker.WithIsFailure(IsCacheFailure))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedRepository{
		store:   store,
		cache:   cache,
		breaker: breaker,
		ttl:     ttl,
		log:     log.With(logger.Component("progress-cache")),
	}
}

// Get serves from cache when possible and fills it on a miss.
func (r *CachedRepository) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	var cached progress.UserProgress
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Get(ctx, ProgressKey(userID), &cached)
	})
	if err == nil && cached.UserID != "" {
		cached.Normalize()
		return &cached, nil
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		r.log.Debug("cache read skipped", logger.UserID(userID), logger.Err(err))
	}

	p, err := r.store.Get(ctx, userID)
	if err != nil || p == nil {
		return p, err
	}
	r.fill(ctx, p)
	return p, nil
}

// Create delegates to the store and caches the result.
func (r *CachedRepository) Create(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, err := r.store.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, p)
	return p, nil
}

// Save delegates to the store and drops the cached copy whether or not the
// store accepted the write. Only Get and Create fill the cache.
func (r *CachedRepository) Save(ctx context.Context, userID string, patch progress.Patch) (*progress.UserProgress, error) {
	p, err := r.store.Save(ctx, userID, patch)
	r.invalidate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AppendActivity delegates to the store and invalidates the cached copy.
func (r *CachedRepository) AppendActivity(ctx context.Context, userID string, activity progress.Activity) error {
	err := r.store.AppendActivity(ctx, userID, activity)
	r.invalidate(ctx, userID)
	return err
}

// RecentActivities reads through Get so cached records serve the feed too.
func (r *CachedRepository) RecentActivities(ctx context.Context, userID string, k int) ([]progress.Activity, error) {
	p, err := r.Get(ctx, userID)
	if err != nil || p == nil {
		return []progress.Activity{}, err
	}
	return progress.NewestFirst(p.Activities, k), nil
}

// Ping checks the cache. The store is checked separately.
func (r *CachedRepository) Ping(ctx context.Context) error {
	return r.cache.Ping(ctx)
}

// Breaker exposes the breaker for health reporting.
func (r *CachedRepository) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}

func (r *CachedRepository) fill(ctx context.Context, p *progress.UserProgress) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Set(ctx, ProgressKey(p.UserID), p, r.ttl)
	})
	if err != nil {
		r.log.Debug("cache fill skipped", logger.UserID(p.UserID), logger.Err(err))
	}
}

func (r *CachedRepository) invalidate(ctx context.Context, userID string) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Delete(ctx, ProgressKey(userID))
	})
	if err != nil {
		r.log.Warn("cache invalidation failed", logger.UserID(userID), logger.Err(err))
	}
}
