// Package persistence selects and opens the configured record store.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/mongo"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/postgres"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/redis"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/sqlite"
	"github.com/majorpath/majorpath-hub/pkg/circuitbreaker"
	"github.com/majorpath/majorpath-hub/pkg/logger"
	"github.com/majorpath/majorpath-hub/pkg/retry"
)

// ErrNoLocation is returned when the selected backend has no URL, URI or
// path configured.
var ErrNoLocation = errors.New("persistence: store location not configured")

// Backend is an opened store together with its lifecycle hooks.
type Backend struct {
	// Name is the configured backend name.
	Name config.StoreBackend

	// Store is the record store, wrapped by the cache when one is enabled.
	Store progress.Store

	// Ping checks the underlying store, bypassing the cache.
	Ping func(ctx context.Context) error

	// Cache is nil when Redis is disabled or unreachable.
	Cache *redis.Cache

	// Breaker guards the cache. Nil without a cache.
	Breaker *circuitbreaker.CircuitBreaker

	migrate func(ctx context.Context) (int, error)
	status  func(ctx context.Context) ([]postgres.Migration, error)
	closers []func(ctx context.Context) error
}

// Open connects to the configured store, retrying while the store comes up.
// Redis is attached when enabled; a cache that cannot be reached is logged
// and skipped.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	log = log.With(logger.Component("persistence"), logger.Backend(string(cfg.Store.Backend)))
	b := &Backend{Name: cfg.Store.Backend}
	window := cfg.Progress.ActivityWindow
	now := func() time.Time { return time.Now().In(cfg.App.Location) }

	retrier := retry.ConnectRetrier().With(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("store not reachable, retrying", logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
	}))

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		conn, err := retry.DoWithData(ctx, retrier, func(ctx context.Context) (*postgres.Connection, error) {
			if cfg.Store.DatabaseURL == "" {
				return nil, retry.Permanent(ErrNoLocation)
			}
			conn, err := postgres.Connect(ctx, cfg.Store.DatabaseURL, postgres.PoolOptions{
				MaxConns:        int32(cfg.Store.MaxOpenConns),
				MinConns:        int32(cfg.Store.MaxIdleConns),
				MaxConnLifetime: cfg.Store.ConnMaxLifetime,
				MaxConnIdleTime: cfg.Store.ConnMaxIdleTime,
			})
			if errors.Is(err, postgres.ErrInvalidURL) {
				return nil, retry.Permanent(err)
			}
			return conn, err
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := postgres.NewProgressRepository(conn, window, now)
		b.Store, b.Ping = repo, repo.Ping
		migrator := postgres.NewMigrator(conn)
		b.migrate, b.status = migrator.Migrate, migrator.Status
		b.closers = append(b.closers, func(context.Context) error { conn.Close(); return nil })

	case config.BackendSQLite:
		store, err := retry.DoWithData(ctx, retrier, func(ctx context.Context) (*sqlite.Store, error) {
			if cfg.Store.SQLitePath == "" {
				return nil, retry.Permanent(ErrNoLocation)
			}
			return sqlite.Open(ctx, cfg.Store.SQLitePath, window, now)
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.Store, b.Ping = store, store.Ping
		b.migrate = func(ctx context.Context) (int, error) { return 0, store.Migrate(ctx) }
		b.closers = append(b.closers, func(context.Context) error { return store.Close() })

	case config.BackendMongo:
		client, err := retry.DoWithData(ctx, retrier, func(ctx context.Context) (*mongodriver.Client, error) {
			if cfg.Store.MongoURI == "" {
				return nil, retry.Permanent(ErrNoLocation)
			}
			client, err := mongo.Connect(ctx, cfg.Store.MongoURI)
			if errors.Is(err, mongo.ErrInvalidURI) {
				return nil, retry.Permanent(err)
			}
			return client, err
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		store := mongo.NewStore(client.Database(cfg.Store.MongoDatabase), cfg.Store.MongoCollection, window, now)
		b.Store, b.Ping = store, store.Ping
		b.closers = append(b.closers, client.Disconnect)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if !cfg.Redis.Disabled {
		b.attachCache(ctx, cfg, log)
	}
	return b, nil
}

func (b *Backend) attachCache(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	if cfg.Redis.Host != "" {
		rc.Host, rc.Port = cfg.Redis.Host, cfg.Redis.Port
	}
	rc.Password, rc.DB = cfg.Redis.Password, cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout, rc.ReadTimeout, rc.WriteTimeout = cfg.Redis.DialTimeout, cfg.Redis.ReadTimeout, cfg.Redis.WriteTimeout
	}

	cache, err := redis.Connect(ctx, rc)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", logger.Err(err))
		return
	}

	b.Breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("cache breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}, circuitbreaker.WithIsFailure(redis.IsCacheFailure))
	b.Cache = cache
	b.Store = redis.NewCachedRepository(b.Store, cache, b.Breaker, cfg.Redis.TTL, log)
	b.closers = append(b.closers, func(context.Context) error { return cache.Close() })
	log.Info("redis cache attached", logger.Duration("ttl", cfg.Redis.TTL))
}

// Migrate applies pending schema migrations and returns how many ran.
// Mongo needs no schema and reports zero.
func (b *Backend) Migrate(ctx context.Context) (int, error) {
	if b.migrate == nil {
		return 0, nil
	}
	return b.migrate(ctx)
}

// MigrationStatus lists the versioned migrations and whether each has run.
// Only postgres tracks versions; other backends report none.
func (b *Backend) MigrationStatus(ctx context.Context) ([]postgres.Migration, error) {
	if b.status == nil {
		return nil, nil
	}
	return b.status(ctx)
}

// Close releases every connection in reverse order of opening.
func (b *Backend) Close(ctx context.Context) error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
