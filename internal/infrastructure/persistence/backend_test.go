package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/mongo"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/postgres"
	"github.com/majorpath/majorpath-hub/pkg/logger"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Location: time.UTC},
		Store:    config.StoreConfig{Backend: config.BackendSQLite, SQLitePath: ":memory:"},
		Redis:    config.RedisConfig{Disabled: true},
		Progress: config.ProgressConfig{ActivityWindow: 5},
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, sqliteConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(ctx) })

	assert.Nil(t, b.Cache)
	assert.Nil(t, b.Breaker)
	require.NoError(t, b.Ping(ctx))

	_, err = b.Migrate(ctx)
	require.NoError(t, err)

	p, err := b.Store.Create(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	saved, err := b.Store.Save(ctx, "u1", progress.Patch{ExpectedVersion: 1, TotalPoints: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, saved.TotalPoints)

	status, err := b.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestOpen_BadLocationIsNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		backend config.StoreBackend
		set     func(*config.StoreConfig)
		want    error
	}{
		{"postgres missing url", config.BackendPostgres, func(s *config.StoreConfig) {}, ErrNoLocation},
		{"postgres invalid url", config.BackendPostgres, func(s *config.StoreConfig) { s.DatabaseURL = "postgres://user@host:notaport/db" }, postgres.ErrInvalidURL},
		{"sqlite missing path", config.BackendSQLite, func(s *config.StoreConfig) { s.SQLitePath = "" }, ErrNoLocation},
		{"mongo missing uri", config.BackendMongo, func(s *config.StoreConfig) {}, ErrNoLocation},
		{"mongo invalid uri", config.BackendMongo, func(s *config.StoreConfig) { s.MongoURI = "http://localhost:27017" }, mongo.ErrInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			cfg := sqliteConfig()
			cfg.Store.Backend = tt.backend
			tt.set(&cfg.Store)

			_, err := Open(context.Background(), cfg, logger.FromZap(zap.New(core)))

			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, logs.FilterMessage("store not reachable, retrying").Len())
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Store.Backend = "cassandra"

	_, err := Open(context.Background(), cfg, logger.Nop())

	assert.ErrorContains(t, err, "cassandra")
}

func ptr[T any](v T) *T { return &v }
