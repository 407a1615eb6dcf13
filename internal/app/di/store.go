package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gorm.io/gorm"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/feature/bars/adapters"
	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/usecase"
	"market_analyzer/internal/platform/cache"
	"market_analyzer/internal/platform/db"
	"market_analyzer/internal/platform/http/handler"
	platformmongo "market_analyzer/internal/platform/mongo"
	platformredis "market_analyzer/internal/platform/redis"
)

// postgresConnectTimeout bounds the startup retry loop against PostgreSQL.
const postgresConnectTimeout = 30 * time.Second

// Store bundles the configured series store with what the binaries need around it.
type Store struct {
	Series   usecase.SeriesStore
	Pushdown usecase.WindowAggregator // nil unless the backend aggregates server-side
	Checks   map[string]handler.Check

	closers []func()
}

// Close releases every connection opened by NewStore, last opened first.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// NewStore opens the store selected by cfg.Store.Driver.
// If Redis is configured and reachable, reads go through the Redis cache.
// Otherwise, the store is used directly.
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	s := &Store{Checks: map[string]handler.Check{}}

	var inner usecase.SeriesStore
	switch cfg.Store.Driver {
	case "mongo":
		client, err := platformmongo.NewMongoClient(ctx, cfg.Store.Mongo)
		if err != nil {
			return nil, connectError("mongo", err)
		}
		s.closers = append(s.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Error("Failed to close MongoDB client", "error", err)
			}
		})
		s.Checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }

		store := adapters.NewMongoSeriesStore(client.Database(cfg.Store.Mongo.Database), cfg.Store.Mongo.Collection)
		inner, s.Pushdown = store, store
	case "postgres":
		gdb, err := db.ConnectWithRetry(db.BuildDSN(cfg.Store.Postgres), postgresConnectTimeout, db.PostgresOpener)
		if err != nil {
			return nil, connectError("postgres", err)
		}
		s.addGorm("postgres", gdb)
		inner = adapters.NewGormSeriesStore(gdb)
	case "sqlite":
		gdb, err := db.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, connectError("sqlite", err)
		}
		s.addGorm("sqlite", gdb)
		inner = adapters.NewGormSeriesStore(gdb)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var rdb *goredis.Client
	if cfg.Store.Redis.Enabled() {
		if tmp, err := platformredis.NewRedisClient(ctx, cfg.Store.Redis); err != nil {
			slog.Warn("Redis unavailable. Running without cache.", "error", err)
		} else {
			rdb = tmp
			s.closers = append(s.closers, func() {
				if err := rdb.Close(); err != nil {
					slog.Error("Failed to close Redis client", "error", err)
				}
			})
			s.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	// Redisキャッシュでラップ (rdb が nil の場合は素通し)
	cached := cache.NewCachingSeriesStore(rdb, cfg.Store.Cache.TTL, inner, "bars")
	if loc := cfg.CacheLocation(); loc != nil {
		cached.ExpireDailyAt(cfg.Store.Cache.ExpireHour, loc)
	}
	s.Series = cached
	return s, nil
}

func (s *Store) addGorm(name string, gdb *gorm.DB) {
	s.closers = append(s.closers, func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s.Checks[name] = func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func connectError(target string, err error) error {
	return domain.Stage("connect", &domain.ConnectionError{Target: target, Err: err})
}
