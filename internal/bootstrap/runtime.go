// Package bootstrap wires configuration into a running store with its
// persistence backends.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"peakshare/internal/cache"
	"peakshare/internal/config"
	"peakshare/internal/database"
	"peakshare/internal/feed"
	"peakshare/internal/graph"
	"peakshare/internal/observability"
	"peakshare/internal/persistence"
	"peakshare/internal/resort"
	"peakshare/internal/seed"
	"peakshare/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is the set of long-lived components behind the API.
type Runtime struct {
	Store      *store.Store
	Graph      *graph.Query
	Feed       *feed.Composer
	Resorts    *resort.Catalog
	DB         *gorm.DB
	Redis      *redis.Client
	SQLSink    *persistence.SQLSink
	RedisSink  *persistence.RedisSink
	Dispatcher *persistence.Dispatcher

	log *observability.Logger
}

// Options control runtime initialization behavior.
type Options struct {
	// StoreOptions are appended to the defaults, mainly for tests.
	StoreOptions []store.Option
	// SkipSeed disables demo seeding even when SEED_DEMO is set.
	SkipSeed bool
}

// InitRuntime connects the configured backends, hydrates the store from
// HYDRATE_FROM, starts the persistence dispatcher and optionally seeds demo
// data into an empty store.
func InitRuntime(ctx context.Context, cfg *config.Config, log *observability.Logger, opts Options) (*Runtime, error) {
	if log == nil {
		log = observability.GlobalLogger
	}
	catalog := resort.Default()
	storeOpts := append([]store.Option{
		store.WithResorts(catalog),
		store.WithLogger(log),
	}, opts.StoreOptions...)
	st := store.New(storeOpts...)
	g := graph.New(st)

	rt := &Runtime{
		Store:   st,
		Graph:   g,
		Feed:    feed.New(st, g),
		Resorts: catalog,
		log:     log,
	}

	var sinks []persistence.Sink
	if cfg.PersistenceDriver != config.DriverNone {
		db, err := database.Connect(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.DB = db
		rt.SQLSink = persistence.NewSQLSink(db, log)
		if err := rt.SQLSink.Migrate(ctx); err != nil {
			rt.closeBackends()
			return nil, err
		}
		sinks = append(sinks, rt.SQLSink)
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		switch {
		case err != nil && cfg.HydrateFrom == config.HydrateRedis:
			rt.closeBackends()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		case err != nil:
			log.Warn("redis unavailable, continuing without redis sink", "error", err)
		default:
			rt.Redis = rdb
			rt.RedisSink = persistence.NewRedisSink(rdb, log)
			sinks = append(sinks, rt.RedisSink)
		}
	}

	if err := rt.hydrate(ctx, cfg.HydrateFrom); err != nil {
		rt.closeBackends()
		return nil, err
	}

	rt.Dispatcher = persistence.NewDispatcher(log, cfg.PersistQueueSize, sinks...)
	rt.Dispatcher.Attach(st)

	if cfg.SeedDemo && !opts.SkipSeed && len(st.ListUsers()) == 0 {
		if _, err := rt.Seed(ctx, cfg.SeedUsers, cfg.SeedPosts, 0); err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
	}

	return rt, nil
}

func (rt *Runtime) hydrate(ctx context.Context, from string) error {
	var source persistence.Sink
	switch from {
	case config.HydrateSQL:
		if rt.SQLSink != nil {
			source = rt.SQLSink
		}
	case config.HydrateRedis:
		if rt.RedisSink != nil {
			source = rt.RedisSink
		}
	}
	if source == nil {
		return nil
	}

	snap, err := persistence.Hydrate(ctx, rt.Store, source)
	if err != nil {
		return fmt.Errorf("hydrate from %s: %w", source.Name(), err)
	}
	rt.log.Info("store hydrated",
		"source", source.Name(),
		"users", len(snap.Users),
		"posts", len(snap.Posts),
		"follows", len(snap.Follows),
	)
	return nil
}

// Seed generates demo data through the store.
func (rt *Runtime) Seed(ctx context.Context, users, posts int, randSeed int64) (seed.Result, error) {
	res, err := seed.New(rt.Store, rt.Resorts, rt.log, randSeed).Run(ctx, seed.Options{
		NumUsers: users,
		NumPosts: posts,
	})
	if err != nil {
		return res, fmt.Errorf("demo seed failed: %w", err)
	}
	return res, nil
}

// Close drains pending persistence writes and closes the backends.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Dispatcher != nil {
		if err := rt.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, rt.closeBackends()...)
	return errors.Join(errs...)
}

func (rt *Runtime) closeBackends() []error {
	var errs []error
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close sql DB: %w", cerr))
			}
		}
	}
	if rt.Redis != nil {
		if rerr := rt.Redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}
	return errs
}
