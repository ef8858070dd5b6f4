// Command seed writes demo skiers and posts into the configured backends.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"peakshare/internal/bootstrap"
	"peakshare/internal/config"
	"peakshare/internal/observability"
	"peakshare/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 80, "Number of posts to create")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.GlobalLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := observability.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	observability.SetGlobal(log)

	if cfg.PersistenceDriver == config.DriverNone && cfg.RedisURL == "" {
		log.Error("nothing to seed into: set PERSISTENCE_DRIVER or REDIS_URL")
		os.Exit(1)
	}

	// Seeding emits events far faster than the sinks drain them.
	if cfg.PersistQueueSize < 1<<16 {
		cfg.PersistQueueSize = 1 << 16
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, log, bootstrap.Options{SkipSeed: true})
	if err != nil {
		log.Error("failed to initialize runtime", "error", err)
		os.Exit(1)
	}

	res, seedErr := rt.Seed(ctx, *numUsers, *numPosts, *randSeed)

	closeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		log.Error("failed to flush seed data", "error", err)
		os.Exit(1)
	}
	if seedErr != nil {
		log.Error("seeding failed", "error", seedErr)
		os.Exit(1)
	}

	log.Info("seeding complete",
		"users", res.Users,
		"posts", res.Posts,
		"follows", res.Follows,
		"password", seed.DemoPassword,
	)
}
