// Command server runs the PeakShare social graph and feed API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peakshare/internal/bootstrap"
	"peakshare/internal/config"
	"peakshare/internal/observability"
	"peakshare/internal/server"
	"peakshare/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.GlobalLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	observability.SetGlobal(log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.Error("failed to initialize runtime", "error", err)
		os.Exit(1)
	}

	if rt.RedisSink != nil {
		err := rt.RedisSink.WatchChanges(ctx, func(ev store.ChangeEvent) {
			log.Debug("change published",
				"entity", string(ev.Entity),
				"op", string(ev.Op),
				"id", ev.ID,
				"correlation_id", ev.CorrelationID,
			)
		})
		if err != nil {
			log.Warn("failed to watch change channel", "error", err)
		}
	}

	srv := server.NewServer(cfg, server.Deps{
		Store:   rt.Store,
		Graph:   rt.Graph,
		Feed:    rt.Feed,
		Resorts: rt.Resorts,
		DB:      rt.DB,
		Redis:   rt.Redis,
		Logger:  log,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Error("server stopped", "error", err)
	}

	stop()
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		log.Error("runtime shutdown error", "error", err)
	}
	log.Info("server shutdown complete")
}
