// Package main is the leaderboard engine server: a JSON API for reads
// and score submissions, WebSocket subscription streams, and the
// background maintenance scheduler, wired around one engine instance.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/golffinder/leaderboard-engine/config"
	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/engine"
	"github.com/golffinder/leaderboard-engine/internal/engine/cache"
	"github.com/golffinder/leaderboard-engine/internal/infrastructure/messaging"
	"github.com/golffinder/leaderboard-engine/internal/infrastructure/persistence/postgres"
	"github.com/golffinder/leaderboard-engine/internal/infrastructure/scheduler"
	"github.com/golffinder/leaderboard-engine/internal/infrastructure/scheduler/jobs"
	"github.com/golffinder/leaderboard-engine/internal/interface/ws"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

func main() {
	// Missing .env is fine in production; variables come from the
	// environment there.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := logger.DefaultOptions()
	if cfg.AppDebug {
		opts.Level = logger.LevelDebug
	}
	log := logger.New(opts)
	log.Info("starting leaderboard engine", logger.String("env", cfg.AppEnv))

	flags := config.DefaultFeatureFlags()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. BACKEND CONNECTIONS
	// ─────────────────────────────────────────────────────────────────────────
	conns := make([]*postgres.Connection, 0, cfg.StoreConnections)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	stores := make([]leaderboard.Store, 0, cfg.StoreConnections)
	pingers := make([]jobs.Pinger, 0, cfg.StoreConnections)
	for i := 0; i < cfg.StoreConnections; i++ {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("store connection %d: %w", i, err)
		}
		conns = append(conns, conn)
		stores = append(stores, postgres.NewStore(conn))
		pingers = append(pingers, conn)
	}

	if err := postgres.NewMigrator(conns[0]).Migrate(ctx); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	eng, err := engine.New(engine.Config{
		Stores:        stores,
		CallTimeout:   cfg.CallTimeout,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		MaxConcurrent: cfg.MaxConcurrent,
		Cache:         cache.New(cache.WithCapacity(cfg.CacheCapacity)),
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CROSS-INSTANCE BRIDGE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.RedisEnabled {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opt)
		defer client.Close()

		bridge, err := messaging.New(messaging.Config{
			Client: client,
			Cache:  eng.Cache(),
			Broker: eng.Broker(),
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("messaging bridge: %w", err)
		}
		defer bridge.Close()
		eng.SetRemote(bridge)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. MAINTENANCE SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(log)
	if err := sched.Register(jobs.NewCacheSweep(eng.Cache(), log), scheduler.Every(cfg.SweepInterval)); err != nil {
		return err
	}
	if err := sched.Register(jobs.NewPruneDeltas(eng.Calculator(), log), scheduler.Every(cfg.SweepInterval)); err != nil {
		return err
	}
	if err := sched.Register(jobs.NewStoreHealth(eng.Balancer(), pingers, log), scheduler.Every(cfg.HealthInterval)); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	api := newAPI(eng, flags, log)
	wsHandler := ws.NewHandler(eng, log)

	mux := http.NewServeMux()
	api.register(mux)
	mux.HandleFunc("GET /ws/leaderboard", wsHandler.ServeLeaderboard)
	if flags.IsEnabled(config.FeatureTournamentStreams, "") {
		mux.HandleFunc("GET /ws/tournament", wsHandler.ServeTournament)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := conns[0].Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}

	log.Info("stopped")
	return nil
}
