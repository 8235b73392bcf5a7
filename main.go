package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-vote/broadcast"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/ratelimit"
	"github.com/danielhkuo/quickly-vote/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Stop on Ctrl-C or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	limitCfg := ratelimit.Config{
		Window:        cfg.RateLimitWindow,
		MaxRequests:   cfg.RateLimitMax,
		SweepInterval: cfg.SweepInterval,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Rate limiter: shared Redis store when configured, otherwise in memory
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			slog.Error("redis configuration failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("redis ping failed", "error", err)
			os.Exit(1)
		}

		limiter, err = ratelimit.NewRedis(client, limitCfg)
		if err != nil {
			slog.Error("rate limiter setup failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Rate limiter ready", "store", "redis")
	} else {
		memory, err := ratelimit.NewMemory(limitCfg, slog.Default())
		if err != nil {
			slog.Error("rate limiter setup failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return memory.Run(ctx) })
		limiter = memory
		slog.Info("Rate limiter ready", "store", "memory")
	}

	hub := broadcast.NewHub(broadcast.DefaultQueueSize, slog.Default())
	g.Go(func() error { return hub.Run(ctx) })

	// Create router
	mux := router.NewRouter(dbConn, cfg, limiter, hub)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigin, mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked socket connections; they end
		// when BaseContext is cancelled
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server closed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server closed")
}
