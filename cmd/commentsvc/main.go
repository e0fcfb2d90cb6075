package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/video-comments/internal/engine"
	"github.com/example/video-comments/internal/events"
	"github.com/example/video-comments/internal/handlers"
	"github.com/example/video-comments/internal/platform/auth"
	"github.com/example/video-comments/internal/platform/cache"
	"github.com/example/video-comments/internal/platform/config"
	"github.com/example/video-comments/internal/platform/db"
	"github.com/example/video-comments/internal/platform/httpserver"
	"github.com/example/video-comments/internal/platform/logging"
	"github.com/example/video-comments/internal/platform/natsconn"
	"github.com/example/video-comments/internal/platform/run"
	"github.com/example/video-comments/internal/service"
	"github.com/example/video-comments/internal/store"
)

// main delegates to realMain so deferred teardown (pool close, log sync)
// unwinds before the process exits.
func main() {
	run.Exit(realMain())
}

func realMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	eng, ready, closeEngine, err := initEngine(cfg, log)
	if err != nil {
		log.Error("storage engine init failed", zap.Error(err))
		return 1
	}
	if closeEngine != nil {
		defer closeEngine()
	}

	comments := store.NewRankedCommentStore(eng)
	replies := store.NewReplyStore(eng)
	pager := store.NewPaginator(comments, replies, initCountCache(cfg, log), log)
	publisher := initPublisher(cfg, log)
	svc := service.New(comments, replies, pager, publisher, log)

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready})

	// Public reads
	r.Get("/v1/videos/{video_id}/comments", handlers.ListComments(svc, cfg.Paging))
	r.Get("/v1/comments/{comment_id}/replies", handlers.ListReplies(svc, cfg.Paging))

	// Writes require a user
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/videos/{video_id}/comments", handlers.AddComment(svc))
		r.Post("/v1/videos/{video_id}/comments/{comment_id}/replies", handlers.AddReply(svc))
		r.Post("/v1/videos/{video_id}/comments/{comment_id}/like", handlers.LikeComment(svc))
	})

	// Full-partition count is expensive, admin only
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier), auth.RequireAdmin)
		r.Get("/v1/videos/{video_id}/comments/count", handlers.CountComments(svc))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	return code
}

// initEngine selects the storage engine backend. Production requires a
// working Postgres connection and fails startup otherwise; development falls
// back to the in-memory engine.
func initEngine(cfg config.AppConfig, log *zap.Logger) (engine.Engine, func() error, func(), error) {
	if cfg.DatabaseURL == "" {
		if cfg.Production() {
			return nil, nil, nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL not set, using in-memory engine (development only)")
		return engine.NewMemory(), nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.Production() {
			return nil, nil, nil, fmt.Errorf("postgres required in production: %w", err)
		}
		log.Warn("postgres unavailable, falling back to in-memory engine", zap.Error(err))
		return engine.NewMemory(), nil, nil, nil
	}

	pg := engine.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx, store.CommentsDDL, store.RepliesDDL); err != nil {
		pool.Close()
		if cfg.Production() {
			return nil, nil, nil, fmt.Errorf("schema setup: %w", err)
		}
		log.Warn("schema setup failed, falling back to in-memory engine", zap.Error(err))
		return engine.NewMemory(), nil, nil, nil
	}

	log.Info("storage engine: postgres")
	ready := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pg.Ping(ctx)
	}
	return pg, ready, pool.Close, nil
}

// initCountCache wires the redis count cache when REDIS_URL is set.
func initCountCache(cfg config.AppConfig, log *zap.Logger) store.CountCache {
	if cfg.RedisURL == "" {
		return nil
	}
	c, err := cache.NewRedisCache(cfg.RedisURL, 30*time.Second)
	if err != nil {
		log.Warn("redis unavailable, count estimates will scan every page", zap.Error(err))
		return nil
	}
	log.Info("count cache: redis")
	return c
}

// initPublisher wires the NATS event publisher when NATS_URL is set.
// NATS being down is non-fatal: the publisher degrades to a no-op.
func initPublisher(cfg config.AppConfig, log *zap.Logger) *events.Publisher {
	if cfg.NATSURL == "" {
		return events.New(nil, log)
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Warn("nats connect failed, events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn("jetstream unavailable, events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	return events.New(js, log)
}
