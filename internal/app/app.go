package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/realtime"
	"taskboard/internal/repo"

	"github.com/felixge/httpsnoop"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	store  repo.Store
	redis  *redis.Client
	hub    *realtime.Hub
	router *gin.Engine
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store

	deps := Deps{Store: store, Log: log}
	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.redis = rdb
		deps.Sessions = auth.NewStore(rdb, cfg.Auth.SessionTTL.Duration())
		deps.Cache = cache.NewTaskCache(rdb, cfg.Redis.DefaultTTL.Duration())
	} else {
		log.Warn("redis not configured: sessions are in-process and caching is disabled")
		deps.Sessions = auth.NewMemoryStore(cfg.Auth.SessionTTL.Duration())
	}

	a.hub = realtime.NewHub(realtime.Options{QueueSize: cfg.Realtime.QueueSize, Logger: log})
	deps.Hub = a.hub

	a.router = newRouter(cfg, deps)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Handler is the router wrapped with the access log.
func (a *App) Handler() http.Handler {
	return accessLog(a.log, a.router)
}

// Close disconnects every push session, then releases Redis and the store.
func (a *App) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.hub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("push sessions did not drain before shutdown deadline")
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store.Close != nil {
		a.store.Close()
	}
	return nil
}

func openStore(cfg config.StoreConfig) (repo.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if err := runMigrations(cfg.DSN); err != nil {
			return repo.Store{}, err
		}
		pool, err := newPostgres(cfg.DSN)
		if err != nil {
			return repo.Store{}, err
		}
		return repo.NewPGStore(pool), nil
	case config.DriverSQLite:
		db, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return repo.Store{}, err
		}
		return repo.NewSQLiteStore(db), nil
	case config.DriverMemory:
		return repo.NewMemory().Store(), nil
	}
	return repo.Store{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newPostgres(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func runMigrations(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()
	return repo.Migrate(db, "postgres")
}

func newRouter(cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.HTTP.Origins()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie", "x-auth-token"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, cfg, deps)
	return r
}

func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.Info("handled", "method", r.Method, "path", r.URL.Path, "status", m.Code, "duration", m.Duration)
	})
}
