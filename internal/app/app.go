package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/linemk/recipe-exchange/internal/config"
	"github.com/linemk/recipe-exchange/internal/events"
	"github.com/linemk/recipe-exchange/internal/idempotency"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	DB          *sql.DB
	NATS        *nats.Conn
	Redis       *redis.Client
	Publisher   events.Publisher
	Idempotency *idempotency.Guard
}

// NewApp открывает подключения. NATS и Redis необязательны: без адреса
// события не публикуются, а Idempotency-Key не проверяется.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is not set")
	}

	db, err := sql.Open("postgres", DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Publisher: events.Nop{},
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("recipe-exchange"))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		app.NATS = nc
		app.Publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
		log.Info("event publishing enabled", slog.String("url", cfg.NATS.URL))
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			app.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		app.Redis = rdb
		app.Idempotency = idempotency.NewGuard(rdb, "recipes", cfg.Redis.IdempotencyTTL)
		log.Info("idempotency keys enabled", slog.String("addr", cfg.Redis.Addr))
	}

	return app, nil
}

// DSN собирает строку подключения к Postgres.
func DSN(db config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
	)
}

// Close закрывает всё, что успели открыть. NATS сначала дренируется,
// чтобы не потерять уже опубликованные события.
func (a *App) Close() error {
	var errs []error
	if a.NATS != nil {
		if err := a.NATS.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats drain: %w", err))
		}
		deadline := time.Now().Add(5 * time.Second)
		for !a.NATS.IsClosed() && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}
