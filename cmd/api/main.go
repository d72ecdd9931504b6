package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-busboxd/internal/config"
	"backend-busboxd/internal/db"
	"backend-busboxd/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// shutdownTimeout bounds draining HTTP connections; flushTimeout separately
// bounds the final trip write-back so a slow drain cannot starve it.
var (
	shutdownTimeout = 5 * time.Second
	flushTimeout    = 30 * time.Second
)

var newServer = server.NewServer

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *slog.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Postgres is only needed by the postgres blob backend.
	var pg *pgxpool.Pool
	if cfg.StoreBackend == "postgres" {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			logger.Error("postgres connection failed", "error", err)
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, logger, signals, nil); err != nil {
		logger.Error("server exited with error", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. On the way
// out it flushes pending trip write-backs before closing connections.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv, err := newServer(cfg, pg, rdb, logger)
	if err != nil {
		return err
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	var listenErr error
	select {
	case <-signals:
	case <-ctx.Done():
	case listenErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := shutdownFn(srv.App, shutdownCtx)

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), flushTimeout)
	defer cancelFlush()
	if err := srv.Close(flushCtx); err != nil {
		logger.Error("trip write-back not flushed", "error", err)
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	if listenErr != nil {
		return listenErr
	}
	return shutdownErr
}
