package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/nkemjika/shortlinks/internal/config"
	"github.com/nkemjika/shortlinks/internal/keygen"
	"github.com/nkemjika/shortlinks/internal/server"
	"github.com/nkemjika/shortlinks/internal/shortener"
)

// App holds the application dependencies and configuration. It is the only
// owner of the store handle; nothing in the process reaches storage except
// through the service wired here.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *server.Server

	closers []func()
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"store_backend", cfg.Store.Backend,
	)

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	store, err := app.openStore(ctx, cfg, logger)
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to open link store: %w", err)
	}

	// A clock reading before the epoch makes every generated key garbage;
	// refuse to serve traffic instead.
	keys, err := keygen.NewTimestamp()
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to initialize key generator: %w", err)
	}

	svc := shortener.NewService(store, keys)
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	app.Server = server.New(cfg, logger, handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return app, nil
}

// Start starts the application server and blocks until shutdown.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the resources owned by the application.
func (a *App) Shutdown() {
	a.Logger.Info("shutting down application")

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStore constructs the configured link store backend and ensures its
// schema exists before the first operation.
func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (shortener.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store, err := shortener.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		})

		logger.Info("sqlite store ready", "path", cfg.Store.SQLitePath)
		return store, nil

	case config.BackendPostgres:
		pool, err := connectPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		store := shortener.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}

		logger.Info("postgres store ready", "host", cfg.Store.Host, "database", cfg.Store.Name)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// connectPostgres establishes a connection pool to the PostgreSQL database.
func connectPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Store.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Store.MaxConns
	poolConfig.MinConns = cfg.Store.MinConns

	logger.Info("connecting to database",
		"host", cfg.Store.Host,
		"port", cfg.Store.Port,
		"database", cfg.Store.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" || env == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}
