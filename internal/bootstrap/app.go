package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-backend/internal/protocols"
	"wellness-backend/internal/protocols/catalogstore"
	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/queue"
	"wellness-backend/internal/services/health"
	"wellness-backend/internal/shared/config"
	"wellness-backend/internal/shared/lock"
	"wellness-backend/internal/shared/server"
	"wellness-backend/internal/shared/server/middleware"
	"wellness-backend/internal/shared/storage/db"
	"wellness-backend/internal/shared/telemetry"
	"wellness-backend/internal/users"
)

// App holds the wired dependencies shared by every binary.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Queue            queue.Client
	Catalog          *engine.Catalog
	Engine           *engine.Engine
	Locker           lock.Locker
	ProtocolsRepo    protocols.Repo
	UsersRepo        users.Repo
	ProtocolsService *protocols.Service
	UsersService     *users.Service
	Health           *health.Service

	closers []func() error
}

// Build loads the catalog, connects storage and wires services and routes.
// An invalid catalog aborts startup.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if err := telemetry.Init(cfg.Env); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	ctx := context.Background()

	catalog, err := catalogstore.Load(ctx, cfg.CatalogPath, catalogstore.Options{Region: cfg.AWSRegion})
	if err != nil {
		return nil, fmt.Errorf("load protocol catalog: %w", err)
	}
	engineOpts := []engine.Option{}
	if cfg.UniformPhase {
		engineOpts = append(engineOpts, engine.WithUniformPhaseMatching())
	}
	eng, err := engine.New(catalog, engineOpts...)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Catalog: catalog,
		Engine:  eng,
		Health:  health.NewService(catalog.Version()),
	}

	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.DB != nil {
		app.closers = append(app.closers, app.DB.Close)
		app.Health.Register("database", app.DB.PingContext)
	}

	if err := app.buildLocker(ctx); err != nil {
		return nil, err
	}

	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		return nil, err
	}

	app.buildServices()
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		ProtocolHandler: protocols.NewHandler(app.ProtocolsService),
		UserHandler:     users.NewHandler(app.UsersService),
		Health:          app.Health,
		RateLimiter:     middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             cfg.Env,
		"catalog_version": catalog.Version(),
		"database":        app.DB != nil,
		"redis_lock":      strings.TrimSpace(cfg.RedisAddr) != "",
		"queue":           app.Queue != nil,
		"uniform_phase":   cfg.UniformPhase,
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	telemetry.Sync()
	return first
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() || cfg.Env == "test" {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func (a *App) buildLocker(ctx context.Context) error {
	if strings.TrimSpace(a.Config.RedisAddr) == "" {
		a.Locker = lock.NewMemoryLocker(nil)
		return nil
	}
	redisLocker, err := lock.NewRedisLocker(ctx, a.Config.RedisAddr, a.Config.RedisPassword)
	if err != nil {
		if a.Config.IsDevLike() {
			telemetry.Warn("bootstrap.memory_locker", map[string]any{"error": err})
			a.Locker = lock.NewMemoryLocker(nil)
			return nil
		}
		return err
	}
	a.Locker = redisLocker
	a.closers = append(a.closers, redisLocker.Close)
	a.Health.Register("redis", redisLocker.Ping)
	return nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func (a *App) buildServices() {
	if a.DB != nil {
		a.ProtocolsRepo = &protocols.PGRepo{DB: a.DB}
		a.UsersRepo = &users.PGRepo{DB: a.DB}
	} else {
		a.ProtocolsRepo = protocols.NewMemoryRepo()
		a.UsersRepo = users.NewMemoryRepo()
	}

	a.UsersService = users.NewService(a.UsersRepo)
	a.ProtocolsService = &protocols.Service{
		Repo:    a.ProtocolsRepo,
		Engine:  a.Engine,
		Users:   a.UsersService,
		Locker:  a.Locker,
		LockTTL: time.Duration(a.Config.DayLockTTLSecs) * time.Second,
	}
}
