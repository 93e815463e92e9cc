package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/quest-backend/internal/data/db"
	"github.com/yungbote/quest-backend/internal/http"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/observability"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	DB       *db.Service
	Catalog  *locale.Catalog
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *http.Server

	shutdownOTel func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Env,
	})

	catalog, err := locale.Load(cfg.Locale.Default)
	if err != nil {
		return nil, fmt.Errorf("load locale catalog: %w", err)
	}

	dbs, err := db.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := dbs.AutoMigrateAll(); err != nil {
			_ = dbs.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}

	clients, err := wireClients(ctx, log, cfg, catalog)
	if err != nil {
		_ = dbs.Close()
		return nil, err
	}

	reposet := wireRepos(dbs.DB(), log)
	serviceset, err := wireServices(ctx, dbs.DB(), log, cfg, catalog, reposet, clients)
	if err != nil {
		closeRedis(clients.Redis)
		_ = dbs.Close()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, dbs)
	middleware := wireMiddleware(log, cfg.Auth, serviceset, catalog)
	server := wireServer(log, cfg.HTTP, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbs,
		Catalog:      catalog,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains the server and the
// memory worker.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Services.MemoryWorker.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
		return a.Server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return errors.Join(
			a.Server.Shutdown(shutdownCtx),
			a.Services.MemoryWorker.Stop(shutdownCtx),
		)
	})
	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.Cfg.HTTP.ShutdownTimeout.Duration; d > 0 {
		return d
	}
	return 15 * time.Second
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.Services.closeMemory != nil {
		if err := a.Services.closeMemory(); err != nil {
			a.Log.Warn("Memory backend close failed", "error", err)
		}
	}
	closeRedis(a.Clients.Redis)
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
