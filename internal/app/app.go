package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/db"
	"github.com/yungbote/amicus-backend/internal/http"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Driver   string
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
	})

	theDB, driver, err := db.Open(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrateAll(theDB); err != nil {
			log.Sync()
			return nil, fmt.Errorf("%s automigrate: %w", driver, err)
		}
	}

	clients, err := wireClients(log, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, hub, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	var server *http.Server
	if cfg.RunServer {
		server = wireServer(log, cfg, metrics, wireHandlers(log, theDB, clients, serviceset, hub))
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Driver:       driver,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       hub,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: bus forwarding, the job worker and
// the metrics collectors. It is a no-op when already started.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.SSEBus != nil && a.Server != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			a.Log.Warn("SSE forwarder failed to start", "error", err)
		}
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	}

	if a.Metrics != nil {
		if a.Driver == db.DriverPostgres {
			a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		}
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, func(ctx context.Context, jobType string) (map[string]int64, error) {
			return a.Repos.JobRun.CountByStatus(dbctx.Context{Ctx: ctx}, jobType)
		})
		if a.Cfg.MetricsAddr != "" {
			a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		}
	}
}

// Run serves HTTP until ctx is done. A worker-only process just waits.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil {
		a.Log.Info("HTTP server disabled; running worker only")
		<-ctx.Done()
		return nil
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
