package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/db"
	"github.com/lalocmtz/adbroll-backend/internal/observability"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/sse"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Hub      *sse.Hub
	cancel   context.CancelFunc
	stopOtel func(context.Context) error
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

	stopOtel := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "adbroll-backend",
		Environment: os.Getenv("APP_ENV"),
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := sse.NewHub(log)

	clientset, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, reposet, clientset, hub)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, reposet, clientset, hub)
	router := wireRouter(log, handlerset)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clientset,
		Services: serviceset,
		Hub:      hub,
		stopOtel: stopOtel,
	}, nil
}

// Start launches the background halves: the job worker pool and the progress
// bus forwarder feeding the aggregator.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Cfg.WorkerEnabled && a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
	if err := a.Services.Aggregator.Start(ctx, a.Clients.Bus); err != nil {
		return fmt.Errorf("start aggregator forwarder: %w", err)
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Clients.Bus != nil {
		_ = a.Clients.Bus.Close()
	}
	if a.Clients.Speech != nil {
		_ = a.Clients.Speech.Close()
	}
	if a.stopOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.stopOtel(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
