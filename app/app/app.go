package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/internal/ask"
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/marketconnect/llm-council/app/internal/council"
	"github.com/marketconnect/llm-council/app/internal/database"
	"github.com/marketconnect/llm-council/app/internal/handlers"
	"github.com/marketconnect/llm-council/app/internal/memory"
	"github.com/marketconnect/llm-council/app/internal/metrics"
	"github.com/marketconnect/llm-council/app/internal/provider"
	"github.com/marketconnect/llm-council/app/internal/queue"
	"github.com/marketconnect/llm-council/app/internal/repository"
	"github.com/marketconnect/llm-council/app/internal/resilience"
	"github.com/marketconnect/llm-council/app/internal/router"
	"github.com/marketconnect/llm-council/app/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	_ "github.com/mattn/go-sqlite3"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Repository     repository.Repository
	DB             *gorm.DB
	Registry       *provider.Registry
	SessionManager *session.SessionManager
	Queue          *queue.Queue
	Breakers       *resilience.Breakers
	Collector      *metrics.Collector
	Ask            *ask.Service
	Council        *council.Manager
	Deliberator    *council.Deliberator
	Memory         *memory.Service
	Prometheus     *prometheus.Registry
	Engine         *gin.Engine
}

// NewApp creates and initializes all application dependencies
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	var err error
	klog.Infof("Initializing session repository with type: %s", cfg.Repository.Type)
	switch cfg.Repository.Type {
	case "sqlite":
		a.Repository, err = repository.NewSQLiteRepository(cfg.Repository.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
	case "memory":
		fallthrough
	default:
		a.Repository = repository.NewMemoryRepository()
	}
	if err := a.Repository.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	a.SessionManager = session.NewSessionManager(a.Repository)

	a.DB, err = database.InitDB(cfg.Registry.DBType, cfg.Registry.DSN)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize provider registry: %w", err)
	}
	a.Registry = provider.NewRegistry(a.DB)
	if err := a.seedProviders(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Queue = queue.NewQueue(cfg.Queue.RateLimitPerMin, cfg.Queue.MaxResponseBytes)
	factory := provider.NewFactory(a.Registry, a.Queue, cfg.Providers.CallTimeout)

	a.Prometheus = prometheus.NewRegistry()
	a.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Collector = metrics.NewCollector(a.Prometheus)
	a.Breakers = resilience.NewBreakers(cfg.Breaker.Threshold, cfg.Breaker.Cooldown)

	a.Ask = ask.NewService(ask.Deps{
		Providers:   a.Registry,
		Factory:     factory,
		Sessions:    a.SessionManager,
		Limiter:     resilience.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.MaxCallers),
		Breakers:    a.Breakers,
		Collector:   a.Collector,
		Cache:       resilience.NewResponseCache(cfg.Cache.Size, cfg.Cache.TTL),
		CallTimeout: cfg.Providers.CallTimeout,
	})
	a.Council = council.NewManager(cfg.Council, a.Repository)
	a.Deliberator = council.NewDeliberator(a.Council, factory, cfg.Providers.MemberTimeout)
	a.Memory = memory.NewService(a.Repository)

	a.Engine = router.Setup(cfg, a.Prometheus,
		handlers.NewAskHandler(a.Ask),
		handlers.NewSessionStatusHandler(a.Ask),
		handlers.NewDeliberationHandler(a.Council, a.Deliberator),
		handlers.NewProviderHandler(a.Registry, a.Breakers, cfg.IsAdmin, cfg.AdminToken),
		handlers.NewMemoryHandler(a.Memory),
	)
	return a, nil
}

func (a *App) seedProviders(ctx context.Context) error {
	if err := a.Registry.Seed(ctx, provider.DefaultProviders()); err != nil {
		return fmt.Errorf("failed to seed providers: %w", err)
	}
	for name, key := range a.Config.APIKeys() {
		if _, err := a.Registry.SetAPIKey(ctx, name, key); err != nil {
			return fmt.Errorf("failed to set %s API key: %w", name, err)
		}
		klog.V(2).Infof("API key for provider %s loaded from environment", name)
	}
	return nil
}

// Close cleans up all dependencies
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider registry: %w", err))
		}
	}
	if a.SessionManager != nil {
		if err := a.SessionManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session manager: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ReapOnce fails council sessions stuck longer than the configured age.
func (a *App) ReapOnce() int {
	n, err := a.Council.ReapStale(a.Config.Reaper.MaxAge)
	if err != nil {
		klog.Errorf("council reaper: %v", err)
		return 0
	}
	if n > 0 {
		klog.Infof("council reaper failed %d stale sessions", n)
	}
	return n
}

func (a *App) reap(ctx context.Context) {
	interval := a.Config.Reaper.Interval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ReapOnce()
		}
	}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.reap(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.HTTP.Port),
		Handler: a.Engine,
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Starting server on %s", srv.Addr)
		klog.Info("Available endpoints:")
		klog.Info("  - Council query: POST /api/council/query")
		klog.Info("  - Deliberations: /api/deliberations")
		klog.Info("  - Providers: /api/providers")
		klog.Info("  - Agent memory: /api/agents/{agent}/...")
		klog.Info("  - Prometheus: /metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		klog.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}
