package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/config"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
	"github.com/ivankudzin/tgapp/chatguard/internal/repo"
	authsvc "github.com/ivankudzin/tgapp/chatguard/internal/services/auth"
	autodeletesvc "github.com/ivankudzin/tgapp/chatguard/internal/services/autodelete"
	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
)

// App is the admin API process: tenant operators edit rules, whitelists
// and auto-delete settings of their chats.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	closeStore func()
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	store, closeStore, err := repo.Open(ctx, cfg.Postgres.DSN, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, appMetrics)

	RegisterRoutes(r, Dependencies{
		SettingsService: settingssvc.NewService(store),
		AutoDeleteService: autodeletesvc.NewService(store, store, autodeletesvc.Config{
			DefaultTTL: cfg.AutoDelete.DefaultTTL,
		}),
		Tokens:         authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		closeStore: closeStore,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.closeStore != nil {
		a.closeStore()
	}
	return err
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
