package botapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ivankudzin/tgapp/chatguard/internal/config"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
	tginfra "github.com/ivankudzin/tgapp/chatguard/internal/infra/telegram"
	"github.com/ivankudzin/tgapp/chatguard/internal/jobs"
	autodeletejob "github.com/ivankudzin/tgapp/chatguard/internal/jobs/autodelete"
	"github.com/ivankudzin/tgapp/chatguard/internal/jobs/reconcile"
	"github.com/ivankudzin/tgapp/chatguard/internal/repo"
	redrepo "github.com/ivankudzin/tgapp/chatguard/internal/repo/redis"
	autodeletesvc "github.com/ivankudzin/tgapp/chatguard/internal/services/autodelete"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/evaluator"
	modsvc "github.com/ivankudzin/tgapp/chatguard/internal/services/moderation"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/penalty"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/session"
	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      repo.Store
	closeStore func()
	redis      *goredis.Client
	bot        *tginfra.Bot
	registry   *prometheus.Registry

	settings   *settingssvc.Service
	moderation *modsvc.Service
	commands   *commandHandler
	dispatcher *Dispatcher
	runners    []*jobs.Runner
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	store, closeStore, err := repo.Open(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Bot.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Bot.RatePerSecond), max(cfg.Bot.RateBurst, 1))
	}
	bot, err := tginfra.NewBot(cfg.Bot.Token, cfg.Bot.PollTimeout, limiter, logger.Named("telegram"))
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	var (
		redisClient    *goredis.Client
		privilegeCache penalty.PrivilegeCache
		wizardStore    session.Store
		locker         jobs.Locker
	)
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		redisClient = redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			closeStore()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		privilegeCache = redrepo.NewPrivilegeRepo(redisClient)
		wizardStore = redrepo.NewWizardRepo(redisClient)
		locker = redrepo.NewLockRepo(redisClient)
	} else {
		logger.Warn("REDIS_ADDR is empty, privilege cache and job locks disabled")
		wizardStore = session.NewMemoryStore()
	}

	privileges := penalty.NewPrivileges(bot, privilegeCache, cfg.Moderation.PrivilegeCacheTTL, logger.Named("privileges"))

	autodelete := autodeletesvc.NewService(store, store, autodeletesvc.Config{DefaultTTL: cfg.AutoDelete.DefaultTTL})

	executor := penalty.NewExecutor(bot, privileges, penalty.ExecutorConfig{
		RetryAttempts:  cfg.Moderation.RetryAttempts,
		RetryBaseDelay: cfg.Moderation.RetryBaseDelay,
		KickWindow:     cfg.Moderation.KickWindow,
	}, logger.Named("executor"))
	executor.AttachScheduler(autodelete)
	executor.AttachMetrics(appMetrics)

	penalties := penalty.NewService(store, store, executor, penalty.Config{
		WarnLimit:       cfg.Moderation.WarnLimit,
		DefaultDuration: cfg.Moderation.DefaultPenaltyDuration,
	}, logger.Named("penalty"))

	moderation := modsvc.NewService(
		store,
		store,
		privileges,
		evaluator.NewService(evaluator.Config{EvaluateAll: cfg.Moderation.EvaluateAllCategories}),
		executor,
		penalties,
		modsvc.Config{BotID: bot.SelfID()},
		logger.Named("moderation"),
	)
	moderation.AttachMetrics(appMetrics)
	moderation.AttachLinkedChats(bot)

	settings := settingssvc.NewService(store)
	sessions := session.NewManager(wizardStore, cfg.Session.Timeout)
	commands := newCommandHandler(bot, privileges, settings, sessions, logger.Named("commands"))

	dispatcher := NewDispatcher(func(ctx context.Context, event model.Event) {
		moderation.HandleEvent(ctx, event)
	}, cfg.Bot.ChatIdleAfter, cfg.Bot.ChatQueueSize, logger.Named("dispatcher"))
	dispatcher.AttachMetrics(appMetrics)

	sweeper := autodeletejob.NewSweeper(store, bot, cfg.AutoDelete.Batch, logger.Named("autodelete"))
	sweeper.AttachMetrics(appMetrics)
	reconciler := reconcile.NewWorker(store, bot, cfg.Reconcile.Batch, logger.Named("reconcile"))
	reconciler.AttachMetrics(appMetrics)

	runners := []*jobs.Runner{
		jobs.NewRunner(sweeper, cfg.AutoDelete.Interval, logger),
		jobs.NewRunner(reconciler, cfg.Reconcile.Interval, logger),
	}
	for _, runner := range runners {
		if locker != nil {
			runner.AttachLocker(locker, 0)
		}
		runner.AttachMetrics(appMetrics)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		closeStore: closeStore,
		redis:      redisClient,
		bot:        bot,
		registry:   registry,
		settings:   settings,
		moderation: moderation,
		commands:   commands,
		dispatcher: dispatcher,
		runners:    runners,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started", zap.Int64("bot_id", a.bot.SelfID()))
	a.seedChats(ctx)

	var workers sync.WaitGroup
	for _, runner := range a.runners {
		workers.Add(1)
		go func(runner *jobs.Runner) {
			defer workers.Done()
			runner.Start(ctx)
		}(runner)
	}

	errCh := make(chan error, 2)
	listening := make(chan struct{})
	go func() {
		defer close(listening)
		errCh <- a.bot.Listen(ctx, tginfra.Handlers{
			OnEvent: func(_ context.Context, event model.Event) {
				a.dispatcher.Dispatch(event)
			},
			OnCommand: a.commands.handleCommand,
			OnText:    a.commands.handleText,
		})
	}()

	if a.cfg.Bot.MetricsAddr != "" {
		go func() {
			errCh <- a.serveMetrics(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			<-listening
			a.dispatcher.Close()
			workers.Wait()
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
				continue
			}
			return err
		}
	}
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.closeStore != nil {
		a.closeStore()
	}
}

// seedChats applies configured chat bindings. A chat owned by another tenant
// keeps its owner.
func (a *App) seedChats(ctx context.Context) {
	for chatID, tenantID := range a.cfg.Bot.Chats {
		if _, err := a.settings.BindChat(ctx, tenantID, chatID); err != nil {
			a.logger.Warn("bind configured chat failed",
				zap.Error(err),
				zap.Int64("chat_id", chatID),
				zap.Int64("tenant_id", tenantID),
			)
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              a.cfg.Bot.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("bot metrics listening", zap.String("addr", a.cfg.Bot.MetricsAddr))
	return server.ListenAndServe()
}
