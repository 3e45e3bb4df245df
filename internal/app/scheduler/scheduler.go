// Package scheduler собирает демон планировщика: монитор исчерпания,
// агрегатор выручки и технический HTTP-сервер с метриками.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/askspace/coworking-ledger/internal/cache"
	"github.com/askspace/coworking-ledger/internal/config"
	"github.com/askspace/coworking-ledger/internal/migrations"
	"github.com/askspace/coworking-ledger/internal/rabbitmq"
	"github.com/askspace/coworking-ledger/internal/services/billing"
	ledgerservice "github.com/askspace/coworking-ledger/internal/services/ledger"
	monitorservice "github.com/askspace/coworking-ledger/internal/services/monitor"
	"github.com/askspace/coworking-ledger/internal/services/revenue"
	sessionservice "github.com/askspace/coworking-ledger/internal/services/sessions"
	"github.com/askspace/coworking-ledger/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	monitorService *monitorservice.Service
	revenueService *revenue.Service
	sessionService *sessionservice.Service
	ledgerService  *ledgerservice.Service

	storage       *repository.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	metricsServer *http.Server
	logger        *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	notifier := rabbitmq.NewNotifier(ch, 20)

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	resolver := billing.New(cfg.Billing.HourlyRate)
	ledgerService := ledgerservice.New(db, logger,
		cfg.Scheduler.SettleRetries, cfg.Scheduler.SettleRetryDelay)
	sessionService := sessionservice.New(db, ledgerService, resolver, notifier, logger)
	monitorService := monitorservice.New(db, sessionService, notifier, logger,
		cfg.Scheduler.MonitorInterval)
	revenueService := revenue.New(db, cacheRedis, logger,
		cfg.Billing.HourlyRate, cfg.Scheduler.RevenueInterval)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := repository.CheckDatabaseReady(db); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	metricsServer := &http.Server{
		Addr:         cfg.MetricsServer.AddressMetrics,
		Handler:      router,
		ReadTimeout:  cfg.MetricsServer.TimeoutMetrics,
		WriteTimeout: cfg.MetricsServer.TimeoutMetrics,
		IdleTimeout:  cfg.MetricsServer.IdleTimeout,
	}

	return &App{
		monitorService: monitorService,
		revenueService: revenueService,
		sessionService: sessionService,
		ledgerService:  ledgerService,
		storage:        db,
		conn:           conn,
		ch:             ch,
		metricsServer:  metricsServer,
		logger:         logger,
	}, nil
}

// Sessions возвращает сервис сессий для внешних слоев.
func (a *App) Sessions() *sessionservice.Service { return a.sessionService }

// Ledger возвращает сервис прав пользователей для внешних слоев.
func (a *App) Ledger() *ledgerservice.Service { return a.ledgerService }

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.monitorService.Run(ctx)
	go a.revenueService.Run(ctx)
	go func() {
		a.logger.Info("metrics server listening", "addr", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown metrics server", slog.Any("err", err))
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	if err := a.storage.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}

	return nil
}
