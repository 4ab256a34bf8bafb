package cmd

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/internal/metrics"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	orderRepository "github.com/thaohienhomes/phochat-payments/internal/order/postgres"
	"github.com/thaohienhomes/phochat-payments/internal/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/reconcile"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
	"github.com/thaohienhomes/phochat-payments/pkg/redis"
)

// Dependencies are shared by the server, the worker and the one-shot commands.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	EventBus *events.EventBus
	Registry *prometheus.Registry
	Metrics  *metrics.PaymentMetrics
	Gateway  *paymentgateway.Client
	Orders   *order.Service
	Logger   *slog.Logger
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(config)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var redisClient *redis.Client
	if config.Redis.URL != "" {
		redisClient, err = redis.New(ctx, config.Redis.URL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	bus := events.NewEventBus(lg)
	paymentMetrics.Subscribe(bus)
	subscribeOrderLog(bus, lg)

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		APIURL:      config.Payment.APIURL,
		ClientID:    config.Payment.ClientID,
		APIKey:      config.Payment.APIKey,
		ChecksumKey: config.Payment.ChecksumKey,
		Timeout:     config.Payment.Timeout,
	}, lg)

	orders := order.NewService(orderRepository.NewOrderRepository(gormDB), bus, lg)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gormDB,
		Redis:    redisClient,
		EventBus: bus,
		Registry: registry,
		Metrics:  paymentMetrics,
		Gateway:  gateway,
		Orders:   orders,
		Logger:   lg,
	}, nil
}

// Sweep builds the reconcile service, consulting the provider first when the
// status lookup is enabled.
func (d *Dependencies) Sweep() *reconcile.Service {
	opts := []reconcile.Option{reconcile.WithMetrics(d.Metrics)}
	if d.Config.Payment.StatusLookup {
		opts = append(opts, reconcile.WithStatusLookup(d.Gateway))
	}
	return reconcile.NewService(d.Orders, d.Logger, opts...)
}

// Close drains in-flight event handlers and releases connections.
func (d *Dependencies) Close(ctx context.Context) {
	if err := d.EventBus.Wait(ctx); err != nil {
		d.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

// subscribeOrderLog writes every published order event to the log.
func subscribeOrderLog(bus *events.EventBus, lg *slog.Logger) {
	bus.SubscribeMany(func(ctx context.Context, event events.Event) error {
		switch e := event.(type) {
		case *events.OrderTransitionedEvent:
			lg.Info("order transitioned",
				"order_code", e.OrderCode,
				"status", e.Status,
				"source", e.Source)
		case *events.LatePaymentEvent:
			lg.Warn("payment arrived for expired order",
				"order_code", e.OrderCode,
				"event_hash", e.EventHash)
		}
		return nil
	}, append(events.OrderTransitionEventTypes, events.EventTypeOrderLatePayment)...)
}

// initDB opens the pgx pool through sqlx.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm reuses the sqlx pool for the repositories.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
