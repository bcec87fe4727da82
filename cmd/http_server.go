package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/core/events"
	"github.com/frahmantamala/upi-sandbox/internal/metrics"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox/memory"
	sandboxPostgres "github.com/frahmantamala/upi-sandbox/internal/sandbox/postgres"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
	"github.com/frahmantamala/upi-sandbox/internal/transport/rest"
	"github.com/frahmantamala/upi-sandbox/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sandbox HTTP server",
	Long:  `Start the mock UPI gateway: orders, payments with delayed resolution, status lookup, webhook sink and health.`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *gorm.DB
	Router    *chi.Mux
	Service   *sandbox.Service
	EventBus  *events.EventBus
	KafkaSink *events.KafkaSink
	Metrics   *metrics.SandboxMetrics
	Logger    *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "storage", deps.Config.Sandbox.Storage.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	closeDependencies(deps)
	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	baseHandler := transport.NewBaseHandler(deps.Logger)
	sandboxHandler := sandbox.NewHandler(baseHandler, deps.Service)

	routerCfg := rest.RouterConfig{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
	}
	if deps.Config.Observability.Metrics.Enabled {
		routerCfg.MetricsPath = deps.Config.Observability.Metrics.Path
		routerCfg.MetricsHandler = deps.Metrics.Handler()
	}

	rest.RegisterAllRoutes(deps.Router, routerCfg, sandboxHandler, deps.Service, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := setup()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	db, repo, err := initRepository(config.Sandbox.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sandboxMetrics := metrics.NewSandboxMetrics(registry)

	bus := events.NewEventBus(log)
	var sink *events.KafkaSink
	if config.Events.Kafka.Enabled() {
		sink = events.NewKafkaSink(config.Events.Kafka.Brokers, config.Events.Kafka.Topic, log)
		sink.Attach(bus)
	}

	policies := sandbox.NewPolicyTableFromConfig(config.Sandbox, nil)
	service, err := sandbox.NewService(repo, policies, clockwork.NewRealClock(), bus, sandboxMetrics, log)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Config:    config,
		DB:        db,
		Router:    chi.NewRouter(),
		Service:   service,
		EventBus:  bus,
		KafkaSink: sink,
		Metrics:   sandboxMetrics,
		Logger:    log,
	}, nil
}

func closeDependencies(deps *Dependencies) {
	deps.Service.Shutdown()

	if deps.KafkaSink != nil {
		if err := deps.KafkaSink.Close(); err != nil {
			deps.Logger.Error("Kafka sink close error", "error", err)
		}
	}
	if deps.DB != nil {
		if sqlDB, err := deps.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				deps.Logger.Error("Database close error", "error", err)
			}
		}
	}
}

// initRepository picks the store; db is nil for the in-memory store
func initRepository(cfg internal.StorageConfig) (*gorm.DB, sandbox.RepositoryAPI, error) {
	if cfg.Driver == internal.StorageMemory {
		return nil, memory.NewRepository(), nil
	}

	db, err := initDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, sandboxPostgres.NewRepository(db), nil
}

// initDB initializes the database connection
func initDB(cfg internal.StorageConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Warn)}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case internal.StoragePostgres:
		dialector = postgres.Open(cfg.Source)
	case internal.StorageSQLite:
		dialector = sqlite.Open(cfg.Source)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite is a local scratch store, so it creates its own tables; postgres uses the migrate command
	if cfg.Driver == internal.StorageSQLite {
		if err := db.AutoMigrate(&upi.Order{}, &upi.Payment{}); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	return db, nil
}
