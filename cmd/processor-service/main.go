package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/file-processor/internal/api/handler"
	"github.com/cuongbtq/file-processor/internal/api/router"
	apistorage "github.com/cuongbtq/file-processor/internal/api/storage"
	"github.com/cuongbtq/file-processor/internal/config"
	"github.com/cuongbtq/file-processor/internal/report"
	"github.com/cuongbtq/file-processor/internal/worker"
	"github.com/cuongbtq/file-processor/internal/worker/debounce"
	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/output"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
	"github.com/cuongbtq/file-processor/internal/worker/storage"
	"github.com/cuongbtq/file-processor/internal/worker/strategy"
	"github.com/cuongbtq/file-processor/internal/worker/watcher"
	"github.com/cuongbtq/file-processor/shared/logger"
	"github.com/cuongbtq/file-processor/shared/postgresql"
	"github.com/cuongbtq/file-processor/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("PROCESSOR_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/processor-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, created, err := config.LoadOrCreate(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	if created {
		appLogger.Info("Config file not found, wrote defaults", slog.String("path", *configPath))
	}

	appLogger.Info("Starting processor service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("input_dir", cfg.Directories.InputDir),
		slog.String("output_dir", cfg.Directories.OutputDir),
	)

	for _, dir := range []string{cfg.Directories.InputDir, cfg.Directories.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Signals only start the drain; the pipeline runs on its own context
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	proc, err := strategy.New(cfg.Processing.Strategy)
	if err != nil {
		return err
	}

	classifier := domain.NewClassifier(cfg.Processing.FileLockedErrorCodes...)
	executor := retry.NewExecutor(retry.Policy{
		MaxRetries:   cfg.Processing.MaxRetries,
		InitialDelay: cfg.Processing.InitialRetryDelay,
		MaxDelay:     cfg.Processing.MaxRetryDelay,
		Retryable:    domain.IsTransient,
	}, appLogger.Logger)

	writer := output.NewWriter(&output.Config{
		Logger:     appLogger.Logger,
		Dir:        cfg.Directories.OutputDir,
		Extension:  cfg.Processing.OutputExtension,
		Retry:      executor,
		Classifier: classifier,
	})

	memory := report.NewMemory(cfg.Server.RecentOutcomes)
	reporter := report.NewMulti(appLogger.Logger, report.NewLogReporter(appLogger.Logger), memory)

	workerID := cfg.App.Name + "-" + uuid.NewString()[:8]

	var dbClient *postgresql.Client
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(sigCtx, &cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()

		outcomeStore := storage.NewStorage(dbClient.GetDB(), appLogger.Logger, workerID)
		if err := outcomeStore.EnsureSchema(sigCtx); err != nil {
			return err
		}
		reporter.Add(outcomeStore)
		appLogger.Info("Database connection established")
	}

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(sigCtx, &cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		publishRetry := retry.NewExecutor(retry.Policy{
			MaxRetries:   cfg.RabbitMQ.Publish.RetryAttempts,
			InitialDelay: cfg.RabbitMQ.Publish.RetryInterval,
			MaxDelay:     cfg.RabbitMQ.Publish.MaxInterval,
			Retryable:    report.PublishRetryable,
		}, appLogger.Logger)
		reporter.Add(report.NewAMQPReporter(appLogger.Logger, rabbitClient, publishRetry,
			report.WithPublishTimeout(cfg.RabbitMQ.Publish.Timeout),
		))
		appLogger.Info("RabbitMQ connection established")
	}

	fileWatcher, err := watcher.New(watcher.Config{
		Dir:          cfg.Directories.InputDir,
		Recursive:    cfg.Watcher.Recursive,
		ScanExisting: cfg.Watcher.ScanExisting,
		BufferSize:   cfg.Watcher.ChannelBufferSize,
	}, appLogger.With("component", "watcher").Logger)
	if err != nil {
		return err
	}

	debouncer := debounce.New(appLogger.With("component", "debouncer").Logger, cfg.Watcher.ProcessingDelay, cfg.Watcher.ChannelBufferSize)

	workerInstance := worker.NewWorker(&worker.Config{
		ID:          workerID,
		Logger:      appLogger.WithAttrs(slog.String("component", "worker")).Logger,
		Strategy:    proc,
		Retry:       executor,
		Classifier:  classifier,
		Writer:      writer,
		Reporter:    reporter,
		Concurrency: cfg.Worker.Concurrency,
		DeleteInput: cfg.Processing.DeleteProcessedInput,
	})

	// runCtx bounds processing; watchCtx only bounds the event source so
	// canceling it lets the queue drain.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)
	watchCtx, cancelWatch := context.WithCancel(gctx)
	defer cancelWatch()

	g.Go(func() error { return fileWatcher.Run(watchCtx) })
	g.Go(func() error { return debouncer.Run(gctx, fileWatcher.Events()) })
	g.Go(func() error { return workerInstance.Start(gctx, debouncer.Ready()) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var (
		srv       *http.Server
		serverErr = make(chan error, 1)
	)
	if cfg.Server.Enabled {
		apiLogger := appLogger.With("component", "api").Logger
		deps := &handler.Dependencies{
			Logger: apiLogger,
			Recent: memory,
			Stats:  workerInstance,
		}
		if dbClient != nil {
			deps.History = apistorage.NewStorage(dbClient.GetDB())
			deps.Database = dbClient
		}
		if rabbitClient != nil {
			deps.Broker = rabbitClient
		}
		srv = startServer(cfg, deps, apiLogger, serverErr)
	}

	appLogger.Info("Processor service is running", slog.String("worker_id", workerID))

	var pipelineErr error
	select {
	case <-sigCtx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
		pipelineErr = drain(appLogger.Logger, cancelWatch, cancelRun, done, cfg.Worker.ShutdownTimeout)
	case err := <-serverErr:
		appLogger.Error("HTTP server failed", slog.Any("error", err))
		pipelineErr = drain(appLogger.Logger, cancelWatch, cancelRun, done, cfg.Worker.ShutdownTimeout)
		if pipelineErr == nil {
			pipelineErr = err
		}
	case pipelineErr = <-done:
		if pipelineErr != nil {
			appLogger.Error("Pipeline stopped", slog.Any("error", pipelineErr))
		}
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		}
	}

	counters := memory.Counters()
	appLogger.Info("Processor service shutdown complete",
		slog.Int64("succeeded", counters.Succeeded),
		slog.Int64("failed", counters.Failed),
	)
	return pipelineErr
}

// drain stops the event source and waits for queued jobs to finish. After
// timeout the processing context is canceled and remaining jobs end as
// canceled failures.
func drain(logger *slog.Logger, cancelWatch, cancelRun context.CancelFunc, done <-chan error, timeout time.Duration) error {
	cancelWatch()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		logger.Info("Pipeline drained")
		return err
	case <-timer.C:
		logger.Warn("Shutdown timeout exceeded, canceling in-flight jobs",
			slog.Duration("timeout", timeout),
		)
		cancelRun()
		return <-done
	}
}

func startServer(cfg *config.Config, deps *handler.Dependencies, logger *slog.Logger, serverErr chan<- error) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.SetupRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	return srv
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:             cfg.Level,
		Format:            cfg.Format,
		Output:            cfg.Output,
		DuplicateToStdout: cfg.DuplicateToStdout,
		EnableCaller:      cfg.EnableCaller,
		TimeFormat:        time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(ctx, &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.Timeout,
	}, logger)
}
