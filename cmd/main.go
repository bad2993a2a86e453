package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"

	"github.com/vantage-intel/vantage/internal/adapters/clickhouse"
	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/internal/adapters/database"
	"github.com/vantage-intel/vantage/internal/adapters/filings"
	"github.com/vantage-intel/vantage/internal/adapters/llm"
	"github.com/vantage-intel/vantage/internal/adapters/news"
	redisAdapter "github.com/vantage-intel/vantage/internal/adapters/redis"
	"github.com/vantage-intel/vantage/internal/adapters/telegram"
	"github.com/vantage-intel/vantage/internal/catalog"
	"github.com/vantage-intel/vantage/internal/classify"
	"github.com/vantage-intel/vantage/internal/discovery"
	"github.com/vantage-intel/vantage/internal/health"
	"github.com/vantage-intel/vantage/internal/impact"
	"github.com/vantage-intel/vantage/internal/scheduler"
	"github.com/vantage-intel/vantage/internal/store"
	"github.com/vantage-intel/vantage/internal/workflow"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration and initialize logger
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Vantage portfolio intelligence starting...",
		zap.Bool("live_llm", cfg.LLM.HasProviders()),
	)

	// Initialize core infrastructure
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis backs the distributed job lock; the engine runs without it
	redisClient := initRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// ClickHouse backs the optional telemetry warehouse
	chDB, nodeEvents, usageRows := initTelemetry(ctx, cfg)
	if chDB != nil {
		defer chDB.Close()
	}

	// Persistence and the tracked-company universe
	st := store.New(db)
	cat, err := loadCatalog(ctx, st)
	if err != nil {
		return err
	}

	// Generative stack with budget tracking and telemetry mirror
	llmClient := initLLM(ctx, cfg, st, usageRows)

	// Domain components
	aggregator := initNewsSystem(cfg, cat)
	classifier := classify.New(llmClient)
	edgar := filings.NewClient(cfg.Discovery.EdgarUserAgent)
	extractor := discovery.New(llmClient, edgar, st, cat, cfg.Discovery.ProbeTimeout, cfg.Discovery.MaxWorkers)
	calculator := impact.New(st, cat, cfg.Impact)
	notifier := initNotifier(cfg)

	// Compile the analysis graph
	trace := &traceFanout{store: st, warehouse: nodeEvents}
	engine, err := initWorkflow(cfg, st, aggregator, classifier, extractor, calculator, notifier, trace)
	if err != nil {
		return err
	}

	// Background jobs
	sched := initScheduler(cfg, redisClient, engine, extractor, st)
	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
	} else {
		logger.Warn("⚠️ scheduler disabled, no analysis runs will fire")
	}

	// Start health server
	healthServer := startHealthServer(cfg, db, redisClient, chDB, sched)

	// Wait for shutdown signal
	<-ctx.Done()

	// Perform graceful shutdown
	return performGracefulShutdown(healthServer, sched, nodeEvents, usageRows, chDB, db, redisClient)
}

// traceFanout copies each run's node trace to the Postgres audit table
// and, when the warehouse is up, to ClickHouse. The store write decides
// success.
type traceFanout struct {
	store     *store.Store
	warehouse *clickhouse.NodeEventBatchWriter
}

func (f *traceFanout) SaveAgentLogs(ctx context.Context, logs []models.AgentLog) error {
	if f.warehouse != nil {
		f.warehouse.SaveAgentLogs(ctx, logs)
	}
	return f.store.SaveAgentLogs(ctx, logs)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initRedis connects the optional lock backend. A missing or unreachable
// Redis downgrades to local-only job locking instead of failing startup.
func initRedis(ctx context.Context, cfg *config.Config) *redisAdapter.Client {
	if !cfg.Redis.Enabled {
		logger.Info("redis lock backend disabled, using local job locking")
		return nil
	}

	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err == nil {
		err = redisClient.Health(ctx)
	}
	if err != nil {
		logger.Warn("⚠️ redis not available, falling back to local job locking", zap.Error(err))
		if redisClient != nil {
			redisClient.Close()
		}
		return nil
	}

	logger.Info("redis connection established (redlock)",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port),
	)

	return redisClient
}

// initTelemetry connects the ClickHouse warehouse and prepares the batch
// writers. The warehouse never blocks startup: any failure downgrades to
// a warning and the engine runs without telemetry.
func initTelemetry(ctx context.Context, cfg *config.Config) (*database.DB, *clickhouse.NodeEventBatchWriter, *clickhouse.UsageBatchWriter) {
	if !cfg.Telemetry.Enabled {
		return nil, nil, nil
	}

	ch, err := database.NewClickHouse(cfg.Telemetry.DSN)
	if err == nil {
		err = ch.DB().Ping()
	}
	if err != nil {
		logger.Warn("⚠️ ClickHouse not available, telemetry disabled", zap.Error(err))
		if ch != nil {
			ch.Close()
		}
		return nil, nil, nil
	}

	repo := clickhouse.NewRepository(ch.DB())
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("⚠️ failed to prepare telemetry schema, telemetry disabled", zap.Error(err))
		ch.Close()
		return nil, nil, nil
	}

	nodeEvents := clickhouse.NewNodeEventBatchWriter(repo, cfg.Telemetry.MaxBatch, cfg.Telemetry.FlushInterval)
	usageRows := clickhouse.NewUsageBatchWriter(repo, cfg.Telemetry.MaxBatch, cfg.Telemetry.FlushInterval)

	logger.Info("ClickHouse telemetry established",
		zap.Int("max_batch", cfg.Telemetry.MaxBatch),
		zap.Duration("flush_interval", cfg.Telemetry.FlushInterval),
	)

	return ch, nodeEvents, usageRows
}

// loadCatalog snapshots the tracked-company universe for entity matching.
func loadCatalog(ctx context.Context, st *store.Store) (*catalog.Catalog, error) {
	companies, err := st.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load company catalog: %w", err)
	}
	if len(companies) == 0 {
		logger.Warn("⚠️ company catalog is empty, run cmd/seed to load the starter universe")
	}

	portfolio := 0
	for _, c := range companies {
		if c.IsPortfolio {
			portfolio++
		}
	}
	logger.Info("company catalog loaded",
		zap.Int("companies", len(companies)),
		zap.Int("portfolio", portfolio),
	)

	return catalog.New(companies), nil
}

// initLLM builds the generative stack: daily budget tracker, provider
// chain, and the warehouse usage mirror when telemetry is up.
func initLLM(ctx context.Context, cfg *config.Config, st *store.Store, usageRows *clickhouse.UsageBatchWriter) *llm.Client {
	usage := llm.NewUsageTracker(st, cfg.LLM.DailyBudgetUSD)
	usage.Load(ctx)

	client := llm.NewClient(&cfg.LLM, usage)
	if usageRows != nil {
		client.SetUsageMirror(usageRows)
	}

	return client
}

// initNewsSystem wires the enabled live providers with the mock fallback
// behind the dedup/tagging aggregator.
func initNewsSystem(cfg *config.Config, cat *catalog.Catalog) *news.Aggregator {
	var providers []news.Provider
	var fallback news.Provider

	if cfg.News.Enabled {
		if cfg.News.FinnhubEnabled {
			providers = append(providers, news.NewFinnhubProvider(cfg.News.FinnhubAPIKey, true))
		}
		if cfg.News.NewsAPIEnabled {
			providers = append(providers, news.NewNewsAPIProvider(cfg.News.NewsAPIKey, true))
		}
		if cfg.News.GoogleNewsEnabled {
			providers = append(providers, news.NewGoogleNewsProvider(true, cfg.News.Keywords))
		}
		if cfg.News.MockEnabled {
			fallback = news.NewMockProvider(true)
		}
	}

	if len(providers) == 0 && fallback == nil {
		logger.Warn("⚠️ no news providers enabled, analysis runs will fail until one is configured")
	} else {
		logger.Info("news system initialized",
			zap.Int("providers", len(providers)),
			zap.Bool("mock_fallback", fallback != nil),
		)
	}

	return news.NewAggregator(providers, fallback, cat, cfg.News.MaxArticleAge)
}

// initNotifier wires Telegram alert push. Returns nil when unconfigured
// so the alert node falls back to log-only delivery.
func initNotifier(cfg *config.Config) workflow.Notifier {
	if !cfg.Telegram.TelegramEnabled() {
		logger.Info("telegram alerts disabled (no token provided)")
		return nil
	}

	notifier, err := telegram.NewNotifier(&cfg.Telegram)
	if err != nil {
		logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		return nil
	}

	logger.Info("📱 Telegram notifier initialized")
	return notifier
}

// initWorkflow compiles the seven-node analysis graph.
func initWorkflow(
	cfg *config.Config,
	st *store.Store,
	aggregator *news.Aggregator,
	classifier *classify.Classifier,
	extractor *discovery.Extractor,
	calculator *impact.Calculator,
	notifier workflow.Notifier,
	trace workflow.TraceSink,
) (*workflow.Engine, error) {
	validator := workflow.NewValidator(cfg.Workflow.ConfidenceThreshold, cfg.Workflow.MaxLoops)

	engine := workflow.NewEngine(trace, cfg.Workflow.MaxLoops)
	nodes := workflow.NewNodes(workflow.Deps{
		Fetcher:    aggregator,
		Classifier: classifier,
		Discoverer: extractor,
		Assessor:   calculator,
		Store:      st,
		Notifier:   notifier,
		Validator:  validator,
		CacheTTL:   cfg.Discovery.CacheTTL,
		FetchLimit: cfg.News.FetchLimit,
	})
	if err := nodes.Register(engine); err != nil {
		return nil, fmt.Errorf("failed to compile workflow graph: %w", err)
	}

	return engine, nil
}

// initScheduler registers the analysis run and the relationship cache
// refresh on the shared heartbeat.
func initScheduler(cfg *config.Config, lock *redisAdapter.Client, engine *workflow.Engine, extractor *discovery.Extractor, st *store.Store) *scheduler.Scheduler {
	var locker scheduler.Locker
	if lock != nil {
		locker = lock
	}

	sched := scheduler.New(cfg.Scheduler.Heartbeat, cfg.Scheduler.LockTTL, locker)
	sched.Add(scheduler.NewWorkflowJob(engine, st), cfg.Scheduler.RunInterval)
	sched.Add(scheduler.NewRefreshJob(extractor, st, st, cfg.Discovery.CacheTTL), cfg.Scheduler.RefreshInterval)

	return sched
}

// startHealthServer initializes and starts health check server for K8s probes
func startHealthServer(cfg *config.Config, db *database.DB, redisClient *redisAdapter.Client, chDB *database.DB, sched *scheduler.Scheduler) *health.Server {
	healthServer := health.NewServer(cfg.Health.Port, db, redisClient, chDB, sched)

	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	logger.Info("🚀 Vantage engine ready",
		zap.Int("health_port", cfg.Health.Port),
		zap.Duration("run_interval", cfg.Scheduler.RunInterval),
	)

	// Mark service as ready after initialization
	healthServer.SetReady(true)

	return healthServer
}

// performGracefulShutdown handles graceful shutdown of all components
func performGracefulShutdown(
	healthServer *health.Server,
	sched *scheduler.Scheduler,
	nodeEvents *clickhouse.NodeEventBatchWriter,
	usageRows *clickhouse.UsageBatchWriter,
	chDB *database.DB,
	db *database.DB,
	redisClient *redisAdapter.Client,
) error {
	logger.Info("🛑 Shutdown signal received, starting graceful shutdown...")

	// Mark service as not ready (stop accepting new traffic)
	healthServer.SetReady(false)

	// Create shutdown context with timeout (K8s gives 30s terminationGracePeriodSeconds)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	// Drain in-flight analysis runs first
	logger.Info("stopping scheduler...")
	sched.Stop(15 * time.Second)

	// Flush buffered telemetry before the warehouse connection goes away
	if nodeEvents != nil {
		logger.Info("flushing telemetry...")
		if err := nodeEvents.Close(); err != nil {
			logger.Error("telemetry close error", zap.Error(err))
		}
		if err := usageRows.Close(); err != nil {
			logger.Error("telemetry close error", zap.Error(err))
		}
	}
	if chDB != nil {
		logger.Info("closing ClickHouse connection...")
		if err := chDB.Close(); err != nil {
			logger.Error("ClickHouse close error", zap.Error(err))
		}
	}

	// Close database connection
	logger.Info("closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error("database close error", zap.Error(err))
	}

	// Close redis connection
	if redisClient != nil {
		logger.Info("closing redis connection...")
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}

	// Stop health server
	logger.Info("stopping health server...")
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	// Sync logger
	logger.Sync()

	// Check if shutdown completed in time
	select {
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ shutdown timeout exceeded")
		return fmt.Errorf("graceful shutdown timeout")
	default:
		logger.Info("✅ shutdown completed successfully")
	}

	return nil
}
