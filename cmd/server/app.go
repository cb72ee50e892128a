package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/events"
	"github.com/phrazzld/imagegen-api/internal/generation"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/platform/gemini"
	"github.com/phrazzld/imagegen-api/internal/platform/memory"
	"github.com/phrazzld/imagegen-api/internal/platform/postgres"
	"github.com/phrazzld/imagegen-api/internal/platform/redis"
	"github.com/phrazzld/imagegen-api/internal/service"
	"github.com/phrazzld/imagegen-api/internal/signature"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/sink/httpsink"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client

	// Stores
	parameterStore  store.ParameterStore
	templateStore   store.TemplateStore
	generationStore store.GenerationStore

	// Offload plumbing
	queue   offload.Queue
	results sink.ResultSink
	signer  signature.Signer

	// Execution
	runner  task.Runner
	emitter *events.InMemoryEventEmitter
	manager *task.Manager

	// Services
	parameterService  service.ParameterService
	templateService   service.TemplateService
	generationService service.GenerationService
}

// newApplication creates a new application instance with all dependencies initialized.
// A nil db selects in-memory stores.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.initStores()

	if err := app.initOffload(ctx); err != nil {
		return nil, err
	}

	gen, err := gemini.NewGeminiGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image generator: %w", err)
	}
	if err := app.initExecution(gen); err != nil {
		return nil, err
	}

	if cfg.Scheduler.RecoverOnStart {
		if _, err := app.manager.Recover(ctx); err != nil {
			return nil, fmt.Errorf("failed to recover interrupted tasks: %w", err)
		}
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *application) initStores() {
	if app.db == nil {
		app.parameterStore = memory.NewParameterStore()
		app.templateStore = memory.NewTemplateStore()
		app.generationStore = memory.NewGenerationStore()
		return
	}
	app.parameterStore = postgres.NewPostgresParameterStore(app.db, app.logger)
	app.templateStore = postgres.NewPostgresTemplateStore(app.db, app.logger)
	app.generationStore = postgres.NewPostgresGenerationStore(app.db, app.logger)
}

// initOffload picks the queue and result sink: Redis when an address is
// configured, in-process otherwise.
func (app *application) initOffload(ctx context.Context) error {
	cfg := app.config

	if cfg.Offload.SigningKey != "" {
		signer, err := signature.NewSigner(cfg.Offload.SigningKey)
		if err != nil {
			return fmt.Errorf("failed to initialize result signer: %w", err)
		}
		app.signer = signer
	}

	if cfg.Redis.Addr == "" {
		app.queue = offload.NewMemoryQueue()
		app.results = sink.NewMemorySink(cfg.Redis.ResultTTL)
		app.logger.Info("using in-memory offload queue and result sink")
		return nil
	}

	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	app.redis = client
	app.queue = redis.NewQueue(client, cfg.Redis.KeyPrefix, app.logger)
	app.results = redis.NewResultSink(client, cfg.Redis.KeyPrefix, cfg.Redis.ResultTTL, app.logger)
	app.logger.Info("using redis offload queue and result sink", "addr", cfg.Redis.Addr)
	return nil
}

func (app *application) initExecution(gen generation.ImageGenerator) error {
	executor, err := task.NewExecutor(gen, app.config.Retry, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}
	app.runner = executor

	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	if app.redis != nil {
		// publish in-process outcomes to the shared sink for external readers
		app.emitter.RegisterHandler(sink.NewForwarder(app.results, app.logger))
	}

	app.manager = task.NewManager(app.generationStore, app.runner, app.emitter, app.logger)
	return nil
}

func (app *application) initServices() error {
	var err error

	app.parameterService, err = service.NewParameterService(app.parameterStore, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize parameter service: %w", err)
	}

	app.templateService, err = service.NewTemplateService(app.templateStore, app.parameterStore, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize template service: %w", err)
	}

	app.generationService, err = service.NewGenerationService(
		app.generationStore,
		app.templateStore,
		app.parameterStore,
		app.manager,
		app.logger,
		service.WithOffload(app.queue, app.results),
		service.WithDefaultRateLimit(app.config.Scheduler.DefaultRateLimit),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize generation service: %w", err)
	}
	return nil
}

// workerSink returns where the embedded offload worker delivers results:
// the callback endpoint when one is configured, the shared sink otherwise.
func (app *application) workerSink() (sink.ResultSink, error) {
	if app.config.Offload.CallbackURL == "" {
		return app.results, nil
	}
	opts := []httpsink.Option{httpsink.WithLogger(app.logger)}
	if app.signer != nil {
		opts = append(opts, httpsink.WithSigner(app.signer))
	}
	return httpsink.New(app.config.Offload.CallbackURL, opts...)
}

// newWorker builds the embedded offload worker.
func (app *application) newWorker() (*offload.Worker, error) {
	rs, err := app.workerSink()
	if err != nil {
		return nil, err
	}
	wc := offload.DefaultWorkerConfig()
	if app.config.Offload.WorkerCount > 0 {
		wc.WorkerCount = app.config.Offload.WorkerCount
	}
	if app.config.Offload.PollInterval > 0 {
		wc.PollInterval = app.config.Offload.PollInterval
	}
	return offload.NewWorker(app.queue, app.runner, rs, wc, app.logger), nil
}

// cleanup releases external connections. The database is owned by main.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("failed to close redis client", "error", err)
		}
	}
}
