package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/task"
	"github.com/phrazzld/imagegen-api/internal/variant"
)

// GenerationScheduler runs generations in process.
// Implemented by task.Manager.
type GenerationScheduler interface {
	Start(ctx context.Context, id uuid.UUID) error
	Stop(ctx context.Context, id uuid.UUID) (task.State, error)
	State(ctx context.Context, id uuid.UUID) (task.State, error)
	WithGeneration(ctx context.Context, id uuid.UUID, fn func(g *domain.Generation) error) (*domain.Generation, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

var _ GenerationScheduler = (*task.Manager)(nil)

// CreateGenerationParams describes a new generation.
type CreateGenerationParams struct {
	Name       string
	TemplateID uuid.UUID
	Model      domain.ModelSelector
	// RateLimit in requests per hour; zero selects the service default
	RateLimit int
}

// CompletedImage is one finished task of a generation.
type CompletedImage struct {
	TaskID      uuid.UUID  `json:"task_id"`
	VariantID   string     `json:"variant_id"`
	Prompt      string     `json:"prompt"`
	ImageURL    string     `json:"image_url"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GenerationProgress reports where a generation stands.
type GenerationProgress struct {
	GenerationID uuid.UUID              `json:"generation_id"`
	State        task.State             `json:"state"`
	Stats        domain.GenerationStats `json:"stats"`
	Queued       int                    `json:"queued"`
	Images       []CompletedImage       `json:"images"`
}

// GenerationService provides generation lifecycle operations
type GenerationService interface {
	// CreateGeneration expands the template against current parameter values
	// and stores the generation with one pending task per variant
	CreateGeneration(ctx context.Context, params CreateGenerationParams) (*domain.Generation, error)

	// GetGeneration retrieves a generation with its tasks
	GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error)

	// ListGenerations returns all generations, newest first
	ListGenerations(ctx context.Context) ([]*domain.Generation, error)

	// DeleteGeneration stops and removes a generation
	DeleteGeneration(ctx context.Context, id uuid.UUID) error

	// StartGeneration begins processing pending tasks in process
	StartGeneration(ctx context.Context, id uuid.UUID) error

	// StopGeneration requests a cooperative stop
	StopGeneration(ctx context.Context, id uuid.UUID) (task.State, error)

	// GetProgress returns state, counts and finished images
	GetProgress(ctx context.Context, id uuid.UUID) (*GenerationProgress, error)

	// DeleteTask removes a single task that is not processing
	DeleteTask(ctx context.Context, generationID, taskID uuid.UUID) (*domain.Generation, error)

	// ClearTasks removes every task in the given terminal status
	ClearTasks(ctx context.Context, generationID uuid.UUID, status domain.TaskStatus) (int, error)

	// ClearAllTasks empties the task list; confirm must be true
	ClearAllTasks(ctx context.Context, generationID uuid.UUID, confirm bool) (int, error)

	// EnqueueGeneration hands pending tasks to the offload queue
	EnqueueGeneration(ctx context.Context, id uuid.UUID) (int, error)

	// CancelQueued withdraws queued tasks that no worker has picked up
	CancelQueued(ctx context.Context, id uuid.UUID) (int, error)

	// SyncResults applies offloaded results from the result sink
	SyncResults(ctx context.Context, id uuid.UUID) (int, error)
}

// GenerationOption configures optional collaborators of the service.
type GenerationOption func(*generationServiceImpl)

// WithOffload enables the queue operations.
func WithOffload(queue offload.Queue, results sink.ResultSink) GenerationOption {
	return func(s *generationServiceImpl) {
		s.queue = queue
		s.results = results
	}
}

// WithDefaultRateLimit sets the rate limit used when a request gives none.
func WithDefaultRateLimit(perHour int) GenerationOption {
	return func(s *generationServiceImpl) {
		if perHour > 0 {
			s.defaultRateLimit = perHour
		}
	}
}

type generationServiceImpl struct {
	generations store.GenerationStore
	templates   store.TemplateStore
	params      store.ParameterStore
	scheduler   GenerationScheduler
	queue       offload.Queue
	results     sink.ResultSink
	logger      *slog.Logger

	defaultRateLimit int
}

// NewGenerationService creates a new GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	generations store.GenerationStore,
	templates store.TemplateStore,
	params store.ParameterStore,
	scheduler GenerationScheduler,
	logger *slog.Logger,
	opts ...GenerationOption,
) (GenerationService, error) {
	if generations == nil {
		return nil, domain.NewValidationError("generations", "cannot be nil", domain.ErrValidation)
	}
	if templates == nil {
		return nil, domain.NewValidationError("templates", "cannot be nil", domain.ErrValidation)
	}
	if params == nil {
		return nil, domain.NewValidationError("params", "cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &generationServiceImpl{
		generations:      generations,
		templates:        templates,
		params:           params,
		scheduler:        scheduler,
		logger:           logger.With(slog.String("component", "generation_service")),
		defaultRateLimit: 60,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *generationServiceImpl) CreateGeneration(ctx context.Context, p CreateGenerationParams) (*domain.Generation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	tmpl, err := s.templates.GetByID(ctx, p.TemplateID)
	if err != nil {
		return nil, NewServiceError("create_generation", "failed to load template", err)
	}
	params, err := s.params.List(ctx)
	if err != nil {
		return nil, NewServiceError("create_generation", "failed to load parameters", err)
	}

	rateLimit := p.RateLimit
	if rateLimit == 0 {
		rateLimit = s.defaultRateLimit
	}

	// the generation owns this snapshot; later parameter edits do not reach it
	variants := variant.Expand(tmpl.ID, tmpl.Content, variant.ParameterResolver(params))

	g, err := domain.NewGeneration(p.Name, tmpl.ID, p.Model, rateLimit, variants)
	if err != nil {
		return nil, err
	}
	g.Tasks = task.Materialize(g.ID, variants)

	if err := s.generations.Create(ctx, g); err != nil {
		return nil, NewServiceError("create_generation", "failed to save generation", err)
	}

	log.Info("generation created",
		slog.String("generation_id", g.ID.String()),
		slog.String("template_id", tmpl.ID.String()),
		slog.String("model", string(g.Model)),
		slog.Int("rate_limit", g.RateLimit),
		slog.Int("task_count", len(g.Tasks)))
	return g, nil
}

func (s *generationServiceImpl) GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	g, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_generation", "failed to load generation", err)
	}
	return g, nil
}

func (s *generationServiceImpl) ListGenerations(ctx context.Context) ([]*domain.Generation, error) {
	list, err := s.generations.List(ctx)
	if err != nil {
		return nil, NewServiceError("list_generations", "failed to list generations", err)
	}
	return list, nil
}

func (s *generationServiceImpl) DeleteGeneration(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	g, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return NewServiceError("delete_generation", "failed to load generation", err)
	}

	if err := s.scheduler.Remove(ctx, id); err != nil {
		return NewServiceError("delete_generation", "failed to stop scheduler", err)
	}
	s.cancelMessages(ctx, queuedMessages(g.Tasks))

	if err := s.generations.Delete(ctx, id); err != nil {
		return NewServiceError("delete_generation", "failed to delete generation", err)
	}

	log.Info("generation deleted", slog.String("generation_id", id.String()))
	return nil
}

func (s *generationServiceImpl) StartGeneration(ctx context.Context, id uuid.UUID) error {
	if err := s.scheduler.Start(ctx, id); err != nil {
		return NewServiceError("start_generation", "failed to start generation", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("generation started",
		slog.String("generation_id", id.String()))
	return nil
}

func (s *generationServiceImpl) StopGeneration(ctx context.Context, id uuid.UUID) (task.State, error) {
	if _, err := s.generations.GetByID(ctx, id); err != nil {
		return "", NewServiceError("stop_generation", "failed to load generation", err)
	}
	state, err := s.scheduler.Stop(ctx, id)
	if err != nil {
		return "", NewServiceError("stop_generation", "failed to stop generation", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("generation stop requested",
		slog.String("generation_id", id.String()),
		slog.String("state", string(state)))
	return state, nil
}

func (s *generationServiceImpl) GetProgress(ctx context.Context, id uuid.UUID) (*GenerationProgress, error) {
	g, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_progress", "failed to load generation", err)
	}
	state, err := s.scheduler.State(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_progress", "failed to read scheduler state", err)
	}

	progress := &GenerationProgress{
		GenerationID: g.ID,
		State:        state,
		Stats:        g.Stats(),
		Queued:       len(queuedMessages(g.Tasks)),
		Images:       []CompletedImage{},
	}
	for _, t := range g.Tasks {
		if t.Status != domain.TaskStatusCompleted {
			continue
		}
		progress.Images = append(progress.Images, CompletedImage{
			TaskID:      t.ID,
			VariantID:   t.VariantID,
			Prompt:      t.Prompt,
			ImageURL:    t.Result,
			CompletedAt: t.CompletedAt,
		})
	}
	return progress, nil
}

func (s *generationServiceImpl) DeleteTask(ctx context.Context, generationID, taskID uuid.UUID) (*domain.Generation, error) {
	var messages []string
	g, err := s.scheduler.WithGeneration(ctx, generationID, func(g *domain.Generation) error {
		if t := g.FindTask(taskID); t != nil {
			messages = queuedMessages([]*domain.GenerationTask{t})
		}
		return g.RemoveTask(taskID)
	})
	if err != nil {
		return nil, NewServiceError("delete_task", "failed to delete task", err)
	}
	s.cancelMessages(ctx, messages)

	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted",
		slog.String("generation_id", generationID.String()),
		slog.String("task_id", taskID.String()))
	return g, nil
}

func (s *generationServiceImpl) ClearTasks(ctx context.Context, generationID uuid.UUID, status domain.TaskStatus) (int, error) {
	var removed []uuid.UUID
	_, err := s.scheduler.WithGeneration(ctx, generationID, func(g *domain.Generation) error {
		var err error
		removed, err = g.ClearTasks(status)
		return err
	})
	if err != nil {
		return 0, NewServiceError("clear_tasks", "failed to clear tasks", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("tasks cleared",
		slog.String("generation_id", generationID.String()),
		slog.String("status", string(status)),
		slog.Int("count", len(removed)))
	return len(removed), nil
}

func (s *generationServiceImpl) ClearAllTasks(ctx context.Context, generationID uuid.UUID, confirm bool) (int, error) {
	if !confirm {
		return 0, ErrConfirmationRequired
	}

	var (
		removed  []uuid.UUID
		messages []string
	)
	_, err := s.scheduler.WithGeneration(ctx, generationID, func(g *domain.Generation) error {
		messages = queuedMessages(g.Tasks)
		removed = g.ClearAllTasks()
		return nil
	})
	if err != nil {
		return 0, NewServiceError("clear_all_tasks", "failed to clear tasks", err)
	}
	s.cancelMessages(ctx, messages)

	logger.FromContextOrDefault(ctx, s.logger).Info("all tasks cleared",
		slog.String("generation_id", generationID.String()),
		slog.Int("count", len(removed)))
	return len(removed), nil
}

func (s *generationServiceImpl) EnqueueGeneration(ctx context.Context, id uuid.UUID) (int, error) {
	if s.queue == nil {
		return 0, ErrOffloadDisabled
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	state, err := s.scheduler.State(ctx, id)
	if err != nil {
		return 0, NewServiceError("enqueue_generation", "failed to read scheduler state", err)
	}
	if state != task.StateIdle {
		return 0, task.ErrAlreadyRunning
	}

	var (
		enqueued int
		firstErr error
	)
	_, err = s.scheduler.WithGeneration(ctx, id, func(g *domain.Generation) error {
		interval := g.PacingInterval()
		for _, t := range g.Tasks {
			if t.Status != domain.TaskStatusPending || t.MessageID != "" {
				continue
			}

			// spread messages one pacing interval apart
			msg := offload.NewMessage(t, g.Model, time.Duration(enqueued)*interval)
			messageID, err := s.queue.Enqueue(ctx, msg)
			if err != nil {
				firstErr = err
				break
			}
			t.MessageID = messageID
			enqueued++
		}
		if enqueued == 0 && firstErr == nil {
			return task.ErrNoPendingTasks
		}
		return nil
	})
	if err != nil {
		return 0, NewServiceError("enqueue_generation", "failed to enqueue tasks", err)
	}
	if firstErr != nil {
		log.Error("enqueue stopped early",
			slog.String("generation_id", id.String()),
			slog.Int("enqueued", enqueued),
			slog.Any("error", firstErr))
		return enqueued, NewServiceError("enqueue_generation", "failed to enqueue task", firstErr)
	}

	log.Info("generation enqueued",
		slog.String("generation_id", id.String()),
		slog.Int("count", enqueued))
	return enqueued, nil
}

func (s *generationServiceImpl) CancelQueued(ctx context.Context, id uuid.UUID) (int, error) {
	if s.queue == nil {
		return 0, ErrOffloadDisabled
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	cancelled := 0
	_, err := s.scheduler.WithGeneration(ctx, id, func(g *domain.Generation) error {
		for _, t := range g.Tasks {
			if t.Status != domain.TaskStatusPending || t.MessageID == "" {
				continue
			}
			err := s.queue.Cancel(ctx, t.MessageID)
			switch {
			case err == nil:
				t.MessageID = ""
				cancelled++
			case errors.Is(err, offload.ErrMessageNotFound):
				// already picked up; its result arrives through sync
			default:
				log.Warn("failed to cancel queued task",
					slog.String("task_id", t.ID.String()),
					slog.Any("error", err))
			}
		}
		return nil
	})
	if err != nil {
		return 0, NewServiceError("cancel_queued", "failed to cancel queued tasks", err)
	}

	log.Info("queued tasks cancelled",
		slog.String("generation_id", id.String()),
		slog.Int("count", cancelled))
	return cancelled, nil
}

func (s *generationServiceImpl) SyncResults(ctx context.Context, id uuid.UUID) (int, error) {
	if s.results == nil {
		return 0, ErrOffloadDisabled
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	applied := 0
	var taken map[uuid.UUID]sink.Result
	_, err := s.scheduler.WithGeneration(ctx, id, func(g *domain.Generation) error {
		waiting := make([]uuid.UUID, 0)
		for _, t := range g.Tasks {
			if !t.Status.IsTerminal() && t.MessageID != "" {
				waiting = append(waiting, t.ID)
			}
		}
		if len(waiting) == 0 {
			return nil
		}

		results, err := s.results.Take(ctx, g.ID, waiting)
		if err != nil {
			return err
		}
		taken = results
		for taskID, r := range results {
			t := g.FindTask(taskID)
			if t == nil {
				continue
			}
			ok, err := sink.Apply(t, r)
			if err != nil {
				log.Warn("discarding result",
					slog.String("task_id", taskID.String()),
					slog.Any("error", err))
				continue
			}
			if ok {
				applied++
			}
		}
		return nil
	})
	if err != nil {
		s.restoreResults(ctx, taken)
		return 0, NewServiceError("sync_results", "failed to sync results", err)
	}

	if applied > 0 {
		log.Info("results synced",
			slog.String("generation_id", id.String()),
			slog.Int("count", applied))
	}
	return applied, nil
}

// restoreResults returns taken results to the sink after the generation
// they were applied to could not be saved, so the next sync sees them again.
func (s *generationServiceImpl) restoreResults(ctx context.Context, results map[uuid.UUID]sink.Result) {
	ctx = context.WithoutCancel(ctx)
	for taskID, r := range results {
		if err := s.results.Put(ctx, r); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to restore task result",
				slog.String("task_id", taskID.String()),
				slog.Any("error", err))
		}
	}
}

// cancelMessages withdraws queued messages of tasks that no longer exist.
// A message already picked up by a worker produces an orphan result that
// expires in the sink.
func (s *generationServiceImpl) cancelMessages(ctx context.Context, ids []string) {
	if s.queue == nil {
		return
	}
	for _, id := range ids {
		if err := s.queue.Cancel(ctx, id); err != nil && !errors.Is(err, offload.ErrMessageNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("failed to cancel queued message",
				slog.String("message_id", id),
				slog.Any("error", err))
		}
	}
}

func queuedMessages(tasks []*domain.GenerationTask) []string {
	ids := make([]string, 0)
	for _, t := range tasks {
		if t.Status == domain.TaskStatusPending && t.MessageID != "" {
			ids = append(ids, t.MessageID)
		}
	}
	return ids
}
