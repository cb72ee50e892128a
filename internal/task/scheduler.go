package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/events"
	"github.com/phrazzld/imagegen-api/internal/redact"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// State is the control state of a generation's scheduler.
type State string

const (
	// StateIdle means no run is in progress.
	StateIdle State = "idle"
	// StateRunning means tasks are being processed.
	StateRunning State = "running"
	// StateStopping means stop was requested and the in-flight task is
	// finishing.
	StateStopping State = "stopping"
)

// Common errors returned by the scheduler
var (
	ErrAlreadyRunning  = errors.New("generation is already running")
	ErrNoPendingTasks  = errors.New("generation has no pending tasks")
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdState
)

type command struct {
	kind  commandKind
	ctx   context.Context
	reply chan reply
}

type reply struct {
	state State
	done  <-chan struct{}
	err   error
}

// Scheduler runs the tasks of one generation.
//
// Control state lives in a single actor goroutine; Start, Stop and State are
// commands sent to it. Runs are started on a goroutine of their own so the
// actor stays responsive while a task is in flight.
type Scheduler struct {
	generationID uuid.UUID
	store        store.GenerationStore
	runner       Runner
	emitter      events.EventEmitter
	logger       *slog.Logger

	// mu serializes read-modify-write cycles on the generation
	mu sync.Locker

	// lastSettled is when the most recent task settled; guarded by mu.
	// It outlives runs so a restart still waits out the pacing interval.
	lastSettled time.Time

	runCtx context.Context
	cmds   chan command
	quit   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewScheduler creates a scheduler and starts its actor goroutine.
// Runs execute under runCtx; cancelling it aborts in-flight calls.
func NewScheduler(
	runCtx context.Context,
	generationID uuid.UUID,
	gs store.GenerationStore,
	runner Runner,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *Scheduler {
	return newScheduler(runCtx, generationID, gs, runner, emitter, logger, &sync.Mutex{})
}

// newScheduler creates a scheduler that serializes generation updates on lock.
func newScheduler(
	runCtx context.Context,
	generationID uuid.UUID,
	gs store.GenerationStore,
	runner Runner,
	emitter events.EventEmitter,
	logger *slog.Logger,
	lock sync.Locker,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		generationID: generationID,
		mu:           lock,
		store:        gs,
		runner:       runner,
		emitter:      emitter,
		logger: logger.With(
			"component", "scheduler",
			"generation_id", generationID.String(),
		),
		runCtx: runCtx,
		cmds:   make(chan command),
		quit:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Start begins processing pending tasks.
// Returns ErrAlreadyRunning unless the scheduler is idle and
// ErrNoPendingTasks when nothing is left to do.
func (s *Scheduler) Start(ctx context.Context) error {
	r, err := s.send(ctx, cmdStart)
	if err != nil {
		return err
	}
	return r.err
}

// Stop requests cooperative cancellation and returns the resulting state.
// The in-flight task is allowed to finish; no further task is started.
// Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) (State, error) {
	r, err := s.send(ctx, cmdStop)
	if err != nil {
		return "", err
	}
	return r.state, nil
}

// State returns the current control state.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	r, err := s.send(ctx, cmdState)
	if err != nil {
		return "", err
	}
	return r.state, nil
}

// Wait blocks until the current run, if any, has ended.
func (s *Scheduler) Wait(ctx context.Context) error {
	r, err := s.send(ctx, cmdState)
	if err != nil {
		return err
	}
	if r.done == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the actor goroutine. A run in progress is asked to stop but
// is not waited for.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.closed
}

func (s *Scheduler) send(ctx context.Context, kind commandKind) (reply, error) {
	cmd := command{kind: kind, ctx: ctx, reply: make(chan reply, 1)}

	select {
	case s.cmds <- cmd:
	case <-s.closed:
		return reply{}, ErrSchedulerClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer close(s.closed)

	state := StateIdle
	var (
		stopCh chan struct{}
		doneCh chan struct{}
	)

	for {
		select {
		case <-s.quit:
			if state == StateRunning {
				close(stopCh)
			}
			return

		case <-doneCh:
			s.logger.Info("generation run ended")
			state = StateIdle
			stopCh, doneCh = nil, nil

		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdStart:
				if state != StateIdle {
					cmd.reply <- reply{state: state, err: ErrAlreadyRunning}
					continue
				}
				if err := s.checkPending(cmd.ctx); err != nil {
					cmd.reply <- reply{state: state, err: err}
					continue
				}
				stopCh = make(chan struct{})
				doneCh = make(chan struct{})
				state = StateRunning
				go s.run(stopCh, doneCh)
				s.logger.Info("generation run started")
				cmd.reply <- reply{state: state, done: doneCh}

			case cmdStop:
				if state == StateRunning {
					close(stopCh)
					state = StateStopping
					s.logger.Info("stop requested")
				}
				cmd.reply <- reply{state: state, done: doneCh}

			case cmdState:
				cmd.reply <- reply{state: state, done: doneCh}
			}
		}
	}
}

func (s *Scheduler) checkPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.GetByID(ctx, s.generationID)
	if err != nil {
		return err
	}
	if g.NextPending() == nil {
		return ErrNoPendingTasks
	}
	return nil
}

// run processes pending tasks until none remain or stop is closed. Each
// task waits until the pacing interval has passed since the previous one
// settled, including one settled by an earlier run.
func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := s.runCtx
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		wait, more, err := s.pacing(ctx)
		if err != nil {
			s.logger.Error("failed to check remaining tasks", "error", err)
			return
		}
		if !more {
			return
		}
		if wait > 0 && !s.sleep(wait, stop) {
			return
		}

		task, model, err := s.claimNext(ctx)
		if errors.Is(err, store.ErrGenerationNotFound) {
			s.logger.Info("generation deleted during run")
			return
		}
		if err != nil {
			s.logger.Error("failed to claim next task", "error", err)
			return
		}
		if task == nil {
			return
		}

		log := s.logger.With("task_id", task.ID.String())
		log.Info("processing task", "variant_id", task.VariantID)

		start := time.Now()
		result, attempts, runErr := s.execute(ctx, task.Prompt, model)
		settled := s.settle(ctx, task, result, attempts, runErr)

		log.Info("task settled",
			"status", settled.Status,
			"attempts", attempts,
			"duration", time.Since(start))

		if !settled.Status.IsTerminal() {
			return
		}

		if s.emitter != nil {
			if err := s.emitter.EmitEvent(ctx, events.NewTaskSettledEvent(settled)); err != nil {
				log.Warn("failed to emit task settled event", "error", err)
			}
		}
	}
}

// sleep waits for d and reports false when stop or shutdown came first.
func (s *Scheduler) sleep(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-s.runCtx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// claimNext moves the first pending task to processing.
// It returns a nil task when none is pending.
func (s *Scheduler) claimNext(ctx context.Context) (*domain.GenerationTask, domain.ModelSelector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.GetByID(ctx, s.generationID)
	if err != nil {
		return nil, "", err
	}

	task := g.NextPending()
	if task == nil {
		return nil, g.Model, nil
	}
	if err := task.MarkProcessing(); err != nil {
		return nil, "", err
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, "", fmt.Errorf("failed to mark task processing: %w", err)
	}
	return task, g.Model, nil
}

// execute runs the unit of work, converting a panic into an error.
func (s *Scheduler) execute(ctx context.Context, prompt string, model domain.ModelSelector) (result string, attempts int, err error) {
	attempts = 1
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return RunAttempts(ctx, s.runner, prompt, model)
}

// settle writes the outcome back. When the completed result cannot be
// written, the task is recorded as failed with that write error instead.
// A call cut short by shutdown returns the task to pending.
func (s *Scheduler) settle(ctx context.Context, task *domain.GenerationTask, result string, attempts int, runErr error) *domain.GenerationTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Settling must happen even after the run context is cancelled.
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	s.lastSettled = now

	outcome := *task
	outcome.RecordAttempts(attempts)
	if runErr != nil && s.runCtx.Err() != nil {
		_ = outcome.ResetToPending()
		if err := s.store.UpdateTask(ctx, &outcome); err != nil {
			s.logger.Error("failed to return interrupted task to pending",
				"task_id", task.ID.String(),
				"error", err)
		}
		return &outcome
	}
	if runErr != nil {
		_ = outcome.Fail(redact.Error(runErr), now)
	} else {
		_ = outcome.Complete(result, now)
	}

	err := s.store.UpdateTask(ctx, &outcome)
	if err == nil {
		return &outcome
	}
	if errors.Is(err, store.ErrTaskNotFound) {
		s.logger.Warn("task removed while processing", "task_id", task.ID.String())
		return &outcome
	}

	s.logger.Error("failed to record task outcome",
		"task_id", task.ID.String(),
		"error", err)

	failed := *task
	failed.RecordAttempts(attempts)
	_ = failed.Fail(fmt.Sprintf("failed to record result: %s", redact.Error(err)), now)
	if err := s.store.UpdateTask(ctx, &failed); err != nil {
		s.logger.Error("failed to record task failure",
			"task_id", task.ID.String(),
			"error", err)
	}
	return &failed
}

// pacing reports how long to wait before the next task may start and
// whether one is pending.
func (s *Scheduler) pacing(ctx context.Context) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.GetByID(ctx, s.generationID)
	if err != nil {
		if errors.Is(err, store.ErrGenerationNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if g.NextPending() == nil {
		return 0, false, nil
	}
	if s.lastSettled.IsZero() {
		return 0, true, nil
	}
	return time.Until(s.lastSettled.Add(g.PacingInterval())), true, nil
}
