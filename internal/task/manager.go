package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/events"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// ErrManagerClosed is returned once Shutdown has been called.
var ErrManagerClosed = errors.New("scheduler manager is shut down")

// Manager owns one Scheduler per generation. Generations run
// independently; nothing is shared between their schedulers.
type Manager struct {
	store   store.GenerationStore
	runner  Runner
	emitter events.EventEmitter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	schedulers map[uuid.UUID]*Scheduler
	locks      map[uuid.UUID]*generationLock
	closed     bool
}

// generationLock serializes updates to one generation. It lives while a
// scheduler or an edit holds a reference to it.
type generationLock struct {
	sync.Mutex
	refs int
}

// NewManager creates a Manager. emitter may be nil.
func NewManager(gs store.GenerationStore, runner Runner, emitter events.EventEmitter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:      gs,
		runner:     runner,
		emitter:    emitter,
		logger:     logger.With("component", "scheduler_manager"),
		ctx:        ctx,
		cancel:     cancel,
		schedulers: make(map[uuid.UUID]*Scheduler),
		locks:      make(map[uuid.UUID]*generationLock),
	}
}

func (m *Manager) scheduler(id uuid.UUID) (*Scheduler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	s, ok := m.schedulers[id]
	if !ok {
		s = newScheduler(m.ctx, id, m.store, m.runner, m.emitter, m.logger, m.acquireLocked(id))
		m.schedulers[id] = s
	}
	return s, nil
}

// acquireLocked returns id's lock with one more reference. m.mu must be held.
func (m *Manager) acquireLocked(id uuid.UUID) *generationLock {
	l, ok := m.locks[id]
	if !ok {
		l = &generationLock{}
		m.locks[id] = l
	}
	l.refs++
	return l
}

// release drops a reference taken by acquireLocked.
func (m *Manager) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(m.locks, id)
	}
}

func (m *Manager) existing(id uuid.UUID) *Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedulers[id]
}

// Start begins running the generation's pending tasks.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) error {
	if _, err := m.store.GetByID(ctx, id); err != nil {
		return err
	}
	s, err := m.scheduler(id)
	if err != nil {
		return err
	}
	return s.Start(ctx)
}

// Stop requests a cooperative stop and returns the resulting state.
func (m *Manager) Stop(ctx context.Context, id uuid.UUID) (State, error) {
	s := m.existing(id)
	if s == nil {
		return StateIdle, nil
	}
	return s.Stop(ctx)
}

// State returns the generation's control state.
func (m *Manager) State(ctx context.Context, id uuid.UUID) (State, error) {
	s := m.existing(id)
	if s == nil {
		return StateIdle, nil
	}
	return s.State(ctx)
}

// Wait blocks until the generation's current run has ended.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) error {
	s := m.existing(id)
	if s == nil {
		return nil
	}
	return s.Wait(ctx)
}

// WithGeneration loads the generation, applies fn and saves the result, all
// under the lock the generation's scheduler uses. No scheduler is created
// for the edit. Nothing is saved when fn returns an error.
func (m *Manager) WithGeneration(ctx context.Context, id uuid.UUID, fn func(g *domain.Generation) error) (*domain.Generation, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	lock := m.acquireLocked(id)
	m.mu.Unlock()
	defer m.release(id)

	lock.Lock()
	defer lock.Unlock()

	g, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Remove stops the generation's scheduler and forgets it. A task still in
// flight finishes in the background.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.schedulers[id]
	delete(m.schedulers, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := s.Stop(ctx); err != nil && !errors.Is(err, ErrSchedulerClosed) {
		return err
	}
	go func() {
		_ = s.Wait(m.ctx)
		s.Close()
		m.release(id)
	}()
	return nil
}

// Recover returns tasks left processing by an unclean shutdown to pending.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	n, err := m.store.ResetProcessingTasks(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.InfoContext(ctx, "recovered interrupted tasks", "count", n)
	return n, nil
}

// Shutdown stops every scheduler and waits for in-flight tasks until ctx
// expires; whatever is still running then is cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	schedulers := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		schedulers = append(schedulers, s)
	}
	m.mu.Unlock()

	for _, s := range schedulers {
		if _, err := s.Stop(ctx); err != nil {
			m.logger.Warn("failed to stop scheduler", "error", err)
		}
	}

	var waitErr error
	for _, s := range schedulers {
		if err := s.Wait(ctx); err != nil && waitErr == nil {
			waitErr = err
		}
	}

	m.cancel()
	for _, s := range schedulers {
		s.Close()
	}

	m.logger.Info("scheduler manager shut down", "schedulers", len(schedulers))
	return waitErr
}
