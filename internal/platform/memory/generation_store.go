package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// GenerationStore is an in-memory store.GenerationStore.
type GenerationStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*domain.Generation
}

var _ store.GenerationStore = (*GenerationStore)(nil)

// NewGenerationStore creates an empty store.
func NewGenerationStore() *GenerationStore {
	return &GenerationStore{byID: make(map[uuid.UUID]*domain.Generation)}
}

// Create implements store.GenerationStore.
func (s *GenerationStore) Create(_ context.Context, g *domain.Generation) error {
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[g.ID]; ok {
		return store.ErrDuplicate
	}
	s.byID[g.ID] = cloneGeneration(g)
	return nil
}

// GetByID implements store.GenerationStore.
func (s *GenerationStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.byID[id]
	if !ok {
		return nil, store.ErrGenerationNotFound
	}
	return cloneGeneration(g), nil
}

// List implements store.GenerationStore.
func (s *GenerationStore) List(_ context.Context) ([]*domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Generation, 0, len(s.byID))
	for _, g := range s.byID {
		out = append(out, cloneGeneration(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Save implements store.GenerationStore.
func (s *GenerationStore) Save(_ context.Context, g *domain.Generation) error {
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[g.ID]; !ok {
		return store.ErrGenerationNotFound
	}
	s.byID[g.ID] = cloneGeneration(g)
	return nil
}

// UpdateTask implements store.GenerationStore.
func (s *GenerationStore) UpdateTask(_ context.Context, task *domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byID[task.GenerationID]
	if !ok {
		return store.ErrTaskNotFound
	}
	for i, t := range g.Tasks {
		if t.ID == task.ID {
			g.Tasks[i] = cloneTask(task)
			return nil
		}
	}
	return store.ErrTaskNotFound
}

// Delete implements store.GenerationStore.
func (s *GenerationStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return store.ErrGenerationNotFound
	}
	delete(s.byID, id)
	return nil
}

// ResetProcessingTasks implements store.GenerationStore.
func (s *GenerationStore) ResetProcessingTasks(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reset := 0
	for _, g := range s.byID {
		for _, t := range g.Tasks {
			if t.Status == domain.TaskStatusProcessing {
				_ = t.ResetToPending()
				reset++
			}
		}
	}
	return reset, nil
}
