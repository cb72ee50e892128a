package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// ParameterStore is an in-memory store.ParameterStore.
type ParameterStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*domain.Parameter
	byName map[string]uuid.UUID
}

var _ store.ParameterStore = (*ParameterStore)(nil)

// NewParameterStore creates an empty store.
func NewParameterStore() *ParameterStore {
	return &ParameterStore{
		byID:   make(map[uuid.UUID]*domain.Parameter),
		byName: make(map[string]uuid.UUID),
	}
}

// Create implements store.ParameterStore.
func (s *ParameterStore) Create(_ context.Context, p *domain.Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[p.Name]; ok {
		return store.ErrParameterNameExists
	}
	if _, ok := s.byID[p.ID]; ok {
		return store.ErrDuplicate
	}

	s.byID[p.ID] = cloneParameter(p)
	s.byName[p.Name] = p.ID
	return nil
}

// GetByID implements store.ParameterStore.
func (s *ParameterStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Parameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, store.ErrParameterNotFound
	}
	return cloneParameter(p), nil
}

// GetByName implements store.ParameterStore.
func (s *ParameterStore) GetByName(_ context.Context, name string) (*domain.Parameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, store.ErrParameterNotFound
	}
	return cloneParameter(s.byID[id]), nil
}

// List implements store.ParameterStore.
func (s *ParameterStore) List(_ context.Context) ([]*domain.Parameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Parameter, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, cloneParameter(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update implements store.ParameterStore.
func (s *ParameterStore) Update(_ context.Context, p *domain.Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[p.ID]
	if !ok {
		return store.ErrParameterNotFound
	}
	if owner, taken := s.byName[p.Name]; taken && owner != p.ID {
		return store.ErrParameterNameExists
	}

	delete(s.byName, existing.Name)
	s.byID[p.ID] = cloneParameter(p)
	s.byName[p.Name] = p.ID
	return nil
}

// Delete implements store.ParameterStore.
func (s *ParameterStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return store.ErrParameterNotFound
	}
	delete(s.byID, id)
	delete(s.byName, p.Name)
	return nil
}
