package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// TemplateStore is an in-memory store.TemplateStore.
type TemplateStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*domain.Template
}

var _ store.TemplateStore = (*TemplateStore)(nil)

// NewTemplateStore creates an empty store.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{byID: make(map[uuid.UUID]*domain.Template)}
}

// Create implements store.TemplateStore.
func (s *TemplateStore) Create(_ context.Context, t *domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; ok {
		return store.ErrDuplicate
	}
	s.byID[t.ID] = cloneTemplate(t)
	return nil
}

// GetByID implements store.TemplateStore.
func (s *TemplateStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, store.ErrTemplateNotFound
	}
	return cloneTemplate(t), nil
}

// List implements store.TemplateStore.
func (s *TemplateStore) List(_ context.Context) ([]*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Template, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update implements store.TemplateStore.
func (s *TemplateStore) Update(_ context.Context, t *domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; !ok {
		return store.ErrTemplateNotFound
	}
	s.byID[t.ID] = cloneTemplate(t)
	return nil
}

// Delete implements store.TemplateStore.
func (s *TemplateStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return store.ErrTemplateNotFound
	}
	delete(s.byID, id)
	return nil
}
