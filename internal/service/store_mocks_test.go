package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// MockParameterStore mocks the store.ParameterStore interface
type MockParameterStore struct {
	mock.Mock
}

func (m *MockParameterStore) Create(ctx context.Context, p *domain.Parameter) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParameterStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Parameter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Parameter), args.Error(1)
}

func (m *MockParameterStore) GetByName(ctx context.Context, name string) (*domain.Parameter, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Parameter), args.Error(1)
}

func (m *MockParameterStore) List(ctx context.Context) ([]*domain.Parameter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Parameter), args.Error(1)
}

func (m *MockParameterStore) Update(ctx context.Context, p *domain.Parameter) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParameterStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
