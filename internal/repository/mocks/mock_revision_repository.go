package mocks

import (
	"context"

	"diarium/internal/model"
	"diarium/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockRevisionRepository struct {
	mock.Mock
}

func (m *MockRevisionRepository) Insert(ctx context.Context, rev *model.Revision) (*model.Revision, error) {
	args := m.Called(ctx, rev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error) {
	args := m.Called(ctx, tenant, regNumber, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindByNumber(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error) {
	args := m.Called(ctx, tenant, regNumber, revisionNumber, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) ListByRegistration(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, pq repository.PageQuery) (*repository.PageResult[model.Revision], error) {
	args := m.Called(ctx, tenant, regNumber, scope, descending, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Revision]), args.Error(1)
}

func (m *MockRevisionRepository) Search(ctx context.Context, tenant string, q repository.SearchQuery) (*repository.PageResult[model.Revision], error) {
	args := m.Called(ctx, tenant, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Revision]), args.Error(1)
}
