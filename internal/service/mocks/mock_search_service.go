package mocks

import (
	"context"

	"diarium/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, tenant string, req service.SearchRequest) (*service.RevisionPage, error) {
	args := m.Called(ctx, tenant, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RevisionPage), args.Error(1)
}
