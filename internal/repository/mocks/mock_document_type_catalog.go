package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDocumentTypeCatalog struct {
	mock.Mock
}

func (m *MockDocumentTypeCatalog) IsValidType(ctx context.Context, tenant, code string) (bool, error) {
	args := m.Called(ctx, tenant, code)
	return args.Bool(0), args.Error(1)
}
