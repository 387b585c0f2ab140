package mocks

import (
	"context"
	"io"
	"time"

	"diarium/internal/model"
	"diarium/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, tenant string, desc service.CreateDescriptor, files []service.AttachmentUpload) (*model.Revision, error) {
	args := m.Called(ctx, tenant, desc, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, tenant, regNumber string, patch service.UpdateDescriptor, files []service.AttachmentUpload) (*model.Revision, error) {
	args := m.Called(ctx, tenant, regNumber, patch, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockDocumentService) GetLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error) {
	args := m.Called(ctx, tenant, regNumber, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockDocumentService) GetRevision(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error) {
	args := m.Called(ctx, tenant, regNumber, revisionNumber, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockDocumentService) ListRevisions(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, page service.PageRequest) (*service.RevisionPage, error) {
	args := m.Called(ctx, tenant, regNumber, scope, descending, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RevisionPage), args.Error(1)
}

func (m *MockDocumentService) OpenAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope) (io.ReadCloser, *model.FileAttachment, error) {
	args := m.Called(ctx, tenant, regNumber, revisionNumber, attachmentID, scope)
	rc, _ := args.Get(0).(io.ReadCloser)
	att, _ := args.Get(1).(*model.FileAttachment)
	return rc, att, args.Error(2)
}

func (m *MockDocumentService) PresignAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope, expiry time.Duration) (string, error) {
	args := m.Called(ctx, tenant, regNumber, revisionNumber, attachmentID, scope, expiry)
	return args.String(0), args.Error(1)
}
