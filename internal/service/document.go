package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"diarium/internal/model"
	"diarium/internal/repository"
	"diarium/internal/storage"
)

// CreateDescriptor carries the caller-supplied fields of a new document.
// Creator identity is supplied by the caller but creation time is stamped by
// the service.
type CreateDescriptor struct {
	Description   string                `json:"description"`
	DocumentType  string                `json:"document_type"`
	Confidential  bool                  `json:"confidential"`
	LegalCitation string                `json:"legal_citation"`
	Archived      bool                  `json:"archived"`
	CreatedBy     string                `json:"created_by"`
	Metadata      []model.MetadataEntry `json:"metadata"`
}

// UpdateDescriptor is a partial patch: nil fields inherit the previous
// revision's values, including confidentiality. Nil Metadata inherits the
// previous entries; an empty non-nil slice clears them.
type UpdateDescriptor struct {
	Description   *string               `json:"description"`
	DocumentType  *string               `json:"document_type"`
	Confidential  *bool                 `json:"confidential"`
	LegalCitation *string               `json:"legal_citation"`
	Archived      *bool                 `json:"archived"`
	Metadata      []model.MetadataEntry `json:"metadata"`
	UpdatedBy     string                `json:"updated_by"`
}

// AttachmentUpload is one incoming file. Size must be the exact byte count.
type AttachmentUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// DocumentService defines the use cases over registered documents. Documents
// are append-only sequences of revisions: creation writes revision 1, every
// update appends, and nothing is ever mutated or deleted.
type DocumentService interface {
	// Create validates the descriptor, mints a registration number, and
	// persists revision 1 with its attachments and metadata.
	Create(ctx context.Context, tenant string, desc CreateDescriptor, files []AttachmentUpload) (*model.Revision, error)

	// Update appends a new revision, copying forward every field the patch
	// leaves unset. Nil files duplicate the previous revision's attachments
	// under fresh ids.
	Update(ctx context.Context, tenant, regNumber string, patch UpdateDescriptor, files []AttachmentUpload) (*model.Revision, error)

	// GetLatest returns the highest revision visible under the scope.
	GetLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error)

	// GetRevision returns one exact revision, subject to the scope.
	GetRevision(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error)

	// ListRevisions pages through a document's in-scope revisions.
	ListRevisions(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, page PageRequest) (*RevisionPage, error)

	// OpenAttachment streams one attachment's content. revisionNumber 0 means
	// the latest in-scope revision. The attachment id must belong to the
	// resolved revision itself; ids from sibling revisions do not resolve.
	OpenAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope) (io.ReadCloser, *model.FileAttachment, error)

	// PresignAttachment returns a time-limited download URL for an attachment,
	// resolved under the same rules as OpenAttachment.
	PresignAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope, expiry time.Duration) (string, error)
}

type documentService struct {
	revisions repository.RevisionRepository
	types     repository.DocumentTypeCatalog
	allocator Allocator
	store     storage.Storage
	log       *zap.Logger
	now       func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(revisions repository.RevisionRepository, types repository.DocumentTypeCatalog, allocator Allocator, store storage.Storage, log *zap.Logger) DocumentService {
	return &documentService{
		revisions: revisions,
		types:     types,
		allocator: allocator,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

func (s *documentService) Create(ctx context.Context, tenant string, desc CreateDescriptor, files []AttachmentUpload) (*model.Revision, error) {
	// Validation runs before allocation so a rejected request never consumes
	// a sequence number.
	if strings.TrimSpace(tenant) == "" {
		return nil, invalidf("tenant", "must not be blank")
	}
	if strings.TrimSpace(desc.Description) == "" {
		return nil, invalidf("description", "must not be blank")
	}
	if strings.TrimSpace(desc.CreatedBy) == "" {
		return nil, invalidf("created_by", "must not be blank")
	}
	if err := validateMetadata(desc.Metadata); err != nil {
		return nil, err
	}
	if err := s.checkDocumentType(ctx, tenant, desc.DocumentType); err != nil {
		return nil, err
	}

	regNumber, err := s.allocator.Allocate(ctx, tenant)
	if err != nil {
		return nil, err
	}

	attachments, keys, err := s.uploadAttachments(ctx, files)
	if err != nil {
		return nil, err
	}

	rev := &model.Revision{
		ID:                 uuid.New().String(),
		Tenant:             tenant,
		RegistrationNumber: regNumber,
		RevisionNumber:     1,
		Description:        desc.Description,
		DocumentType:       desc.DocumentType,
		Confidential:       desc.Confidential,
		LegalCitation:      desc.LegalCitation,
		Archived:           desc.Archived,
		CreatedBy:          desc.CreatedBy,
		CreatedAt:          s.now().UTC(),
		Metadata:           desc.Metadata,
		Attachments:        attachments,
	}

	stored, err := s.revisions.Insert(ctx, rev)
	if err != nil {
		s.deleteBlobs(ctx, keys)
		return nil, fmt.Errorf("persist revision: %w", err)
	}
	return stored, nil
}

func (s *documentService) Update(ctx context.Context, tenant, regNumber string, patch UpdateDescriptor, files []AttachmentUpload) (*model.Revision, error) {
	if strings.TrimSpace(patch.UpdatedBy) == "" {
		return nil, invalidf("updated_by", "must not be blank")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return nil, invalidf("description", "must not be blank")
	}
	if patch.Metadata != nil {
		if err := validateMetadata(patch.Metadata); err != nil {
			return nil, err
		}
	}
	if patch.DocumentType != nil {
		if err := s.checkDocumentType(ctx, tenant, *patch.DocumentType); err != nil {
			return nil, err
		}
	}

	// Multipart streams are not rewindable, so buffer them up front: a retry
	// must replay the full content, not a drained reader.
	replay, err := bufferUploads(files)
	if err != nil {
		return nil, err
	}

	stored, err := s.appendRevision(ctx, tenant, regNumber, patch, replay())
	if errors.Is(err, repository.ErrDuplicateRevision) {
		// A concurrent update claimed the same revision number. The revision
		// itself was not written and its blobs were removed; recompute once
		// against the new latest with fresh readers.
		stored, err = s.appendRevision(ctx, tenant, regNumber, patch, replay())
		if errors.Is(err, repository.ErrDuplicateRevision) {
			return nil, ErrConflict
		}
	}
	return stored, err
}

// bufferUploads reads every upload into memory and returns a factory that
// hands out fresh readers over the same bytes. Nil stays nil so the
// carry-forward semantics of an absent file set survive the round trip.
func bufferUploads(files []AttachmentUpload) (func() []AttachmentUpload, error) {
	if files == nil {
		return func() []AttachmentUpload { return nil }, nil
	}
	data := make([][]byte, len(files))
	for i, f := range files {
		if f.Reader == nil {
			return nil, invalidf("file", "missing content for %q", f.Filename)
		}
		b, err := io.ReadAll(f.Reader)
		if err != nil {
			return nil, fmt.Errorf("read upload %q: %w", f.Filename, err)
		}
		data[i] = b
	}
	return func() []AttachmentUpload {
		fresh := make([]AttachmentUpload, len(files))
		for i, f := range files {
			f.Reader = bytes.NewReader(data[i])
			fresh[i] = f
		}
		return fresh
	}, nil
}

// appendRevision performs one attempt at writing the next revision: load the
// current latest under full access, merge, carry attachments, insert.
func (s *documentService) appendRevision(ctx context.Context, tenant, regNumber string, patch UpdateDescriptor, files []AttachmentUpload) (*model.Revision, error) {
	prev, err := s.revisions.FindLatest(ctx, tenant, regNumber, model.ScopeFor(true))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load latest revision: %w", err)
	}

	next := mergeRevision(prev, patch)
	next.ID = uuid.New().String()
	next.RevisionNumber = prev.RevisionNumber + 1
	next.CreatedBy = patch.UpdatedBy
	next.CreatedAt = s.now().UTC()

	var keys []string
	if files != nil {
		next.Attachments, keys, err = s.uploadAttachments(ctx, files)
	} else {
		next.Attachments, keys, err = s.duplicateAttachments(ctx, prev.Attachments)
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.revisions.Insert(ctx, next)
	if err != nil {
		s.deleteBlobs(ctx, keys)
		if errors.Is(err, repository.ErrDuplicateRevision) {
			return nil, err
		}
		return nil, fmt.Errorf("persist revision: %w", err)
	}
	return stored, nil
}

// mergeRevision is the copy-forward merge: every field absent from the patch
// inherits the previous revision's value. It never touches prev.
func mergeRevision(prev *model.Revision, patch UpdateDescriptor) *model.Revision {
	next := &model.Revision{
		Tenant:             prev.Tenant,
		RegistrationNumber: prev.RegistrationNumber,
		Description:        prev.Description,
		DocumentType:       prev.DocumentType,
		Confidential:       prev.Confidential,
		LegalCitation:      prev.LegalCitation,
		Archived:           prev.Archived,
		Metadata:           append([]model.MetadataEntry(nil), prev.Metadata...),
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.DocumentType != nil {
		next.DocumentType = *patch.DocumentType
	}
	if patch.Confidential != nil {
		next.Confidential = *patch.Confidential
	}
	if patch.LegalCitation != nil {
		next.LegalCitation = *patch.LegalCitation
	}
	if patch.Archived != nil {
		next.Archived = *patch.Archived
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata
	}
	return next
}

func (s *documentService) GetLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error) {
	rev, err := s.revisions.FindLatest(ctx, tenant, regNumber, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rev, nil
}

func (s *documentService) GetRevision(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error) {
	if revisionNumber < 1 {
		return nil, invalidf("revision_number", "must be at least 1")
	}
	rev, err := s.revisions.FindByNumber(ctx, tenant, regNumber, revisionNumber, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rev, nil
}

func (s *documentService) ListRevisions(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, page PageRequest) (*RevisionPage, error) {
	page = page.normalize()
	res, err := s.revisions.ListByRegistration(ctx, tenant, regNumber, scope, descending, page.query())
	if err != nil {
		return nil, err
	}
	if res.Total == 0 {
		return nil, ErrNotFound
	}
	return newRevisionPage(res, page), nil
}

func (s *documentService) OpenAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope) (io.ReadCloser, *model.FileAttachment, error) {
	att, err := s.resolveAttachment(ctx, tenant, regNumber, revisionNumber, attachmentID, scope)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, att.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read attachment content: %w", err)
	}
	return rc, att, nil
}

func (s *documentService) PresignAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope, expiry time.Duration) (string, error) {
	att, err := s.resolveAttachment(ctx, tenant, regNumber, revisionNumber, attachmentID, scope)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, att.StoragePath, expiry)
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return u, nil
}

// resolveAttachment locates the owning revision first, then the attachment
// inside it, so scope exclusion and a wrong-revision attachment id are both
// plain NotFound.
func (s *documentService) resolveAttachment(ctx context.Context, tenant, regNumber string, revisionNumber int, attachmentID string, scope model.ConfidentialityScope) (*model.FileAttachment, error) {
	var rev *model.Revision
	var err error
	if revisionNumber == 0 {
		rev, err = s.GetLatest(ctx, tenant, regNumber, scope)
	} else {
		rev, err = s.GetRevision(ctx, tenant, regNumber, revisionNumber, scope)
	}
	if err != nil {
		return nil, err
	}
	for i := range rev.Attachments {
		if rev.Attachments[i].ID == attachmentID {
			return &rev.Attachments[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *documentService) checkDocumentType(ctx context.Context, tenant, code string) error {
	if strings.TrimSpace(code) == "" {
		return invalidf("document_type", "must not be blank")
	}
	ok, err := s.types.IsValidType(ctx, tenant, code)
	if err != nil {
		return fmt.Errorf("check document type: %w", err)
	}
	if !ok {
		return invalidf("document_type", "unknown type %q for tenant", code)
	}
	return nil
}

func validateMetadata(entries []model.MetadataEntry) error {
	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return invalidf("metadata", "entry key must not be blank")
		}
		if strings.TrimSpace(e.Value) == "" {
			return invalidf("metadata", "entry value must not be blank")
		}
	}
	return nil
}

// uploadAttachments streams every upload into object storage under a fresh
// key. If any upload fails, the ones already written are removed.
func (s *documentService) uploadAttachments(ctx context.Context, files []AttachmentUpload) ([]model.FileAttachment, []string, error) {
	attachments := make([]model.FileAttachment, 0, len(files))
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.Reader == nil {
			s.deleteBlobs(ctx, keys)
			return nil, nil, invalidf("file", "missing content for %q", f.Filename)
		}
		id := uuid.New().String()
		key := attachmentKey(id, f.Filename)
		if _, err := s.store.Put(ctx, key, f.Reader, storage.PutObjectOptions{
			Size:        f.Size,
			ContentType: f.ContentType,
			Metadata:    map[string]string{"original-filename": f.Filename},
		}); err != nil {
			s.deleteBlobs(ctx, keys)
			return nil, nil, fmt.Errorf("upload to storage: %w", err)
		}
		keys = append(keys, key)
		attachments = append(attachments, model.FileAttachment{
			ID:          id,
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Size:        f.Size,
			StoragePath: key,
		})
	}
	return attachments, keys, nil
}

// duplicateAttachments copies the previous revision's attachment bytes under
// fresh ids and keys, keeping every attachment owned by exactly one revision.
func (s *documentService) duplicateAttachments(ctx context.Context, prev []model.FileAttachment) ([]model.FileAttachment, []string, error) {
	attachments := make([]model.FileAttachment, 0, len(prev))
	keys := make([]string, 0, len(prev))
	for _, a := range prev {
		id := uuid.New().String()
		key := attachmentKey(id, a.Filename)
		if _, err := s.store.Copy(ctx, a.StoragePath, key); err != nil {
			s.deleteBlobs(ctx, keys)
			return nil, nil, fmt.Errorf("copy attachment %s: %w", a.ID, err)
		}
		keys = append(keys, key)
		attachments = append(attachments, model.FileAttachment{
			ID:          id,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			StoragePath: key,
		})
	}
	return attachments, keys, nil
}

// deleteBlobs best-effort removes uploaded objects after a failed persist.
func (s *documentService) deleteBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("rollback delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func attachmentKey(id, filename string) string {
	return filepath.ToSlash(filepath.Join("attachments", id+filepath.Ext(filename)))
}
