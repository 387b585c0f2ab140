package repository

import (
	"context"
	"errors"

	"diarium/internal/model"
)

// ErrDuplicateRevision is returned by Insert when another writer has already
// claimed the same (tenant, registration number, revision number). The caller
// recomputes the revision number and retries.
var ErrDuplicateRevision = errors.New("duplicate revision number")

// RevisionRepository defines data access for document revisions using SQL
// queries only. No business logic here — strictly persistence operations.
// Revisions are append-only: there is no update or delete.
type RevisionRepository interface {
	// Insert persists a revision together with its metadata entries and
	// attachment rows in a single transaction. All ids are assigned by the
	// caller. Returns ErrDuplicateRevision on a revision-number collision.
	Insert(ctx context.Context, rev *model.Revision) (*model.Revision, error)

	// FindLatest returns the highest-numbered revision of a registration
	// number that is visible under the scope, or sql.ErrNoRows.
	FindLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error)

	// FindByNumber returns one exact revision, subject to the scope.
	FindByNumber(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error)

	// ListByRegistration returns a revision-number-ordered page of all
	// in-scope revisions of one registration number.
	ListByRegistration(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, pq PageQuery) (*PageResult[model.Revision], error)

	// Search executes a criteria query scoped to one tenant.
	Search(ctx context.Context, tenant string, q SearchQuery) (*PageResult[model.Revision], error)
}

// SequenceRepository owns the per-tenant registration sequence counters.
type SequenceRepository interface {
	// Increment advances the tenant's counter while holding an exclusive lock
	// on its row, creating the counter on first use. next computes the new
	// sequence value from the stored counter; the updated counter is persisted
	// before the value is returned, so a failed persist never hands out a
	// number.
	Increment(ctx context.Context, tenant string, next func(model.SequenceCounter) int64) (int64, error)
}

// DocumentTypeCatalog validates tenant-scoped document type codes. The catalog
// itself is administered elsewhere; this service only reads it.
type DocumentTypeCatalog interface {
	IsValidType(ctx context.Context, tenant, code string) (bool, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// SortField names a result ordering, applied in request order.
type SortField struct {
	Field string
	Desc  bool
}

// SortableFields enumerates the revision fields a search may sort on. Values
// double as the backing column names.
var SortableFields = map[string]bool{
	"registration_number": true,
	"revision_number":     true,
	"created_at":          true,
	"created_by":          true,
	"description":         true,
	"document_type":       true,
}

// SearchQuery is the fully resolved input to RevisionRepository.Search: the
// caller-supplied criteria plus scope, collapse flag, ordering, and page.
type SearchQuery struct {
	Criteria   model.SearchCriteria
	Scope      model.ConfidentialityScope
	OnlyLatest bool
	Sort       []SortField
	Page       PageQuery
}
