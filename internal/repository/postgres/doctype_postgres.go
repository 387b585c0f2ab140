package postgres

import (
	"context"
	"database/sql"

	"diarium/internal/repository"
)

// DocumentTypePostgres reads the tenant-scoped document type catalog. The
// catalog is maintained outside this service; only existence checks happen
// here.
type DocumentTypePostgres struct {
	db *sql.DB
}

// NewDocumentTypePostgres creates a new DocumentTypePostgres catalog.
func NewDocumentTypePostgres(db *sql.DB) *DocumentTypePostgres {
	return &DocumentTypePostgres{db: db}
}

var _ repository.DocumentTypeCatalog = (*DocumentTypePostgres)(nil)

// IsValidType reports whether the type code exists for the tenant.
func (r *DocumentTypePostgres) IsValidType(ctx context.Context, tenant, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM document_types WHERE tenant = $1 AND code = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, tenant, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
