package postgres

import (
	"context"
	"database/sql"

	"diarium/internal/model"
	"diarium/internal/repository"
)

// SequencePostgres is a PostgreSQL implementation of
// repository.SequenceRepository. Concurrent increments for the same tenant
// serialize on a row-level exclusive lock; different tenants lock different
// rows and proceed independently.
type SequencePostgres struct {
	db *sql.DB
}

// NewSequencePostgres creates a new SequencePostgres repository.
func NewSequencePostgres(db *sql.DB) *SequencePostgres {
	return &SequencePostgres{db: db}
}

var _ repository.SequenceRepository = (*SequencePostgres)(nil)

// Increment runs the read-compute-write cycle for one tenant counter inside a
// transaction, holding the counter row locked for its duration. The counter is
// created on first use; the freshly inserted row counts as touched now.
// If the write fails nothing is returned, so no sequence value ever escapes
// without being persisted first.
func (r *SequencePostgres) Increment(ctx context.Context, tenant string, next func(model.SequenceCounter) int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const qInsert = `INSERT INTO sequence_counters (tenant) VALUES ($1) ON CONFLICT (tenant) DO NOTHING`
	if _, err := tx.ExecContext(ctx, qInsert, tenant); err != nil {
		return 0, err
	}

	const qLock = `
		SELECT tenant, sequence_number, created_at, modified_at
		FROM sequence_counters
		WHERE tenant = $1
		FOR UPDATE
	`
	var counter model.SequenceCounter
	if err := tx.QueryRowContext(ctx, qLock, tenant).Scan(
		&counter.Tenant,
		&counter.SequenceNumber,
		&counter.CreatedAt,
		&counter.ModifiedAt,
	); err != nil {
		return 0, err
	}

	value := next(counter)

	const qUpdate = `UPDATE sequence_counters SET sequence_number = $2, modified_at = now() WHERE tenant = $1`
	if _, err := tx.ExecContext(ctx, qUpdate, tenant, value); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return value, nil
}
