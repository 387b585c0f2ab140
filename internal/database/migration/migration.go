package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_revisions",
		SQL: `CREATE TABLE IF NOT EXISTS revisions (
  id                  UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  tenant              TEXT        NOT NULL,
  registration_number TEXT        NOT NULL,
  revision_number     INT         NOT NULL CHECK (revision_number >= 1),
  description         TEXT        NOT NULL,
  document_type       TEXT        NOT NULL,
  confidential        BOOLEAN     NOT NULL DEFAULT FALSE,
  legal_citation      TEXT        NOT NULL DEFAULT '',
  archived            BOOLEAN     NOT NULL DEFAULT FALSE,
  created_by          TEXT        NOT NULL,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (tenant, registration_number, revision_number)
);`,
	},
	{
		Name: "create_index_revisions_tenant_regnum",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_revisions_tenant_regnum ON revisions (tenant, registration_number);`,
	},
	{
		Name: "create_index_revisions_document_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_revisions_document_type ON revisions (tenant, document_type);`,
	},
	{
		Name: "create_index_revisions_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_revisions_created_at ON revisions (created_at);`,
	},
	{
		Name: "create_table_revision_metadata",
		SQL: `CREATE TABLE IF NOT EXISTS revision_metadata (
  id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
  revision_id UUID NOT NULL REFERENCES revisions (id),
  key         TEXT NOT NULL,
  value       TEXT NOT NULL
);`,
	},
	{
		Name: "create_index_revision_metadata_revision",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_revision_metadata_revision ON revision_metadata (revision_id);`,
	},
	{
		Name: "create_index_revision_metadata_key_value",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_revision_metadata_key_value ON revision_metadata (key, value);`,
	},
	{
		Name: "create_table_attachments",
		SQL: `CREATE TABLE IF NOT EXISTS attachments (
  id           UUID   PRIMARY KEY DEFAULT uuid_generate_v4(),
  revision_id  UUID   NOT NULL REFERENCES revisions (id),
  filename     TEXT   NOT NULL,
  content_type TEXT   NOT NULL,
  size         BIGINT NOT NULL CHECK (size >= 0),
  storage_path TEXT   NOT NULL UNIQUE
);`,
	},
	{
		Name: "create_index_attachments_revision",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_attachments_revision ON attachments (revision_id);`,
	},
	{
		Name: "create_table_sequence_counters",
		SQL: `CREATE TABLE IF NOT EXISTS sequence_counters (
  tenant          TEXT        PRIMARY KEY,
  sequence_number BIGINT      NOT NULL DEFAULT 0,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  modified_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_document_types",
		SQL: `CREATE TABLE IF NOT EXISTS document_types (
  tenant       TEXT NOT NULL,
  code         TEXT NOT NULL,
  display_name TEXT NOT NULL,
  PRIMARY KEY (tenant, code)
);`,
	},
}

// EnsureMigrated checks if the 'revisions' table exists and runs the bootstrap
// migration if it doesn't. Every step is idempotent, so a partially applied
// bootstrap is completed on the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.revisions') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("migration sentinel check failed", zap.Error(err))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration",
			zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("migration step failed",
				zap.String("step", step.Name),
				zap.Error(err))
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("migration step applied",
			zap.String("step", step.Name),
			zap.Duration("elapsed", time.Since(stepStart)))
	}

	log.Info("migration complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}
