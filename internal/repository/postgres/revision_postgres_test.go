package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarium/internal/model"
	"diarium/internal/repository"
)

var revisionCols = []string{
	"id", "tenant", "registration_number", "revision_number", "description",
	"document_type", "confidential", "legal_citation", "archived", "created_by", "created_at",
}

func sampleRevision() *model.Revision {
	return &model.Revision{
		ID:                 "6f1c9a3e-0000-4000-8000-000000000001",
		Tenant:             "2281",
		RegistrationNumber: "2024-2281-1",
		RevisionNumber:     1,
		Description:        "Building permit",
		DocumentType:       "permit",
		Confidential:       false,
		LegalCitation:      "PBL 9:2",
		Archived:           false,
		CreatedBy:          "registrator",
		CreatedAt:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:           []model.MetadataEntry{{Key: "department", Value: "legal"}},
		Attachments: []model.FileAttachment{{
			ID:          "aa1c9a3e-0000-4000-8000-000000000002",
			Filename:    "permit.pdf",
			ContentType: "application/pdf",
			Size:        1024,
			StoragePath: "attachments/aa1c9a3e.pdf",
		}},
	}
}

func revisionRow(rev *model.Revision) *sqlmock.Rows {
	return sqlmock.NewRows(revisionCols).AddRow(
		rev.ID, rev.Tenant, rev.RegistrationNumber, rev.RevisionNumber, rev.Description,
		rev.DocumentType, rev.Confidential, rev.LegalCitation, rev.Archived, rev.CreatedBy, rev.CreatedAt,
	)
}

func expectChildren(mock sqlmock.Sqlmock, rev *model.Revision) {
	metaRows := sqlmock.NewRows([]string{"revision_id", "key", "value"})
	for _, m := range rev.Metadata {
		metaRows.AddRow(rev.ID, m.Key, m.Value)
	}
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT m.revision_id, m.key, m.value FROM revision_metadata m WHERE m.revision_id IN ($1) ORDER BY m.key ASC, m.value ASC")).
		WithArgs(rev.ID).
		WillReturnRows(metaRows)

	attRows := sqlmock.NewRows([]string{"revision_id", "id", "filename", "content_type", "size", "storage_path"})
	for _, a := range rev.Attachments {
		attRows.AddRow(rev.ID, a.ID, a.Filename, a.ContentType, a.Size, a.StoragePath)
	}
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT a.revision_id, a.id, a.filename, a.content_type, a.size, a.storage_path FROM attachments a WHERE a.revision_id IN ($1) ORDER BY a.filename ASC")).
		WithArgs(rev.ID).
		WillReturnRows(attRows)
}

func TestRevisionPostgres_Insert(t *testing.T) {
	t.Run("writes revision, metadata, and attachments in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rev := sampleRevision()
		repo := NewRevisionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revisions")).
			WithArgs(rev.ID, rev.Tenant, rev.RegistrationNumber, rev.RevisionNumber, rev.Description,
				rev.DocumentType, rev.Confidential, rev.LegalCitation, rev.Archived, rev.CreatedBy, rev.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revision_metadata (revision_id, key, value) VALUES ($1, $2, $3)")).
			WithArgs(rev.ID, "department", "legal").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attachments")).
			WithArgs(rev.Attachments[0].ID, rev.ID, "permit.pdf", "application/pdf", int64(1024), "attachments/aa1c9a3e.pdf").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := repo.Insert(context.Background(), rev)
		require.NoError(t, err)
		assert.Equal(t, rev, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrDuplicateRevision", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rev := sampleRevision()
		repo := NewRevisionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revisions")).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		_, err = repo.Insert(context.Background(), rev)
		assert.ErrorIs(t, err, repository.ErrDuplicateRevision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRevisionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revisions")).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err = repo.Insert(context.Background(), sampleRevision())
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestRevisionPostgres_FindLatest(t *testing.T) {
	t.Run("public scope filters confidential rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rev := sampleRevision()
		repo := NewRevisionPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT "+revisionColumns+" FROM revisions r WHERE (r.tenant = $1 AND r.registration_number = $2 AND r.confidential = FALSE) ORDER BY r.revision_number DESC LIMIT $3 OFFSET $4")).
			WithArgs("2281", "2024-2281-1", 1, 0).
			WillReturnRows(revisionRow(rev))
		expectChildren(mock, rev)

		got, err := repo.FindLatest(context.Background(), "2281", "2024-2281-1", model.ScopeFor(false))
		require.NoError(t, err)
		assert.Equal(t, rev, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full scope has no confidentiality filter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rev := sampleRevision()
		repo := NewRevisionPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE (r.tenant = $1 AND r.registration_number = $2) ORDER BY")).
			WithArgs("2281", "2024-2281-1", 1, 0).
			WillReturnRows(revisionRow(rev))
		expectChildren(mock, rev)

		_, err = repo.FindLatest(context.Background(), "2281", "2024-2281-1", model.ScopeFor(true))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row yields sql.ErrNoRows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRevisionPostgres(db)

		mock.ExpectQuery("SELECT .+ FROM revisions r").
			WillReturnRows(sqlmock.NewRows(revisionCols))

		_, err = repo.FindLatest(context.Background(), "2281", "2024-2281-9", model.ScopeFor(false))
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestRevisionPostgres_FindByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rev := sampleRevision()
	repo := NewRevisionPostgres(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE (r.tenant = $1 AND r.registration_number = $2 AND r.revision_number = $3 AND r.confidential = FALSE) LIMIT $4 OFFSET $5")).
		WithArgs("2281", "2024-2281-1", 1, 1, 0).
		WillReturnRows(revisionRow(rev))
	expectChildren(mock, rev)

	got, err := repo.FindByNumber(context.Background(), "2281", "2024-2281-1", 1, model.ScopeFor(false))
	require.NoError(t, err)
	assert.Equal(t, 1, got.RevisionNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevisionPostgres_ListByRegistration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rev := sampleRevision()
	repo := NewRevisionPostgres(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM revisions r WHERE")).
		WithArgs("2281", "2024-2281-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.revision_number DESC LIMIT $3 OFFSET $4")).
		WithArgs("2281", "2024-2281-1", 2, 0).
		WillReturnRows(revisionRow(rev))
	expectChildren(mock, rev)

	res, err := repo.ListByRegistration(context.Background(), "2281", "2024-2281-1", model.ScopeFor(true), true, repository.PageQuery{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, rev.Metadata, res.Items[0].Metadata)
	assert.Equal(t, rev.Attachments, res.Items[0].Attachments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevisionPostgres_Search(t *testing.T) {
	t.Run("counts then pages and hydrates children", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rev := sampleRevision()
		repo := NewRevisionPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM revisions r WHERE (r.tenant = $1 AND r.confidential = FALSE AND r.document_type IN ($2))")).
			WithArgs("2281", "permit").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.created_at DESC, r.id DESC LIMIT $3 OFFSET $4")).
			WithArgs("2281", "permit", 20, 0).
			WillReturnRows(revisionRow(rev))
		expectChildren(mock, rev)

		res, err := repo.Search(context.Background(), "2281", repository.SearchQuery{
			Criteria: model.SearchCriteria{DocumentTypes: []string{"permit"}},
			Scope:    model.ScopeFor(false),
			Page:     repository.PageQuery{Limit: 20, Offset: 0},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "2024-2281-1", res.Items[0].RegistrationNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result skips child queries", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRevisionPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT r.id").
			WillReturnRows(sqlmock.NewRows(revisionCols))

		res, err := repo.Search(context.Background(), "2281", repository.SearchQuery{
			Scope: model.ScopeFor(true),
			Page:  repository.PageQuery{Limit: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
