package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarium/internal/model"
)

func TestSequencePostgres_Increment(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("locks the counter row and persists the computed value", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSequencePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sequence_counters (tenant) VALUES ($1) ON CONFLICT (tenant) DO NOTHING")).
			WithArgs("2281").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT tenant, sequence_number, created_at, modified_at\\s+FROM sequence_counters\\s+WHERE tenant = \\$1\\s+FOR UPDATE").
			WithArgs("2281").
			WillReturnRows(sqlmock.NewRows([]string{"tenant", "sequence_number", "created_at", "modified_at"}).
				AddRow("2281", int64(7), created, modified))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE sequence_counters SET sequence_number = $2, modified_at = now() WHERE tenant = $1")).
			WithArgs("2281", int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var seen model.SequenceCounter
		got, err := repo.Increment(context.Background(), "2281", func(c model.SequenceCounter) int64 {
			seen = c
			return c.SequenceNumber + 1
		})
		require.NoError(t, err)
		assert.Equal(t, int64(8), got)
		assert.Equal(t, "2281", seen.Tenant)
		assert.Equal(t, int64(7), seen.SequenceNumber)
		assert.Equal(t, modified, seen.ModifiedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the update fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSequencePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO sequence_counters").
			WithArgs("2281").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("2281").
			WillReturnRows(sqlmock.NewRows([]string{"tenant", "sequence_number", "created_at", "modified_at"}).
				AddRow("2281", int64(0), created, created))
		mock.ExpectExec("UPDATE sequence_counters").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err = repo.Increment(context.Background(), "2281", func(c model.SequenceCounter) int64 {
			return c.SequenceNumber + 1
		})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the lock read fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSequencePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO sequence_counters").
			WithArgs("2281").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FOR UPDATE").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		called := false
		_, err = repo.Increment(context.Background(), "2281", func(model.SequenceCounter) int64 {
			called = true
			return 1
		})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.False(t, called, "next should not run without a locked counter")
	})
}
