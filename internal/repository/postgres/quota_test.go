package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestUsageRepoSumSentTodayMissingRowIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COALESCE\(sent, 0\) FROM core_usage_aggregates`).
		WithArgs("t1", day).
		WillReturnError(sql.ErrNoRows)

	repo := NewUsageRepo(db)
	sent, err := repo.SumSentToday(context.Background(), "t1", day)
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepoIncrementSentUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO core_usage_aggregates`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewUsageRepo(db)
	require.NoError(t, repo.IncrementSent(context.Background(), "t1", day, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRepoEnsureRowIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	anchor := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO core_rate_limit_counters`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRateLimitRepo(db)
	require.NoError(t, repo.EnsureRow(context.Background(), "t1", "messages:month:2026-07-01", anchor))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRepoIncrementRejectsNegative(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRateLimitRepo(db)
	anchor := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	err = repo.Increment(context.Background(), "t1", "messages:month:2026-07-01", anchor, -1)
	require.Error(t, err)
}
