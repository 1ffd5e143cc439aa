package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

func TestDomainRepoUpdateVerificationGuardsVerifiedAtOnOldStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE core_domains .*WHEN \$2 = 'active' AND status != 'active' THEN now\(\)`).
		WithArgs("d1", domain.DomainActive, `{"active":true}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDomainRepo(db)
	require.NoError(t, repo.UpdateVerification(context.Background(), "d1", domain.DomainActive, `{"active":true}`))
	require.NoError(t, mock.ExpectationsWereMet())
}
