package signaturerequests

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "entity_type", "entity_id", "record_version", "expected_hash", "status",
	"requested_at", "requested_by", "correlation_id", "notes", "artifact_id", "signed_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	corr := "gov-42"
	mock.ExpectExec(`INSERT INTO signature_requests`).
		WithArgs("q1", "DOCUMENT", "r1", int64(1000002), "abc", "PENDING", now, "actor-1", "gov-42", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.SignatureRequest{
		ID: "q1", EntityType: "DOCUMENT", EntityID: "r1", RecordVersion: 1000002, ExpectedHash: "abc",
		Status: models.RequestPending, RequestedAt: now, RequestedBy: "actor-1", CorrelationID: &corr,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM signature_requests WHERE id = \$1`).
		WithArgs("q1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("q1", "CAPA", "r1", int64(5), "abc", "PENDING", now, "a", "gov-1", nil, nil, nil))

	got, err := repo.GetByID(context.Background(), "q1")
	require.NoError(t, err)
	require.NotNil(t, got.CorrelationID)
	assert.Equal(t, "gov-1", *got.CorrelationID)
	assert.Nil(t, got.Notes)
	assert.Nil(t, got.SignedAt)

	mock.ExpectQuery(`SELECT .* FROM signature_requests WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM signature_requests\s+WHERE entity_id = \$1 AND status = 'PENDING'`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("q1", "CAPA", "r1", int64(5), "abc", "PENDING", now, "a", nil, nil, nil, nil))

	got, err := repo.ListPending(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].ID)
}

func TestMarkSigned_IsOneWay(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	q := `UPDATE signature_requests\s+SET status = 'SIGNED', artifact_id = \$2, signed_at = \$3\s+WHERE id = \$1 AND status = 'PENDING'`
	mock.ExpectExec(q).WithArgs("q1", "art1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("q1", "art2", at).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("q2", "art3", at).WillReturnError(errors.New("db is down"))

	require.NoError(t, repo.MarkSigned(context.Background(), "q1", "art1", at))
	assert.ErrorIs(t, repo.MarkSigned(context.Background(), "q1", "art2", at), common.ErrAlreadySigned)
	err := repo.MarkSigned(context.Background(), "q2", "art3", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
	require.NoError(t, mock.ExpectationsWereMet())
}
