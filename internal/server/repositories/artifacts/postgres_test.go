package artifacts

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "entity_type", "entity_id", "record_version", "qms_hash", "signature", "signed_at",
	"request_id", "submitted_by", "verification_status", "verification_reason", "verified_at", "created_at"}

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
	status := "VERIFIED"
	mock.ExpectExec(`INSERT INTO signature_artifacts`).
		WithArgs("a1", "DOCUMENT", "r1", int64(1), "abc", []byte{1, 2}, now, nil, "actor", "VERIFIED", nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.SignatureArtifact{
		ID: "a1", EntityType: "DOCUMENT", EntityID: "r1", RecordVersion: 1, QMSHash: "abc", Signature: []byte{1, 2},
		SignedAt: now, SubmittedBy: "actor", VerificationStatus: &status, VerifiedAt: &now, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatest(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `FROM signature_artifacts\s+WHERE entity_id = \$1\s+ORDER BY signed_at DESC, created_at DESC\s+LIMIT 1`
	mock.ExpectQuery(q).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a2", "CAPA", "r1", int64(9), "abc", []byte{9}, now, "q1", "actor", "STALE", "record changed after signing", now, now))

	got, err := repo.GetLatest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.ID)
	require.NotNil(t, got.VerificationStatus)
	assert.Equal(t, "STALE", *got.VerificationStatus)
	require.NotNil(t, got.RequestID)

	mock.ExpectQuery(q).WithArgs("r2").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetLatest(context.Background(), "r2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByEntity(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM signature_artifacts\s+WHERE entity_id = \$1\s+ORDER BY signed_at DESC`).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a2", "CAPA", "r1", int64(9), "h2", []byte{2}, now, nil, "x", nil, nil, nil, now).
			AddRow("a1", "CAPA", "r1", int64(8), "h1", []byte{1}, now.Add(-time.Hour), nil, "x", "VERIFIED", nil, now, now))

	got, err := repo.ListByEntity(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].VerificationStatus)
	assert.Equal(t, "a1", got[1].ID)
}

func TestUpdateVerification_WritesOnlyOnChange(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	q := `UPDATE signature_artifacts\s+SET verification_status = \$2.*IS DISTINCT FROM \$2`
	mock.ExpectExec(q).WithArgs("a1", "STALE", "record changed after signing", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("a1", "STALE", "record changed after signing", at).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.UpdateVerification(context.Background(), "a1", "STALE", "record changed after signing", at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateVerification(context.Background(), "a1", "STALE", "record changed after signing", at)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
