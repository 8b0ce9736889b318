package sequences

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := `INSERT INTO sequences \(key, value\) VALUES \(\$1, 1\) ON CONFLICT \(key\) DO UPDATE SET value = sequences\.value \+ 1 RETURNING value`
	mock.ExpectQuery(q).WithArgs("CAPA-2026").WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(1)))
	mock.ExpectQuery(q).WithArgs("CAPA-2026").WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(2)))

	repo := NewPostgresRepository(db)
	first, err := repo.Next(context.Background(), "CAPA-2026")
	require.NoError(t, err)
	second, err := repo.Next(context.Background(), "CAPA-2026")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNext_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO sequences`).WithArgs("k").WillReturnError(errors.New("db is down"))

	_, err = NewPostgresRepository(db).Next(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}
