// Package actors stores the people allowed to transition and e-sign records,
// together with their credential verifiers.
package actors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const columns = `id, username, display_name, scheme, salt, verifier, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scan(row *sql.Row) (*models.Actor, error) {
	a := &models.Actor{}
	err := row.Scan(&a.ID, &a.UserName, &a.DisplayName, &a.Scheme, &a.Salt, &a.Verifier, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Create inserts the actor and returns it with its generated id. A taken
// user name yields common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Actor) (*models.Actor, error) {
	query := `
		INSERT INTO actors (username, display_name, scheme, salt, verifier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + columns

	created, err := scan(r.db.QueryRowContext(ctx, query, a.UserName, a.DisplayName, a.Scheme, a.Salt, a.Verifier, a.CreatedAt))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("actor %q: %w", a.UserName, common.ErrAlreadyExists)
	}
	return created, err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Actor, error) {
	return scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM actors WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.Actor, error) {
	return scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM actors WHERE username = $1`, userName))
}
