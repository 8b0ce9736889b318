// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/migrations"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/actors"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/artifacts"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/history"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/localsignatures"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/records"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/sequences"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/signaturerequests"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/waivers"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sequences(db dbx.DBTX) sequences.Repository {
	return sequences.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) SignatureRequests(db dbx.DBTX) signaturerequests.Repository {
	return signaturerequests.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Artifacts(db dbx.DBTX) artifacts.Repository {
	return artifacts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) LocalSignatures(db dbx.DBTX) localsignatures.Repository {
	return localsignatures.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) History(db dbx.DBTX) history.Repository {
	return history.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tasks(db dbx.DBTX) tasks.Repository {
	return tasks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Waivers(db dbx.DBTX) waivers.Repository {
	return waivers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Attachments(db dbx.DBTX) attachments.Repository {
	return attachments.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Actors(db dbx.DBTX) actors.Repository {
	return actors.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
