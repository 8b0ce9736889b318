package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophqms/internal/dbx"
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
)

// RepositoryManager vends repositories bound to a DBTX, so a service can run
// several of them inside one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Sequences(db dbx.DBTX) sequences.Repository
	SignatureRequests(db dbx.DBTX) signaturerequests.Repository
	Artifacts(db dbx.DBTX) artifacts.Repository
	LocalSignatures(db dbx.DBTX) localsignatures.Repository
	History(db dbx.DBTX) history.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Waivers(db dbx.DBTX) waivers.Repository
	Attachments(db dbx.DBTX) attachments.Repository
	Actors(db dbx.DBTX) actors.Repository
}
