package records

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.Record) (*models.Record, error)
	GetByID(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, entityType string, state string) ([]*models.Record, error)
	UpdateFields(ctx context.Context, id string, fields json.RawMessage, expectedVersion int64, at time.Time) (*models.Record, error)
	UpdateState(ctx context.Context, ch models.StateChange) (*models.Record, error)
}
