package history

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.HistoryEntry) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.HistoryEntry, error)
}
