package tasks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Task) error
	Complete(ctx context.Context, entityID, taskID string, at time.Time) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.Task, error)
}
