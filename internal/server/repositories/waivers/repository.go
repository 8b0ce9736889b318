package waivers

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, w *models.Waiver) error
	Get(ctx context.Context, entityID string) (*models.Waiver, error)
}
