package localsignatures

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

// Repository is append-only: local signatures are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, s *models.LocalSignature) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.LocalSignature, error)
}
