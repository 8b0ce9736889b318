package artifacts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.SignatureArtifact) error
	GetByID(ctx context.Context, id string) (*models.SignatureArtifact, error)
	GetLatest(ctx context.Context, entityID string) (*models.SignatureArtifact, error)
	ListByEntity(ctx context.Context, entityID string) ([]*models.SignatureArtifact, error)
	UpdateVerification(ctx context.Context, id, status, reason string, at time.Time) (bool, error)
}
