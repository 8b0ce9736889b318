package signaturerequests

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, req *models.SignatureRequest) error
	GetByID(ctx context.Context, id string) (*models.SignatureRequest, error)
	FindByCorrelation(ctx context.Context, entityID, correlationID string) (*models.SignatureRequest, error)
	ListPending(ctx context.Context, entityID string) ([]*models.SignatureRequest, error)
	MarkSigned(ctx context.Context, id, artifactID string, at time.Time) error
}
