package attachments

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Attachment) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.Attachment, error)
}
