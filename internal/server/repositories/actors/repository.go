package actors

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Actor) (*models.Actor, error)
	GetByID(ctx context.Context, id string) (*models.Actor, error)
	GetByUserName(ctx context.Context, userName string) (*models.Actor, error)
}
