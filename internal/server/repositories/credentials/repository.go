package credentials

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.Credential, error)
	Delete(ctx context.Context, owner, site, account string) error
	DeleteAllByOwner(ctx context.Context, owner string) (int64, error)
}
