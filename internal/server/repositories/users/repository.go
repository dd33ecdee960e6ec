package users

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetMFASecret(ctx context.Context, username string, ciphertext string) error
	SetMFAEnabled(ctx context.Context, username string, enabled bool) error
	ClearMFA(ctx context.Context, username string) error
}
