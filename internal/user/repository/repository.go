package repository

import (
	"context"

	"github.com/deevee3/perryMillNews/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail looks up by lowercase email; callers normalize before calling.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create persists the user. Returns domain.ErrDuplicateEmail when the email
	// is already taken.
	Create(ctx context.Context, u *domain.User) error
}
