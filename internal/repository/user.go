package repository

import (
	"context"
	"errors"

	"whenthen/internal/domain"
)

var (
	// ErrUserExists is returned by Create when the username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by the lookups when no row matches.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository persists the accounts that own API sessions. Implementations
// report the sentinel errors above so callers can branch with errors.Is
// instead of matching driver messages.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
