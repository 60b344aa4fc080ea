package repository

import (
	"context"

	"whenthen/internal/domain"
)

// PlayletRepository defines persistence operations for playlets. The engine
// loads the full collection once at startup and saves on every mutation.
type PlayletRepository interface {
	Init(ctx context.Context) error
	List(ctx context.Context) ([]domain.Playlet, error)
	Save(ctx context.Context, playlet *domain.Playlet) error
	Delete(ctx context.Context, id string) error
}

// TaskRepository defines persistence operations for automation tasks.
type TaskRepository interface {
	Init(ctx context.Context) error
	List(ctx context.Context) ([]domain.Task, error)
	Save(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}
