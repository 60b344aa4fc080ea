package service

import (
	"context"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
	"whenthen/internal/repository"
)

// AutomationStore adapts the sqlite repositories to the engine's persistence
// interface so the engine stays unaware of the storage backend.
type automationStore struct {
	playlets repository.PlayletRepository
	tasks    repository.TaskRepository
}

var _ engine.Store = (*automationStore)(nil)

func NewAutomationStore(playlets repository.PlayletRepository, tasks repository.TaskRepository) engine.Store {
	return &automationStore{playlets: playlets, tasks: tasks}
}

func (s *automationStore) SavePlaylet(ctx context.Context, playlet *domain.Playlet) error {
	return s.playlets.Save(ctx, playlet)
}

func (s *automationStore) DeletePlaylet(ctx context.Context, id string) error {
	return s.playlets.Delete(ctx, id)
}

func (s *automationStore) SaveTask(ctx context.Context, task *domain.Task) error {
	return s.tasks.Save(ctx, task)
}

func (s *automationStore) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}
