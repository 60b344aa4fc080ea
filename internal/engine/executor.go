package engine

import (
	"context"
	"sync"

	"whenthen/internal/domain"
)

// Content identifies the content item an action runs against, together with
// the task's snapshotted file filter. The engine does not interpret the
// filter; executors may.
type Content struct {
	ID     string
	Name   string
	Filter *domain.FileFilter
}

// Executor performs the side effect of one action type. Implementations
// report failure through the returned error; the pipeline converts it into
// the action's error field and never lets it propagate further.
type Executor interface {
	Execute(ctx context.Context, action domain.Action, content Content, files []domain.FileInfo) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, action domain.Action, content Content, files []domain.FileInfo) error

func (f ExecutorFunc) Execute(ctx context.Context, action domain.Action, content Content, files []domain.FileInfo) error {
	return f(ctx, action, content, files)
}

// ExecutorRegistry resolves executors by action type. Each engine owns its
// own registry; there is no process-wide default.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[domain.ActionType]Executor
}

func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[domain.ActionType]Executor)}
}

func (r *ExecutorRegistry) Register(actionType domain.ActionType, executor Executor) {
	r.mu.Lock()
	r.executors[actionType] = executor
	r.mu.Unlock()
}

func (r *ExecutorRegistry) Resolve(actionType domain.ActionType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[actionType]
	return e, ok
}

// ContentResolver is the read-only lookup into the content registry the
// engine uses for condition attributes and file lists.
type ContentResolver interface {
	Resolve(ctx context.Context, contentID string) (domain.ContentInfo, error)
}
