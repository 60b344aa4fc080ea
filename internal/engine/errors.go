package engine

import "errors"

var (
	// ErrPlayletDisabled rejects manual assignment to a disabled playlet.
	ErrPlayletDisabled = errors.New("playlet is disabled")
	// ErrDuplicateAssignment rejects assigning content that already has an
	// active task.
	ErrDuplicateAssignment = errors.New("content already has an active task")
	// ErrNotFound is returned by user commands referencing a missing task or
	// playlet.
	ErrNotFound = errors.New("not found")
	// ErrNotRetryable rejects retrying a task that is not in the failed state.
	ErrNotRetryable = errors.New("only failed tasks can be retried")
	// ErrEngineClosed is returned when an operation reaches a stopped engine.
	ErrEngineClosed = errors.New("engine is not running")
)
