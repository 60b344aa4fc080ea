package domain

import "time"

type TaskStatus string

const (
	TaskStatusWaiting   TaskStatus = "waiting"
	TaskStatusExecuting TaskStatus = "executing"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

type ActionResultStatus string

const (
	ActionPending ActionResultStatus = "pending"
	ActionRunning ActionResultStatus = "running"
	ActionDone    ActionResultStatus = "done"
	ActionFailed  ActionResultStatus = "failed"
	ActionSkipped ActionResultStatus = "skipped"
)

// ActionResult tracks the outcome of one snapshotted action within a task.
type ActionResult struct {
	ActionID    string
	ActionType  ActionType
	Status      ActionResultStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

// Task is one run of a playlet's action sequence against one piece of
// content. Actions and FileFilter are snapshotted at creation time; later
// edits to the owning playlet never alter an existing task.
type Task struct {
	ID            string
	TorrentID     string
	TorrentName   string
	PlayletID     string // empty when no owning playlet
	PlayletName   string
	Status        TaskStatus
	Actions       []Action
	ActionResults []ActionResult
	FileFilter    *FileFilter
	// AwaitingContent marks a task whose first action needs the content
	// transfer to finish before the pipeline may start it.
	AwaitingContent bool
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// NewTaskResults builds the pending result snapshot for an action list.
func NewTaskResults(actions []Action) []ActionResult {
	results := make([]ActionResult, len(actions))
	for i, a := range actions {
		results[i] = ActionResult{
			ActionID:   a.ID,
			ActionType: a.Type,
			Status:     ActionPending,
		}
	}
	return results
}
