package engine

import (
	"context"
	"fmt"
	"time"

	"whenthen/internal/domain"
)

// tryStart admits a waiting task into execution. No-op while the content
// precondition is unmet, the owning playlet is disabled, or every slot is
// taken; the task stays waiting and is pumped again when a slot vacates,
// the content completes, or the playlet is enabled.
func (e *Engine) tryStart(task *domain.Task) {
	if task.Status != domain.TaskStatusWaiting {
		return
	}
	if task.AwaitingContent {
		return
	}
	if p, ok := e.playlets[task.PlayletID]; ok && !p.Enabled {
		return
	}
	if e.running >= e.cfg.MaxConcurrentTasks {
		return
	}

	task.Status = domain.TaskStatusExecuting
	e.running++
	e.persistTask(task)
	e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})
	e.startNextAction(task)
}

// startNextAction resumes at the first result that is not done. Disabling
// the owning playlet takes effect here, at the action boundary, never by
// interrupting a running executor.
func (e *Engine) startNextAction(task *domain.Task) {
	idx := firstNotDone(task)
	if idx < 0 {
		e.finishTask(task, domain.TaskStatusCompleted)
		return
	}
	if task.ActionResults[idx].Status == domain.ActionFailed {
		e.finishTask(task, domain.TaskStatusFailed)
		return
	}

	if task.PlayletID != "" {
		if p, ok := e.playlets[task.PlayletID]; ok && !p.Enabled {
			e.logger.WithField("task_id", task.ID).Info("owning playlet disabled, parking task")
			task.Status = domain.TaskStatusWaiting
			e.running--
			e.persistTask(task)
			e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})
			e.pumpWaiting()
			return
		}
	}

	result := &task.ActionResults[idx]
	now := time.Now().UTC()
	result.Status = domain.ActionRunning
	result.StartedAt = &now
	e.persistTask(task)
	e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})

	action := task.Actions[idx]
	content := Content{ID: task.TorrentID, Name: task.TorrentName, Filter: cloneFilter(task.FileFilter)}
	taskID := task.ID

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.executeAction(e.ctx, action, content)
		e.post(func() { e.onActionSettled(taskID, idx, err) })
	}()
}

// executeAction is the only place executor code runs. Panics and missing
// registrations surface as ordinary action errors.
func (e *Engine) executeAction(ctx context.Context, action domain.Action, content Content) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	executor, ok := e.registry.Resolve(action.Type)
	if !ok {
		return fmt.Errorf("no executor registered for action type %q", action.Type)
	}

	var files []domain.FileInfo
	if e.resolver != nil {
		if info, rerr := e.resolver.Resolve(ctx, content.ID); rerr == nil {
			files = info.Files
		}
	}
	return executor.Execute(ctx, action, content, files)
}

// onActionSettled applies an executor outcome. The task may have been
// removed while the executor ran; its late result is dropped.
func (e *Engine) onActionSettled(taskID string, idx int, execErr error) {
	task, ok := e.tasks[taskID]
	if !ok {
		return
	}
	if task.Status != domain.TaskStatusExecuting {
		return
	}
	if idx >= len(task.ActionResults) || task.ActionResults[idx].Status != domain.ActionRunning {
		return
	}

	result := &task.ActionResults[idx]
	now := time.Now().UTC()
	result.CompletedAt = &now

	if execErr != nil {
		result.Status = domain.ActionFailed
		result.Error = execErr.Error()
		for j := idx + 1; j < len(task.ActionResults); j++ {
			if task.ActionResults[j].Status == domain.ActionPending {
				task.ActionResults[j].Status = domain.ActionSkipped
			}
		}
		e.logger.WithField("task_id", task.ID).
			Warnf("action %s failed: %s", result.ActionType, result.Error)
		e.finishTask(task, domain.TaskStatusFailed)
		return
	}

	result.Status = domain.ActionDone
	e.persistTask(task)
	e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})
	e.startNextAction(task)
}

func (e *Engine) finishTask(task *domain.Task, status domain.TaskStatus) {
	now := time.Now().UTC()
	task.Status = status
	task.CompletedAt = &now
	e.running--
	e.persistTask(task)
	e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})
	e.logger.WithField("task_id", task.ID).Infof("task %s", status)
	e.pumpWaiting()
}

// pumpWaiting offers vacated slots to waiting tasks in creation order.
func (e *Engine) pumpWaiting() {
	for _, id := range e.taskOrder {
		if e.running >= e.cfg.MaxConcurrentTasks {
			return
		}
		t := e.tasks[id]
		if t.Status == domain.TaskStatusWaiting {
			e.tryStart(t)
		}
	}
}

func firstNotDone(task *domain.Task) int {
	for i := range task.ActionResults {
		if task.ActionResults[i].Status != domain.ActionDone {
			return i
		}
	}
	return -1
}

// RetryTask re-queues a failed task: the failed result and every trailing
// skipped result return to pending, the done prefix stays untouched, and
// execution resumes at the previously failed index.
func (e *Engine) RetryTask(ctx context.Context, id string) error {
	var opErr error
	err := e.call(ctx, func() {
		task, ok := e.tasks[id]
		if !ok {
			opErr = ErrNotFound
			return
		}
		if task.Status != domain.TaskStatusFailed {
			opErr = ErrNotRetryable
			return
		}
		for i := range task.ActionResults {
			r := &task.ActionResults[i]
			if r.Status == domain.ActionFailed || r.Status == domain.ActionSkipped {
				r.Status = domain.ActionPending
				r.StartedAt = nil
				r.CompletedAt = nil
				r.Error = ""
			}
		}
		task.Status = domain.TaskStatusWaiting
		task.CompletedAt = nil
		e.persistTask(task)
		e.notifier.publish(Notification{Type: NotifyTaskUpdated, Task: cloneTask(task)})
		e.tryStart(task)
	})
	if err != nil {
		return err
	}
	return opErr
}

// RemoveTask deletes the task record. An executor already running for it is
// not interrupted; its result is dropped when it settles.
func (e *Engine) RemoveTask(ctx context.Context, id string) error {
	var opErr error
	err := e.call(ctx, func() {
		task, ok := e.tasks[id]
		if !ok {
			opErr = ErrNotFound
			return
		}
		if task.Status == domain.TaskStatusExecuting {
			e.running--
		}
		delete(e.tasks, id)
		for i, tid := range e.taskOrder {
			if tid == id {
				e.taskOrder = append(e.taskOrder[:i], e.taskOrder[i+1:]...)
				break
			}
		}
		if e.store != nil {
			if err := e.store.DeleteTask(e.ctx, id); err != nil {
				e.logger.WithField("task_id", id).Warnf("delete task: %v", err)
			}
		}
		e.notifier.publish(Notification{Type: NotifyTaskRemoved, Task: cloneTask(task)})
		e.pumpWaiting()
	})
	if err != nil {
		return err
	}
	return opErr
}
