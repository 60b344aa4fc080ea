package engine

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"whenthen/internal/domain"
)

// Inbound event entry points. Each enqueues onto the worker loop so that
// processing order equals emission order from the event source.

func (e *Engine) HandleContentAdded(ev domain.ContentAdded) {
	e.post(func() { e.onContentAdded(ev) })
}

func (e *Engine) HandleContentCompleted(ev domain.ContentCompleted) {
	e.post(func() { e.onContentCompleted(ev) })
}

func (e *Engine) HandleContentMetadata(ev domain.ContentMetadata) {
	e.post(func() { e.onContentMetadata(ev) })
}

func (e *Engine) HandleContentProgress(ev domain.ContentProgress) {
	e.post(func() { e.onContentProgress(ev) })
}

func (e *Engine) HandleWatchFolderDetected(ev domain.WatchFolderDetected) {
	e.post(func() { e.onWatchFolderDetected(ev) })
}

// SuppressNextAutoAssign arms the manual-drop guard. The command layer calls
// it when issuing a manual add-and-assign, before the async add completes;
// the next automatic content-added dispatch consumes it and skips
// auto-assignment for that occurrence.
func (e *Engine) SuppressNextAutoAssign() {
	e.suppressor.Arm()
}

// ReleaseAutoAssignSuppression undoes one SuppressNextAutoAssign. The command
// layer calls it when the manual add it armed for will emit no content-added
// event, a failed add or a torrent the downloader already tracks.
func (e *Engine) ReleaseAutoAssignSuppression() {
	e.suppressor.Disarm()
}

// onContentAdded assigns at most one owning playlet: candidates are filtered
// by trigger type and conditions, then ranked by specificity.
func (e *Engine) onContentAdded(ev domain.ContentAdded) {
	if e.suppressor.Consume() {
		e.logger.WithField("torrent_id", ev.ID).Debug("auto-assignment suppressed by pending manual drop")
		return
	}

	attrs := domain.ContentAttributes{Name: ev.Name}
	if ev.FileCount > 0 {
		count := ev.FileCount
		attrs.FileCount = &count
	}

	var candidates []*domain.Playlet
	for _, id := range e.playletOrder {
		p := e.playlets[id]
		if !p.Enabled || p.Trigger.Type != domain.TriggerTorrentAdded {
			continue
		}
		if MatchConditions(p.Conditions, p.ConditionLogic, attrs) {
			candidates = append(candidates, p)
		}
	}

	winner := mostSpecific(candidates)
	if winner == nil {
		return
	}
	if len(candidates) > 1 {
		e.logger.WithField("torrent_id", ev.ID).
			Debugf("%d playlets matched, %q wins on specificity", len(candidates), winner.Name)
	}
	e.createTask(winner, ev.ID, ev.Name, true)
}

// onContentCompleted fires every qualifying download_complete playlet and
// releases tasks that were waiting for this content to finish transferring.
func (e *Engine) onContentCompleted(ev domain.ContentCompleted) {
	attrs := e.contentAttributes(ev.ID, "")
	for _, id := range e.playletOrder {
		p := e.playlets[id]
		if !p.Enabled || p.Trigger.Type != domain.TriggerDownloadComplete {
			continue
		}
		if MatchConditions(p.Conditions, p.ConditionLogic, attrs) {
			e.createTask(p, ev.ID, attrs.Name, false)
		}
	}

	for _, id := range e.taskOrder {
		t := e.tasks[id]
		if t.TorrentID != ev.ID || !t.AwaitingContent {
			continue
		}
		t.AwaitingContent = false
		if attrs.Name != "" && t.TorrentName == "" {
			t.TorrentName = attrs.Name
		}
		e.persistTask(t)
		e.tryStart(t)
	}
}

func (e *Engine) onContentMetadata(ev domain.ContentMetadata) {
	attrs := e.contentAttributes(ev.ID, ev.Name)
	for _, id := range e.playletOrder {
		p := e.playlets[id]
		if !p.Enabled || p.Trigger.Type != domain.TriggerMetadataReceived {
			continue
		}
		if MatchConditions(p.Conditions, p.ConditionLogic, attrs) {
			e.createTask(p, ev.ID, attrs.Name, false)
		}
	}
}

// onContentProgress derives seeding-ratio qualification from progress ticks.
// A tick qualifies only once the content is fully downloaded and upload
// bytes are known; the ratio-fired set guarantees at most one task per
// (playlet, content) pair no matter how many ticks follow.
func (e *Engine) onContentProgress(ev domain.ContentProgress) {
	if ev.State != domain.ContentStateCompleted || ev.TotalBytes <= 0 || ev.UploadedBytes < 0 {
		return
	}
	ratio := float64(ev.UploadedBytes) / float64(ev.TotalBytes)

	for _, id := range e.playletOrder {
		p := e.playlets[id]
		if !p.Enabled || p.Trigger.Type != domain.TriggerSeedingRatio {
			continue
		}
		if ratio < p.Trigger.SeedingRatio {
			continue
		}
		if e.ratioFired.Fired(p.ID, ev.ID) {
			continue
		}
		attrs := e.contentAttributes(ev.ID, "")
		if !MatchConditions(p.Conditions, p.ConditionLogic, attrs) {
			continue
		}
		e.ratioFired.MarkFired(p.ID, ev.ID)
		e.logger.WithField("torrent_id", ev.ID).
			Infof("seeding ratio %.2f crossed threshold %.2f for playlet %q", ratio, p.Trigger.SeedingRatio, p.Name)
		e.createTask(p, ev.ID, attrs.Name, false)
	}
}

func (e *Engine) onWatchFolderDetected(ev domain.WatchFolderDetected) {
	attrs := domain.ContentAttributes{Name: ev.ContentName}
	for _, id := range e.playletOrder {
		p := e.playlets[id]
		if !p.Enabled || p.Trigger.Type != domain.TriggerFolderWatch {
			continue
		}
		if p.Trigger.WatchFolder != "" && !pathWithin(p.Trigger.WatchFolder, ev.Path) {
			continue
		}
		if MatchConditions(p.Conditions, p.ConditionLogic, attrs) {
			e.createTask(p, ev.ContentID, ev.ContentName, true)
		}
	}
}

// AssignManually creates a task for content the user explicitly dropped onto
// a playlet, bypassing trigger-type and condition checks. Rejections are the
// only errors the engine surfaces to callers.
func (e *Engine) AssignManually(ctx context.Context, playletID, contentID string) (domain.Task, error) {
	var (
		out   domain.Task
		opErr error
	)
	err := e.call(ctx, func() {
		p, ok := e.playlets[playletID]
		if !ok {
			opErr = ErrNotFound
			return
		}
		if !p.Enabled {
			opErr = ErrPlayletDisabled
			return
		}
		for _, id := range e.taskOrder {
			t := e.tasks[id]
			if t.TorrentID != contentID {
				continue
			}
			if t.Status == domain.TaskStatusWaiting || t.Status == domain.TaskStatusExecuting {
				opErr = ErrDuplicateAssignment
				return
			}
		}

		name := ""
		awaiting := true
		if e.resolver != nil {
			if info, err := e.resolver.Resolve(e.ctx, contentID); err == nil {
				name = info.Name
				awaiting = !info.Complete
			}
		}
		task := e.createTask(p, contentID, name, awaiting)
		out = cloneTask(task)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, opErr
}

// createTask snapshots the playlet's action list and file filter at creation
// time; later playlet edits never reach this task.
func (e *Engine) createTask(p *domain.Playlet, contentID, contentName string, awaiting bool) *domain.Task {
	task := &domain.Task{
		ID:              uuid.NewString(),
		TorrentID:       contentID,
		TorrentName:     contentName,
		PlayletID:       p.ID,
		PlayletName:     p.Name,
		Status:          domain.TaskStatusWaiting,
		Actions:         cloneActions(p.Actions),
		ActionResults:   domain.NewTaskResults(p.Actions),
		FileFilter:      cloneFilter(p.FileFilter),
		AwaitingContent: awaiting,
		CreatedAt:       time.Now().UTC(),
	}
	e.tasks[task.ID] = task
	e.taskOrder = append(e.taskOrder, task.ID)
	e.persistTask(task)
	e.notifier.publish(Notification{Type: NotifyTaskCreated, Task: cloneTask(task)})
	e.logger.WithField("task_id", task.ID).
		Infof("task created for %q by playlet %q (%d actions)", contentName, p.Name, len(task.Actions))

	if !awaiting {
		e.tryStart(task)
	}
	return task
}

func (e *Engine) contentAttributes(contentID, fallbackName string) domain.ContentAttributes {
	if e.resolver != nil {
		if info, err := e.resolver.Resolve(e.ctx, contentID); err == nil {
			attrs := info.Attributes()
			if attrs.Name == "" {
				attrs.Name = fallbackName
			}
			return attrs
		}
	}
	return domain.ContentAttributes{Name: fallbackName}
}

func pathWithin(folder, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(folder), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
