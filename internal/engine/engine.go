package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
)

// Store is the injected persistence boundary. The engine loads nothing
// itself; callers restore the persisted collections before Start and the
// engine saves on every mutation thereafter.
type Store interface {
	SavePlaylet(ctx context.Context, playlet *domain.Playlet) error
	DeletePlaylet(ctx context.Context, id string) error
	SaveTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type Config struct {
	// MaxConcurrentTasks caps how many tasks hold an execution slot at once.
	// Admission is checked when a task starts, not when it is created.
	MaxConcurrentTasks int
	Logger             *logrus.Logger
}

// Engine matches content events against playlets and drives the resulting
// tasks through their action pipelines. All dispatcher and pipeline state is
// mutated by a single worker goroutine consuming events in arrival order;
// executor calls run in their own goroutines and re-enter the loop as
// completion events.
//
// Lifecycle: Restore (optional) then Start, then handlers and methods, then
// Close. Before Start, methods return ErrEngineClosed and handler events are
// dropped.
type Engine struct {
	cfg      Config
	logger   *logrus.Logger
	store    Store
	resolver ContentResolver
	registry *ExecutorRegistry
	notifier *Notifier

	ratioFired *ratioFiredSet
	suppressor *dropSuppressor
	commands   *CommandGuard

	// Owned by the worker loop after Start.
	playlets     map[string]*domain.Playlet
	playletOrder []string
	tasks        map[string]*domain.Task
	taskOrder    []string
	running      int

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, store Store, resolver ContentResolver, registry *ExecutorRegistry) *Engine {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Engine{
		cfg:        cfg,
		logger:     cfg.Logger,
		store:      store,
		resolver:   resolver,
		registry:   registry,
		notifier:   NewNotifier(),
		ratioFired: newRatioFiredSet(),
		suppressor: &dropSuppressor{},
		commands:   NewCommandGuard(),
		playlets:   make(map[string]*domain.Playlet),
		tasks:      make(map[string]*domain.Task),
		events:     make(chan func(), 256),
	}
}

// Restore installs the persisted collections. Must be called before Start.
// Tasks caught mid-execution by a previous process are reset to a resumable
// shape: the running result returns to pending and the task to waiting; the
// done prefix is kept as-is (a partially run action is never assumed
// idempotent, it is simply re-queued).
func (e *Engine) Restore(playlets []domain.Playlet, tasks []domain.Task) {
	for i := range playlets {
		p := playlets[i]
		e.playlets[p.ID] = &p
		e.playletOrder = append(e.playletOrder, p.ID)
	}
	for i := range tasks {
		t := tasks[i]
		if t.Status == domain.TaskStatusExecuting {
			for j := range t.ActionResults {
				if t.ActionResults[j].Status == domain.ActionRunning {
					t.ActionResults[j].Status = domain.ActionPending
					t.ActionResults[j].StartedAt = nil
				}
			}
			t.Status = domain.TaskStatusWaiting
		}
		e.tasks[t.ID] = &t
		e.taskOrder = append(e.taskOrder, t.ID)
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.loop()
	e.post(func() { e.pumpWaiting() })
	e.logger.Infof("automation engine started, %d playlets, %d tasks", len(e.playlets), len(e.tasks))
	return nil
}

func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.ratioFired.Reset()
	e.notifier.close()
	e.logger.Info("automation engine stopped")
}

// Subscribe registers an observer of task state changes.
func (e *Engine) Subscribe(buffer int) (<-chan Notification, func()) {
	return e.notifier.Subscribe(buffer)
}

// Commands exposes the in-flight command guard for the external command
// layer (pause/resume/delete-style calls).
func (e *Engine) Commands() *CommandGuard {
	return e.commands
}

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case fn := <-e.events:
			fn()
		}
	}
}

// post enqueues an event for the worker loop, preserving arrival order.
// Events posted before Start are dropped.
func (e *Engine) post(fn func()) {
	if e.ctx == nil {
		return
	}
	select {
	case e.events <- fn:
	case <-e.ctx.Done():
	}
}

// call runs fn on the worker loop and waits for it.
func (e *Engine) call(ctx context.Context, fn func()) error {
	if e.ctx == nil {
		return ErrEngineClosed
	}
	done := make(chan struct{})
	select {
	case e.events <- func() { fn(); close(done) }:
	case <-e.ctx.Done():
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-e.ctx.Done():
		return ErrEngineClosed
	}
}

// --- Playlet collection ---

func (e *Engine) AddPlaylet(ctx context.Context, playlet domain.Playlet) (domain.Playlet, error) {
	var out domain.Playlet
	err := e.call(ctx, func() {
		if playlet.ID == "" {
			playlet.ID = uuid.NewString()
		}
		if playlet.ConditionLogic == "" {
			playlet.ConditionLogic = domain.LogicAnd
		}
		if playlet.CreatedAt.IsZero() {
			playlet.CreatedAt = time.Now().UTC()
		}
		p := playlet
		e.playlets[p.ID] = &p
		e.playletOrder = append(e.playletOrder, p.ID)
		e.persistPlaylet(&p)
		out = p
	})
	return out, err
}

func (e *Engine) UpdatePlaylet(ctx context.Context, playlet domain.Playlet) error {
	var opErr error
	err := e.call(ctx, func() {
		existing, ok := e.playlets[playlet.ID]
		if !ok {
			opErr = ErrNotFound
			return
		}
		playlet.CreatedAt = existing.CreatedAt
		if playlet.ConditionLogic == "" {
			playlet.ConditionLogic = domain.LogicAnd
		}
		p := playlet
		e.playlets[p.ID] = &p
		e.persistPlaylet(&p)
		// A re-enabled playlet may have parked tasks waiting on it.
		e.pumpWaiting()
	})
	if err != nil {
		return err
	}
	return opErr
}

func (e *Engine) SetPlayletEnabled(ctx context.Context, id string, enabled bool) error {
	var opErr error
	err := e.call(ctx, func() {
		p, ok := e.playlets[id]
		if !ok {
			opErr = ErrNotFound
			return
		}
		p.Enabled = enabled
		e.persistPlaylet(p)
		if enabled {
			e.pumpWaiting()
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

func (e *Engine) RemovePlaylet(ctx context.Context, id string) error {
	var opErr error
	err := e.call(ctx, func() {
		if _, ok := e.playlets[id]; !ok {
			opErr = ErrNotFound
			return
		}
		delete(e.playlets, id)
		for i, pid := range e.playletOrder {
			if pid == id {
				e.playletOrder = append(e.playletOrder[:i], e.playletOrder[i+1:]...)
				break
			}
		}
		if e.store != nil {
			if err := e.store.DeletePlaylet(e.ctx, id); err != nil {
				e.logger.WithField("playlet_id", id).Warnf("delete playlet: %v", err)
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

func (e *Engine) GetPlaylet(ctx context.Context, id string) (domain.Playlet, error) {
	var (
		out   domain.Playlet
		opErr error
	)
	err := e.call(ctx, func() {
		p, ok := e.playlets[id]
		if !ok {
			opErr = ErrNotFound
			return
		}
		out = clonePlaylet(p)
	})
	if err != nil {
		return domain.Playlet{}, err
	}
	return out, opErr
}

func (e *Engine) ListPlaylets(ctx context.Context) ([]domain.Playlet, error) {
	var out []domain.Playlet
	err := e.call(ctx, func() {
		for _, id := range e.playletOrder {
			out = append(out, clonePlaylet(e.playlets[id]))
		}
	})
	return out, err
}

// --- Task collection ---

func (e *Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var (
		out   domain.Task
		opErr error
	)
	err := e.call(ctx, func() {
		t, ok := e.tasks[id]
		if !ok {
			opErr = ErrNotFound
			return
		}
		out = cloneTask(t)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, opErr
}

func (e *Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var out []domain.Task
	err := e.call(ctx, func() {
		for _, id := range e.taskOrder {
			out = append(out, cloneTask(e.tasks[id]))
		}
	})
	return out, err
}

// --- persistence / copy helpers (loop context) ---

func (e *Engine) persistPlaylet(p *domain.Playlet) {
	if e.store == nil {
		return
	}
	if err := e.store.SavePlaylet(e.ctx, p); err != nil {
		e.logger.WithField("playlet_id", p.ID).Warnf("save playlet: %v", err)
	}
}

func (e *Engine) persistTask(t *domain.Task) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTask(e.ctx, t); err != nil {
		e.logger.WithField("task_id", t.ID).Warnf("save task: %v", err)
	}
}

func cloneActions(actions []domain.Action) []domain.Action {
	out := make([]domain.Action, len(actions))
	for i, a := range actions {
		out[i] = a
		if a.Config != nil {
			cfg := make(map[string]string, len(a.Config))
			for k, v := range a.Config {
				cfg[k] = v
			}
			out[i].Config = cfg
		}
	}
	return out
}

func cloneFilter(f *domain.FileFilter) *domain.FileFilter {
	if f == nil {
		return nil
	}
	out := *f
	out.CustomExtensions = append([]string(nil), f.CustomExtensions...)
	return &out
}

func clonePlaylet(p *domain.Playlet) domain.Playlet {
	out := *p
	out.Actions = cloneActions(p.Actions)
	out.Conditions = append([]domain.TriggerCondition(nil), p.Conditions...)
	out.FileFilter = cloneFilter(p.FileFilter)
	return out
}

func cloneTask(t *domain.Task) domain.Task {
	out := *t
	out.Actions = cloneActions(t.Actions)
	out.ActionResults = append([]domain.ActionResult(nil), t.ActionResults...)
	out.FileFilter = cloneFilter(t.FileFilter)
	return out
}
