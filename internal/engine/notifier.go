package engine

import (
	"sync"

	"whenthen/internal/domain"
)

type NotificationType string

const (
	NotifyTaskCreated NotificationType = "task_created"
	NotifyTaskUpdated NotificationType = "task_updated"
	NotifyTaskRemoved NotificationType = "task_removed"
)

// Notification carries a task state change to subscribers. Task is a copy;
// observers never see engine-owned state.
type Notification struct {
	Type NotificationType
	Task domain.Task
}

// Notifier publishes engine state changes to explicitly registered
// subscribers. Publishing never blocks the engine loop: a subscriber whose
// buffer is full misses that notification.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Notification
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Notification)}
}

// Subscribe registers an observer. The returned cancel func must be called
// to release the subscription.
func (n *Notifier) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *Notifier) publish(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- notification:
		default:
		}
	}
}

func (n *Notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
