package engine

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// ratioKey identifies one (playlet, content) pairing for the fire-once guard.
type ratioKey struct {
	PlayletID string
	TorrentID string
}

// ratioFiredSet prevents a seeding-ratio playlet from firing more than once
// per content item. Progress ticks keep arriving after the threshold is
// crossed; entries are only added, never removed, until the watcher is torn
// down.
type ratioFiredSet struct {
	mu    sync.Mutex
	fired map[ratioKey]struct{}
}

func newRatioFiredSet() *ratioFiredSet {
	return &ratioFiredSet{fired: make(map[ratioKey]struct{})}
}

func (s *ratioFiredSet) Fired(playletID, torrentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[ratioKey{PlayletID: playletID, TorrentID: torrentID}]
	return ok
}

func (s *ratioFiredSet) MarkFired(playletID, torrentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[ratioKey{PlayletID: playletID, TorrentID: torrentID}] = struct{}{}
}

func (s *ratioFiredSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = make(map[ratioKey]struct{})
}

// dropSuppressor resolves a known race between a manual add-and-assign
// command and the automatic content-added dispatch: the "added" event can
// arrive before the manual command's result does, and the dispatcher must
// skip auto-assignment for that one occurrence. A counter, not a boolean,
// so multiple concurrent manual drops each suppress exactly one dispatch.
type dropSuppressor struct {
	mu      sync.Mutex
	pending int
}

// Arm is called when the manual command is issued, before its async
// completion.
func (d *dropSuppressor) Arm() {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
}

// Disarm undoes one Arm when the manual command produced no content event
// after all, a failed or duplicate add. Without it a leftover count would
// swallow the next unrelated automatic dispatch.
func (d *dropSuppressor) Disarm() {
	d.mu.Lock()
	if d.pending > 0 {
		d.pending--
	}
	d.mu.Unlock()
}

// Consume reports whether the next automatic dispatch should be suppressed,
// decrementing the counter when it is.
func (d *dropSuppressor) Consume() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == 0 {
		return false
	}
	d.pending--
	return true
}

// CommandGuard deduplicates side-effecting external commands keyed by
// (command, contentID): a second call for the same key while the first is
// unresolved joins the pending outcome instead of issuing a duplicate.
type CommandGuard struct {
	group singleflight.Group
}

func NewCommandGuard() *CommandGuard {
	return &CommandGuard{}
}

func (g *CommandGuard) Do(command, contentID string, fn func() error) error {
	_, err, _ := g.group.Do(command+":"+contentID, func() (any, error) {
		return nil, fn()
	})
	return err
}
