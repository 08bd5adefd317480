package app

import (
	"sync"
	"time"

	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/domain"
)

type typingKey struct {
	room domain.RoomID
	sid  core.SessionID
}

// TypingTracker holds the per-room set of currently-typing senders. Each
// entry carries a soft expiry; when it elapses the tracker fires onExpire so
// the store can emit a synthetic typing_stopped to peers.
type TypingTracker struct {
	mu       sync.Mutex
	expiry   time.Duration
	timers   map[typingKey]*time.Timer
	onExpire func(room domain.RoomID, sid core.SessionID)
}

func NewTypingTracker(expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		expiry: expiry,
		timers: make(map[typingKey]*time.Timer),
	}
}

// OnExpire registers the expiry callback. Must be set before the first
// Start; the callback runs on a timer goroutine with no tracker lock held.
func (t *TypingTracker) OnExpire(fn func(room domain.RoomID, sid core.SessionID)) {
	t.mu.Lock()
	t.onExpire = fn
	t.mu.Unlock()
}

// Start marks the sender as typing and returns true only on the transition
// into the typing set. Redundant starts just rearm the expiry.
func (t *TypingTracker) Start(room domain.RoomID, sid core.SessionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := typingKey{room: room, sid: sid}
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.expiry)
		return false
	}
	t.timers[key] = time.AfterFunc(t.expiry, func() { t.expire(key) })
	return true
}

// Stop clears the sender and returns true if it was typing.
func (t *TypingTracker) Stop(room domain.RoomID, sid core.SessionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(typingKey{room: room, sid: sid})
}

func (t *TypingTracker) stopLocked(key typingKey) bool {
	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, key)
	return true
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, live := t.timers[key]
	delete(t.timers, key)
	fn := t.onExpire
	t.mu.Unlock()
	if live && fn != nil {
		fn(key.room, key.sid)
	}
}

// ClearSession drops the sender's entry without firing the callback; used on
// departure, where the room broadcast already implies the indicator is gone.
func (t *TypingTracker) ClearSession(room domain.RoomID, sid core.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(typingKey{room: room, sid: sid})
}

// ClearRoom drops every entry for a destroyed room.
func (t *TypingTracker) ClearRoom(room domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.timers {
		if key.room == room {
			t.stopLocked(key)
		}
	}
}

// Typing reports whether the sender is currently in the typing set.
func (t *TypingTracker) Typing(room domain.RoomID, sid core.SessionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{room: room, sid: sid}]
	return ok
}
