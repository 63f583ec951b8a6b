package core

import "sync"

// LastMessages keeps the most recent message snapshot per room, used to
// hydrate client UIs on connect without a full history fetch. Snapshots are
// overwritten on every new message and never deleted.
type LastMessages struct {
	mu     sync.RWMutex
	byRoom map[int64]*MessageView
}

// NewLastMessages constructs an empty snapshot cache.
func NewLastMessages() *LastMessages {
	return &LastMessages{byRoom: make(map[int64]*MessageView)}
}

// Set overwrites the snapshot for the message's room.
func (l *LastMessages) Set(view *MessageView) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byRoom[view.RoomID] = view
}

// Get returns the snapshot for a room, or nil when the room has no messages.
func (l *LastMessages) Get(roomID int64) *MessageView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byRoom[roomID]
}

// SnapshotFor returns the snapshots for the given rooms, omitting rooms
// without messages.
func (l *LastMessages) SnapshotFor(roomIDs []int64) map[int64]*MessageView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int64]*MessageView, len(roomIDs))
	for _, roomID := range roomIDs {
		if view, ok := l.byRoom[roomID]; ok {
			out[roomID] = view
		}
	}
	return out
}
