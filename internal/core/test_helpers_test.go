package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// mustEvent waits for the next event of the given kind, skipping others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventMatch(t, ch, kind, func(*Event) bool { return true })
}

// mustEventMatch waits for an event of the given kind satisfying match.
func mustEventMatch(t *testing.T, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for kind %v", kind)
				return nil
			}
			if ev != nil && ev.Kind == kind && match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// waitFor polls a condition until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu          sync.Mutex
	rooms       map[int64]*store.Room
	members     map[int64][]store.RoomMember
	messages    map[int64]*store.Message
	nextMsgID   int64
	failMembers bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[int64]*store.Room),
		members:  make(map[int64][]store.RoomMember),
		messages: make(map[int64]*store.Message),
	}
}

func (f *fakeStore) addRoom(id int64, name string, memberIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id] = &store.Room{ID: id, Name: name, CreatedAt: time.Now()}
	for _, userID := range memberIDs {
		f.members[id] = append(f.members[id], store.RoomMember{
			RoomID:      id,
			UserID:      userID,
			DisplayName: fmt.Sprintf("user-%d", userID),
		})
	}
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) CreateRoom(ctx context.Context, name string, ownerID *int64) (*store.Room, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d not found", id)
	}
	return room, nil
}

func (f *fakeStore) ListRooms(ctx context.Context) ([]store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, *room)
	}
	return out, nil
}

func (f *fakeStore) ListRoomsForUser(ctx context.Context, userID int64) ([]store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Room
	for roomID, members := range f.members {
		for _, member := range members {
			if member.UserID == userID {
				out = append(out, *f.rooms[roomID])
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) AddRoomMember(ctx context.Context, roomID, userID int64, isAdmin bool) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeStore) ListRoomMembers(ctx context.Context, roomID int64) ([]store.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMembers {
		return nil, fmt.Errorf("members unavailable")
	}
	return f.members[roomID], nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	saved := *msg
	saved.ID = f.nextMsgID
	saved.CreatedAt = time.Now()
	f.messages[saved.ID] = &saved
	return &saved, nil
}

func (f *fakeStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return msg, nil
}

func (f *fakeStore) LatestRoomMessage(ctx context.Context, roomID int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *store.Message
	for _, msg := range f.messages {
		if msg.RoomID != roomID {
			continue
		}
		if latest == nil || msg.ID > latest.ID {
			latest = msg
		}
	}
	return latest, nil
}

func (f *fakeStore) RegisterToken(ctx context.Context, userID int64, token string, platform store.TokenPlatform) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeStore) DeactivateToken(ctx context.Context, token string) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeStore) ListActiveTokens(ctx context.Context, userID int64) ([]store.NotificationToken, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }
