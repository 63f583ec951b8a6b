package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/parleychat/parley-server/internal/store"
)

// MembershipCache is a read-through cache of room membership. Membership is
// owned by storage and never mutated here; the REST layer invalidates rooms
// when it changes them.
type MembershipCache struct {
	store store.RoomStore

	mu     sync.RWMutex
	byRoom map[int64][]store.RoomMember
}

// NewMembershipCache constructs a cache backed by the given store.
func NewMembershipCache(st store.RoomStore) *MembershipCache {
	return &MembershipCache{
		store:  st,
		byRoom: make(map[int64][]store.RoomMember),
	}
}

// Members returns the room's membership, hitting storage on a cache miss.
func (m *MembershipCache) Members(ctx context.Context, roomID int64) ([]store.RoomMember, error) {
	m.mu.RLock()
	members, ok := m.byRoom[roomID]
	m.mu.RUnlock()
	if ok {
		return members, nil
	}

	members, err := m.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}

	m.mu.Lock()
	m.byRoom[roomID] = members
	m.mu.Unlock()
	return members, nil
}

// Invalidate drops the cached membership for a room.
func (m *MembershipCache) Invalidate(roomID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byRoom, roomID)
}

// MemberIDs returns only the user IDs of a room's members.
func (m *MembershipCache) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	members, err := m.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, member := range members {
		out = append(out, member.UserID)
	}
	return out, nil
}
