package core

import "sync"

// Presence tracks which users are online in which rooms, derived from the
// registry plus explicit join/leave signals. A user appears in a room's online
// set iff at least one of their connections has joined that room and not since
// left it, directly or via full disconnect.
type Presence struct {
	registry *Registry

	mu        sync.RWMutex
	rooms     map[int64]map[int64]struct{}  // roomID -> online userIDs
	connRooms map[string]map[int64]struct{} // connID -> joined roomIDs
	chatTab   map[string]struct{}           // connIDs viewing the chat section
}

// NewPresence constructs a presence tracker on top of a registry.
func NewPresence(registry *Registry) *Presence {
	return &Presence{
		registry:  registry,
		rooms:     make(map[int64]map[int64]struct{}),
		connRooms: make(map[string]map[int64]struct{}),
		chatTab:   make(map[string]struct{}),
	}
}

// Join records that the connection is attending the room.
// Returns true when the user was not previously online in that room.
func (p *Presence) Join(userID int64, c *Client, roomID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	joined, ok := p.connRooms[c.ID]
	if !ok {
		joined = make(map[int64]struct{})
		p.connRooms[c.ID] = joined
	}
	joined[roomID] = struct{}{}

	online, ok := p.rooms[roomID]
	if !ok {
		online = make(map[int64]struct{})
		p.rooms[roomID] = online
	}
	if _, present := online[userID]; present {
		return false
	}
	online[userID] = struct{}{}
	return true
}

// Leave removes the room from the connection's joined set. Returns true when
// the user's online status in that room visibly changed, i.e. no other
// connection of the user is still attending it.
func (p *Presence) Leave(userID int64, c *Client, roomID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if joined, ok := p.connRooms[c.ID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(p.connRooms, c.ID)
		}
	}

	if p.otherConnAttendsLocked(userID, c.ID, roomID) {
		return false
	}
	return p.removeOnlineLocked(userID, roomID)
}

// DropConnection handles a full disconnect: every room the connection had
// joined is left at once. Returns the rooms where the user went offline.
func (p *Presence) DropConnection(userID int64, c *Client) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	joined := p.connRooms[c.ID]
	delete(p.connRooms, c.ID)
	delete(p.chatTab, c.ID)

	var offline []int64
	for roomID := range joined {
		if p.otherConnAttendsLocked(userID, c.ID, roomID) {
			continue
		}
		if p.removeOnlineLocked(userID, roomID) {
			offline = append(offline, roomID)
		}
	}
	return offline
}

// ClearJoined empties the connection's joined-room set, used when the client
// leaves the chat tab. Returns the rooms where the user went offline.
func (p *Presence) ClearJoined(userID int64, c *Client) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	joined := p.connRooms[c.ID]
	delete(p.connRooms, c.ID)

	var offline []int64
	for roomID := range joined {
		if p.otherConnAttendsLocked(userID, c.ID, roomID) {
			continue
		}
		if p.removeOnlineLocked(userID, roomID) {
			offline = append(offline, roomID)
		}
	}
	return offline
}

// IsAttending reports whether the user has at least one connection currently
// joined to the room. Merely being connected is not attending.
func (p *Presence) IsAttending(userID, roomID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[roomID][userID]
	return ok
}

// ConnAttending reports whether this specific connection has joined the room.
func (p *Presence) ConnAttending(c *Client, roomID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.connRooms[c.ID][roomID]
	return ok
}

// OnlineInRoom returns the user IDs currently online in the room.
func (p *Presence) OnlineInRoom(roomID int64) []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	online := p.rooms[roomID]
	out := make([]int64, 0, len(online))
	for userID := range online {
		out = append(out, userID)
	}
	return out
}

// JoinedRooms returns the rooms this connection has joined.
func (p *Presence) JoinedRooms(c *Client) []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	joined := p.connRooms[c.ID]
	out := make([]int64, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	return out
}

// EnterChatTab flags the connection as viewing the chat section.
func (p *Presence) EnterChatTab(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatTab[c.ID] = struct{}{}
}

// LeaveChatTab clears the flag. Joined rooms are cleared separately via
// ClearJoined so the caller can broadcast the presence changes.
func (p *Presence) LeaveChatTab(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.chatTab, c.ID)
}

// InChatTab reports the coarse "viewing the chat section" flag.
func (p *Presence) InChatTab(c *Client) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.chatTab[c.ID]
	return ok
}

func (p *Presence) otherConnAttendsLocked(userID int64, exceptConnID string, roomID int64) bool {
	for _, other := range p.registry.ConnectionsOf(userID) {
		if other.ID == exceptConnID {
			continue
		}
		if _, ok := p.connRooms[other.ID][roomID]; ok {
			return true
		}
	}
	return false
}

// removeOnlineLocked deletes the user from the room's online set.
// Idempotent: returns false when the user was not in the set.
func (p *Presence) removeOnlineLocked(userID, roomID int64) bool {
	online, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	if _, present := online[userID]; !present {
		return false
	}
	delete(online, userID)
	if len(online) == 0 {
		delete(p.rooms, roomID)
	}
	return true
}
