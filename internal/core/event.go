package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventLastMessages delivers a roomID -> last-message snapshot map.
	EventLastMessages EventKind = iota
	// EventUnreadCounts delivers a roomID -> unread count map.
	EventUnreadCounts
	// EventOnlineUsers notifies room occupants about the online set.
	EventOnlineUsers
	// EventRoomMembers delivers the full member list with online flags.
	EventRoomMembers
	// EventNewMessage delivers a message to room occupants.
	EventNewMessage
	// EventRoomUpdate is the per-recipient room summary update.
	EventRoomUpdate
	// EventError notifies a client about a domain error.
	EventError
)

// MemberInfo is one entry of a room member list.
type MemberInfo struct {
	UserID      int64
	DisplayName string
	IsAdmin     bool
	IsOnline    bool
}

// OnlineUsersData describes the online subset of a room.
type OnlineUsersData struct {
	RoomID      int64
	UserIDs     []int64
	OnlineCount int
	MemberCount int
}

// RoomMembersData is the full member list of a room.
type RoomMembersData struct {
	RoomID  int64
	Members []MemberInfo
}

// RoomUpdateData is the lighter room summary sent to all of a member's
// connections regardless of room attendance.
type RoomUpdateData struct {
	RoomID      int64
	LastMessage *MessageView
	UnreadCount int
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	LastMessages map[int64]*MessageView
	UnreadCounts map[int64]int
	Online       *OnlineUsersData
	Members      *RoomMembersData
	Message      *MessageView
	RoomUpdate   *RoomUpdateData
	Error        *CoreError
}
