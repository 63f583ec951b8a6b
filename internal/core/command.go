package core

import "github.com/parleychat/parley-server/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify attaches a user identity to the connection.
	CommandIdentify CommandKind = iota
	// CommandRequestRoomData re-sends last-message and unread snapshots.
	CommandRequestRoomData
	// CommandJoinRoom marks the connection as attending a room.
	CommandJoinRoom
	// CommandLeaveRoom removes the connection from a room.
	CommandLeaveRoom
	// CommandSendMessage persists a message and fans it out.
	CommandSendMessage
	// CommandEnterChatTab flags the connection as viewing the chat section.
	CommandEnterChatTab
	// CommandLeaveChatTab clears the flag and the connection's joined rooms.
	CommandLeaveChatTab

	// internal lifecycle commands, enqueued by Register/UnregisterClient
	commandRegister
	commandUnregister
)

// ComposeData carries the payload of a send_message command.
type ComposeData struct {
	Type      store.MessageType
	Body      string
	MediaIDs  []int64
	PollID    *int64
	TableID   *int64
	ReplyToID *int64
}

// Command represents an action requested by a connection.
type Command struct {
	Kind   CommandKind
	Origin *Client

	// identify fields; Token takes precedence over UserID when set.
	Token    string
	UserID   int64
	UserName string

	RoomID  int64
	Compose ComposeData
}
