package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeIdentify        = "identify"
	InboundTypeRequestRoomData = "request_room_data"
	InboundTypeJoinRoom        = "join_room"
	InboundTypeLeaveRoom       = "leave_room"
	InboundTypeSendMessage     = "send_message"
	InboundTypeEnterChatTab    = "enter_chat_tab"
	InboundTypeLeaveChatTab    = "leave_chat_tab"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameLastMessage  = "last_message"
	EventNameUnreadCounts = "unread_counts"
	EventNameOnlineUsers  = "online_users"
	EventNameRoomMembers  = "room_members"
	EventNameNewMessage   = "new_message"
	EventNameRoomUpdate   = "room_update"
)

// IdentifyData attaches a user identity to the connection. Token takes
// precedence over the raw user id when both are present.
type IdentifyData struct {
	Token  string `json:"token,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// RoomRef addresses a room for join/leave. UserID and UserName support
// legacy clients that identify implicitly on join.
type RoomRef struct {
	RoomID   int64  `json:"room_id"`
	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// SendMessageData is a message submission.
type SendMessageData struct {
	RoomID    int64   `json:"room_id"`
	Type      string  `json:"type,omitempty"`
	Body      string  `json:"body"`
	MediaIDs  []int64 `json:"media_ids,omitempty"`
	PollID    *int64  `json:"poll_id,omitempty"`
	TableID   *int64  `json:"table_id,omitempty"`
	ReplyToID *int64  `json:"reply_to_id,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessageView is the canonical wire representation of a message.
type MessageView struct {
	ID         int64   `json:"id"`
	RoomID     int64   `json:"room_id"`
	Type       string  `json:"type"`
	Body       string  `json:"body"`
	SenderID   int64   `json:"sender_id"`
	SenderName string  `json:"sender_name"`
	MediaIDs   []int64 `json:"media_ids,omitempty"`
	PollID     *int64  `json:"poll_id,omitempty"`
	TableID    *int64  `json:"table_id,omitempty"`
	ReplyToID  *int64  `json:"reply_to_id,omitempty"`
	TS         int64   `json:"ts"`
}

// EventOnlineUsers describes the online subset of a room.
type EventOnlineUsers struct {
	RoomID      int64   `json:"room_id"`
	UserIDs     []int64 `json:"user_ids"`
	OnlineCount int     `json:"online_count"`
	MemberCount int     `json:"member_count"`
}

// RoomMemberView is one entry of a room member list.
type RoomMemberView struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	IsOnline    bool   `json:"is_online"`
}

// EventRoomMembers is the full member list of a room.
type EventRoomMembers struct {
	RoomID  int64            `json:"room_id"`
	Members []RoomMemberView `json:"members"`
}

// EventRoomUpdate is the per-recipient room summary.
type EventRoomUpdate struct {
	RoomID      int64        `json:"room_id"`
	LastMessage *MessageView `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
