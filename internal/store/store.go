package store

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a chat room.
type Room struct {
	ID        int64
	Name      string
	OwnerID   *int64
	CreatedAt time.Time
}

// RoomMember represents room membership. Membership is owned by storage;
// the realtime layer only reads it.
type RoomMember struct {
	RoomID      int64
	UserID      int64
	DisplayName string
	IsAdmin     bool
	JoinedAt    time.Time
}

// MessageType distinguishes message payload kinds.
type MessageType string

const (
	MessageTypeText         MessageType = "text"
	MessageTypeMedia        MessageType = "media"
	MessageTypePoll         MessageType = "poll"
	MessageTypeTable        MessageType = "table"
	MessageTypeAnnouncement MessageType = "announcement"
)

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   int64
	SenderName string
	Type       MessageType
	Body       string
	MediaIDs   []int64
	PollID     *int64
	TableID    *int64
	ReplyToID  *int64
	CreatedAt  time.Time
}

// TokenPlatform identifies the device platform a push token belongs to.
type TokenPlatform string

const (
	TokenPlatformAndroid TokenPlatform = "android"
	TokenPlatformIOS     TokenPlatform = "ios"
	TokenPlatformWeb     TokenPlatform = "web"
)

// NotificationToken is a device push token. The realtime core only reads
// active tokens and flips the active flag; it never creates or renews them.
type NotificationToken struct {
	ID        int64
	UserID    int64
	Token     string
	Platform  TokenPlatform
	Active    bool
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles rooms and memberships.
type RoomStore interface {
	CreateRoom(ctx context.Context, name string, ownerID *int64) (*Room, error)
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListRooms returns every room, used for boot rehydration.
	ListRooms(ctx context.Context) ([]Room, error)

	// ListRoomsForUser returns rooms the user is a member of.
	ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error)

	AddRoomMember(ctx context.Context, roomID, userID int64, isAdmin bool) error

	// ListRoomMembers returns membership with display names resolved.
	ListRoomMembers(ctx context.Context, roomID int64) ([]RoomMember, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *Message) (*Message, error)
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// LatestRoomMessage returns the most recent message in a room,
	// or (nil, nil) when the room has no messages yet.
	LatestRoomMessage(ctx context.Context, roomID int64) (*Message, error)
}

// TokenStore handles device push tokens.
type TokenStore interface {
	// RegisterToken inserts or reactivates a token for a user.
	RegisterToken(ctx context.Context, userID int64, token string, platform TokenPlatform) error

	// DeactivateToken flips the active flag; it never deletes history.
	DeactivateToken(ctx context.Context, token string) error

	// ListActiveTokens returns the user's currently active tokens.
	ListActiveTokens(ctx context.Context, userID int64) ([]NotificationToken, error)
}

// Store combines all storage capabilities.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	TokenStore

	Close() error
}
