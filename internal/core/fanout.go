package core

import (
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

// Notifier receives a message after live fanout completes, to evaluate push
// notifications. Implementations run on their own goroutine; a notification
// failure must never affect live delivery.
type Notifier interface {
	MessageSent(view *MessageView, room *store.Room, members []store.RoomMember)
}

// Fanout delivers freshly persisted messages to the right live connections
// and keeps the unread and last-message caches current.
type Fanout struct {
	registry     *Registry
	presence     *Presence
	unread       *Unread
	lastMessages *LastMessages
	notifier     Notifier // nil when push is disabled
	log          *zerolog.Logger
}

// NewFanout constructs the fanout engine.
func NewFanout(registry *Registry, presence *Presence, unread *Unread, lastMessages *LastMessages, notifier Notifier, logger *zerolog.Logger) *Fanout {
	return &Fanout{
		registry:     registry,
		presence:     presence,
		unread:       unread,
		lastMessages: lastMessages,
		notifier:     notifier,
		log:          logger,
	}
}

// Dispatch assumes msg is already persisted with its final ID and timestamp.
// It updates caches, delivers the message to room occupants, sends room
// summary updates to every member's connections and hands the message off to
// the notifier asynchronously.
func (f *Fanout) Dispatch(room *store.Room, msg *store.Message, members []store.RoomMember, origin *Client) {
	view := ViewFromMessage(msg)

	f.lastMessages.Set(view)

	// Unread bumps for members neither sending nor attending the room.
	for _, member := range members {
		if member.UserID == msg.SenderID {
			continue
		}
		if f.presence.IsAttending(member.UserID, room.ID) {
			continue
		}
		f.unread.Increment(member.UserID, room.ID)
	}

	f.deliverLive(view, room.ID, origin)
	f.deliverSummaries(view, room.ID, members)

	if f.notifier != nil {
		go f.notifySafely(view, room, members)
	}
}

// deliverLive pushes the full message to every connection joined to the room,
// except the originating connection. The sender's other devices do receive it.
func (f *Fanout) deliverLive(view *MessageView, roomID int64, origin *Client) {
	event := &Event{Kind: EventNewMessage, Message: view}

	for _, userID := range f.presence.OnlineInRoom(roomID) {
		for _, conn := range f.registry.ConnectionsOf(userID) {
			if origin != nil && conn.ID == origin.ID {
				continue
			}
			if !f.presence.ConnAttending(conn, roomID) {
				continue
			}
			if !conn.Send(event) {
				f.log.Debug().Str("conn_id", conn.ID).Int64("room_id", roomID).Msg("dropped live message for slow consumer")
			}
		}
	}
}

// deliverSummaries sends the lighter room summary to all connections of every
// member, attending or not, so room list UIs stay current.
func (f *Fanout) deliverSummaries(view *MessageView, roomID int64, members []store.RoomMember) {
	for _, member := range members {
		conns := f.registry.ConnectionsOf(member.UserID)
		if len(conns) == 0 {
			continue
		}

		event := &Event{
			Kind: EventRoomUpdate,
			RoomUpdate: &RoomUpdateData{
				RoomID:      roomID,
				LastMessage: view,
				UnreadCount: f.unread.Get(member.UserID, roomID),
			},
		}
		for _, conn := range conns {
			if !conn.Send(event) {
				f.log.Debug().Str("conn_id", conn.ID).Int64("room_id", roomID).Msg("dropped room update for slow consumer")
			}
		}
	}
}

// notifySafely isolates the notification failure domain from fanout.
func (f *Fanout) notifySafely(view *MessageView, room *store.Room, members []store.RoomMember) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Interface("panic", r).Int64("room_id", room.ID).Msg("notifier panicked")
		}
	}()
	f.notifier.MessageSent(view, room, members)
}
