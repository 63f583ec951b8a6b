package core

import "github.com/parleychat/parley-server/internal/store"

// MessageView is the canonical representation of a message as it travels
// through fanout: live delivery, room summaries, last-message snapshots and
// notification rendering all consume this shape.
type MessageView struct {
	ID         int64
	RoomID     int64
	Type       store.MessageType
	Body       string
	SenderID   int64
	SenderName string
	MediaIDs   []int64
	PollID     *int64
	TableID    *int64
	ReplyToID  *int64
	CreatedAt  int64 // unix seconds
}

// ViewFromMessage builds the canonical view of a persisted message.
func ViewFromMessage(m *store.Message) *MessageView {
	return &MessageView{
		ID:         m.ID,
		RoomID:     m.RoomID,
		Type:       m.Type,
		Body:       m.Body,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		MediaIDs:   m.MediaIDs,
		PollID:     m.PollID,
		TableID:    m.TableID,
		ReplyToID:  m.ReplyToID,
		CreatedAt:  m.CreatedAt.Unix(),
	}
}
