package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/push"
	"github.com/parleychat/parley-server/internal/store"
)

// sendTimeout bounds one message's worth of notification work.
const sendTimeout = 15 * time.Second

// Sender dispatches a rendered notification to a set of tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]any) *push.Report
}

// Delivery is one selected recipient with its rendered notification.
type Delivery struct {
	UserID int64
	Title  string
	Body   string
	Data   map[string]any
}

// Engine decides, per room member, whether a message warrants a push
// notification, renders it and hands it to the dispatcher. It implements
// core.Notifier.
type Engine struct {
	presence *core.Presence
	messages store.MessageStore
	tokens   store.TokenStore
	sender   Sender
	log      *zerolog.Logger
}

// NewEngine constructs the decision engine.
func NewEngine(presence *core.Presence, messages store.MessageStore, tokens store.TokenStore, sender Sender, logger *zerolog.Logger) *Engine {
	return &Engine{
		presence: presence,
		messages: messages,
		tokens:   tokens,
		sender:   sender,
		log:      logger,
	}
}

// Decide selects recipients and renders their notifications. A member is
// skipped only when they are currently attending this specific room; merely
// being connected is not enough to suppress a push.
func (e *Engine) Decide(ctx context.Context, view *core.MessageView, room *store.Room, members []store.RoomMember) []Delivery {
	defaultBody := renderBody(view)

	// One parent lookup per message; a failure means "not a reply".
	var parent *store.Message
	if view.ReplyToID != nil {
		p, err := e.messages.GetMessageByID(ctx, *view.ReplyToID)
		if err != nil {
			e.log.Debug().Err(err).Int64("message_id", view.ID).Msg("parent lookup failed, treating as not a reply")
		} else {
			parent = p
		}
	}

	var deliveries []Delivery
	for _, member := range members {
		if member.UserID == view.SenderID {
			continue
		}
		if e.presence.IsAttending(member.UserID, room.ID) {
			continue
		}

		title := room.Name
		body := defaultBody
		// Replying to the candidate overrides the type-specific rendering.
		if parent != nil && parent.SenderID == member.UserID {
			title = view.SenderName + " replied to you"
			body = room.Name
		}

		deliveries = append(deliveries, Delivery{
			UserID: member.UserID,
			Title:  title,
			Body:   body,
			Data: map[string]any{
				"room_id":    view.RoomID,
				"message_id": view.ID,
				"type":       string(view.Type),
			},
		})
	}
	return deliveries
}

// MessageSent evaluates one fanned-out message. Exactly one send attempt is
// made per selected member with active tokens.
func (e *Engine) MessageSent(view *core.MessageView, room *store.Room, members []store.RoomMember) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	for _, delivery := range e.Decide(ctx, view, room, members) {
		tokens, err := e.tokens.ListActiveTokens(ctx, delivery.UserID)
		if err != nil {
			e.log.Error().Err(err).Int64("user_id", delivery.UserID).Msg("failed to load tokens")
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		values := make([]string, 0, len(tokens))
		for _, token := range tokens {
			values = append(values, token.Token)
		}

		report := e.sender.Send(ctx, values, delivery.Title, delivery.Body, delivery.Data)
		e.log.Debug().
			Int64("user_id", delivery.UserID).
			Int64("message_id", view.ID).
			Int("success", report.SuccessCount).
			Int("failure", report.FailureCount).
			Msg("notification attempted")
	}
}
