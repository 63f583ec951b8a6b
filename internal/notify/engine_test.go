package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/push"
	"github.com/parleychat/parley-server/internal/store"
)

type sentCall struct {
	tokens []string
	title  string
	body   string
	data   map[string]any
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
}

func (f *fakeSender) Send(ctx context.Context, tokens []string, title, body string, data map[string]any) *push.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{tokens: tokens, title: title, body: body, data: data})
	return &push.Report{SuccessCount: len(tokens)}
}

func (f *fakeSender) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeMessages struct {
	byID map[int64]*store.Message
}

func (f *fakeMessages) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMessages) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	msg, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return msg, nil
}

func (f *fakeMessages) LatestRoomMessage(ctx context.Context, roomID int64) (*store.Message, error) {
	return nil, nil
}

type fakeTokens struct {
	byUser map[int64][]store.NotificationToken
}

func (f *fakeTokens) RegisterToken(ctx context.Context, userID int64, token string, platform store.TokenPlatform) error {
	return nil
}

func (f *fakeTokens) DeactivateToken(ctx context.Context, token string) error { return nil }

func (f *fakeTokens) ListActiveTokens(ctx context.Context, userID int64) ([]store.NotificationToken, error) {
	return f.byUser[userID], nil
}

type engineFixture struct {
	engine   *Engine
	sender   *fakeSender
	registry *core.Registry
	presence *core.Presence
	messages *fakeMessages
	tokens   *fakeTokens
}

func newEngineFixture() *engineFixture {
	logger := zerolog.Nop()
	registry := core.NewRegistry()
	presence := core.NewPresence(registry)
	sender := &fakeSender{}
	messages := &fakeMessages{byID: make(map[int64]*store.Message)}
	tokens := &fakeTokens{byUser: make(map[int64][]store.NotificationToken)}
	return &engineFixture{
		engine:   NewEngine(presence, messages, tokens, sender, &logger),
		sender:   sender,
		registry: registry,
		presence: presence,
		messages: messages,
		tokens:   tokens,
	}
}

func (f *engineFixture) attend(userID, roomID int64) {
	c := core.NewClient(fmt.Sprintf("conn-%d", userID))
	f.registry.Register(c)
	f.registry.Identify(c, userID, fmt.Sprintf("user-%d", userID))
	f.presence.Join(userID, c, roomID)
}

func (f *engineFixture) connectOnly(userID int64) {
	c := core.NewClient(fmt.Sprintf("conn-%d", userID))
	f.registry.Register(c)
	f.registry.Identify(c, userID, fmt.Sprintf("user-%d", userID))
}

func (f *engineFixture) token(userID int64, value string) {
	f.tokens.byUser[userID] = append(f.tokens.byUser[userID], store.NotificationToken{
		UserID: userID, Token: value, Platform: store.TokenPlatformAndroid, Active: true,
	})
}

var testRoom = &store.Room{ID: 7, Name: "Weekend Plans"}

func testMembers(userIDs ...int64) []store.RoomMember {
	out := make([]store.RoomMember, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, store.RoomMember{RoomID: 7, UserID: id, DisplayName: fmt.Sprintf("user-%d", id)})
	}
	return out
}

func TestEngineNotifiesNonAttendingMember(t *testing.T) {
	f := newEngineFixture()
	f.token(2, "tok-bob")

	view := &core.MessageView{ID: 10, RoomID: 7, Type: store.MessageTypeText, SenderID: 1, SenderName: "Alice", Body: "Hello"}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2))

	calls := f.sender.sent()
	if len(calls) != 1 {
		t.Fatalf("send attempts = %d, want exactly 1", len(calls))
	}
	call := calls[0]
	if call.title != "Weekend Plans" {
		t.Fatalf("title = %q, want room name", call.title)
	}
	if call.body != "Alice: Hello" {
		t.Fatalf("body = %q, want %q", call.body, "Alice: Hello")
	}
	if len(call.tokens) != 1 || call.tokens[0] != "tok-bob" {
		t.Fatalf("tokens = %v", call.tokens)
	}
	if call.data["room_id"] != int64(7) || call.data["message_id"] != int64(10) {
		t.Fatalf("data = %v", call.data)
	}
}

// Being connected to the server does not suppress a push; only attending the
// message's room does.
func TestEngineSkipsAttendingOnly(t *testing.T) {
	f := newEngineFixture()
	f.token(2, "tok-bob")
	f.token(3, "tok-carol")

	f.attend(2, 7)     // bob is viewing the room: skip
	f.connectOnly(3)   // carol is online elsewhere: still notify

	view := &core.MessageView{ID: 10, RoomID: 7, Type: store.MessageTypeText, SenderID: 1, SenderName: "Alice", Body: "hi"}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2, 3))

	calls := f.sender.sent()
	if len(calls) != 1 {
		t.Fatalf("send attempts = %d, want 1", len(calls))
	}
	if calls[0].tokens[0] != "tok-carol" {
		t.Fatalf("notified tokens = %v, want carol's", calls[0].tokens)
	}
}

func TestEngineSkipsAttendingInOtherRoom(t *testing.T) {
	f := newEngineFixture()
	f.token(2, "tok-bob")
	f.attend(2, 99) // attending a different room

	view := &core.MessageView{ID: 10, RoomID: 7, Type: store.MessageTypeText, SenderID: 1, SenderName: "Alice", Body: "hi"}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2))

	if calls := f.sender.sent(); len(calls) != 1 {
		t.Fatalf("send attempts = %d, want 1", len(calls))
	}
}

func TestEngineSkipsSenderAndTokenless(t *testing.T) {
	f := newEngineFixture()
	f.token(1, "tok-alice") // sender has tokens but never gets notified

	view := &core.MessageView{ID: 10, RoomID: 7, Type: store.MessageTypeText, SenderID: 1, SenderName: "Alice", Body: "hi"}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2))

	if calls := f.sender.sent(); len(calls) != 0 {
		t.Fatalf("send attempts = %d, want 0", len(calls))
	}
}

func TestEngineReplyOverride(t *testing.T) {
	f := newEngineFixture()
	f.token(2, "tok-bob")
	f.token(3, "tok-carol")

	parentID := int64(5)
	f.messages.byID[parentID] = &store.Message{ID: parentID, RoomID: 7, SenderID: 2, Body: "original", CreatedAt: time.Now()}

	view := &core.MessageView{
		ID: 10, RoomID: 7, Type: store.MessageTypeText,
		SenderID: 1, SenderName: "Alice", Body: "I agree", ReplyToID: &parentID,
	}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2, 3))

	calls := f.sender.sent()
	if len(calls) != 2 {
		t.Fatalf("send attempts = %d, want 2", len(calls))
	}
	byToken := make(map[string]sentCall)
	for _, call := range calls {
		byToken[call.tokens[0]] = call
	}

	reply := byToken["tok-bob"]
	if reply.title != "Alice replied to you" || reply.body != "Weekend Plans" {
		t.Fatalf("reply notification = (%q, %q)", reply.title, reply.body)
	}
	regular := byToken["tok-carol"]
	if regular.title != "Weekend Plans" || regular.body != "Alice: I agree" {
		t.Fatalf("regular notification = (%q, %q)", regular.title, regular.body)
	}
}

// A failed parent lookup degrades to the default rendering instead of
// dropping the notification.
func TestEngineParentLookupFailure(t *testing.T) {
	f := newEngineFixture()
	f.token(2, "tok-bob")

	missing := int64(404)
	view := &core.MessageView{
		ID: 10, RoomID: 7, Type: store.MessageTypeText,
		SenderID: 1, SenderName: "Alice", Body: "hi", ReplyToID: &missing,
	}
	f.engine.MessageSent(view, testRoom, testMembers(1, 2))

	calls := f.sender.sent()
	if len(calls) != 1 {
		t.Fatalf("send attempts = %d, want 1", len(calls))
	}
	if calls[0].title != "Weekend Plans" || calls[0].body != "Alice: hi" {
		t.Fatalf("notification = (%q, %q), want default rendering", calls[0].title, calls[0].body)
	}
}
