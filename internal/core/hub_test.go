package core

import (
	"context"
	"testing"
	"time"

	"github.com/parleychat/parley-server/internal/store"
)

func startHub(t *testing.T, fs *fakeStore) *Hub {
	t.Helper()
	hub := NewHub(fs, nil, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// connect registers a connection and identifies it, draining the hydration
// events so later assertions start from a clean channel.
func connect(t *testing.T, hub *Hub, connID string, userID int64, name string) *Client {
	t.Helper()
	c := NewClient(connID)
	hub.RegisterClient(c)
	hub.Submit(&Command{Kind: CommandIdentify, Origin: c, UserID: userID, UserName: name})
	mustEvent(t, c.Events, EventUnreadCounts)
	return c
}

func joinRoom(t *testing.T, hub *Hub, c *Client, roomID int64) {
	t.Helper()
	hub.Submit(&Command{Kind: CommandJoinRoom, Origin: c, RoomID: roomID})
	mustEventMatch(t, c.Events, EventOnlineUsers, func(ev *Event) bool {
		return ev.Online.RoomID == roomID
	})
}

func TestHubIdentifyHydrates(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2)
	if _, err := fs.CreateMessage(context.Background(), &store.Message{
		RoomID: 7, SenderID: 2, SenderName: "bob", Type: store.MessageTypeText, Body: "hello",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	hub := startHub(t, fs)
	if err := hub.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}

	c := NewClient("conn-a")
	hub.RegisterClient(c)
	hub.Submit(&Command{Kind: CommandIdentify, Origin: c, UserID: 1, UserName: "alice"})

	ev := mustEvent(t, c.Events, EventLastMessages)
	view, ok := ev.LastMessages[7]
	if !ok {
		t.Fatal("last-message snapshot missing room 7")
	}
	if view.Body != "hello" || view.SenderName != "bob" {
		t.Fatalf("snapshot = %+v, want bob's hello", view)
	}

	ev = mustEvent(t, c.Events, EventUnreadCounts)
	if count, ok := ev.UnreadCounts[7]; !ok || count != 0 {
		t.Fatalf("unread for room 7 = (%d, %v), want seeded zero", count, ok)
	}
}

func TestHubRequestRoomDataResends(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1)

	hub := startHub(t, fs)
	c := connect(t, hub, "conn-a", 1, "alice")

	hub.Submit(&Command{Kind: CommandRequestRoomData, Origin: c})
	mustEvent(t, c.Events, EventLastMessages)
	mustEvent(t, c.Events, EventUnreadCounts)
}

func TestHubJoinUnknownRoom(t *testing.T) {
	fs := newFakeStore()
	hub := startHub(t, fs)
	c := connect(t, hub, "conn-a", 1, "alice")

	hub.Submit(&Command{Kind: CommandJoinRoom, Origin: c, RoomID: 99})

	ev := mustEvent(t, c.Events, EventError)
	if ev.Error.Code != ErrCodeRoomNotFound {
		t.Fatalf("error code = %q, want %q", ev.Error.Code, ErrCodeRoomNotFound)
	}
}

func TestHubJoinBroadcastsPresence(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2)
	hub := startHub(t, fs)

	alice := connect(t, hub, "conn-a", 1, "alice")
	bob := connect(t, hub, "conn-b", 2, "bob")

	joinRoom(t, hub, alice, 7)
	joinRoom(t, hub, bob, 7)

	// Bob's join reaches Alice too.
	ev := mustEventMatch(t, alice.Events, EventOnlineUsers, func(ev *Event) bool {
		return ev.Online.OnlineCount == 2
	})
	if ev.Online.MemberCount != 2 {
		t.Fatalf("member count = %d, want 2", ev.Online.MemberCount)
	}

	members := mustEvent(t, alice.Events, EventRoomMembers)
	if len(members.Members.Members) != 2 {
		t.Fatalf("member list has %d entries, want 2", len(members.Members.Members))
	}
	for _, member := range members.Members.Members {
		if !member.IsOnline {
			t.Fatalf("member %d should be flagged online", member.UserID)
		}
	}
}

func TestHubJoinClearsUnread(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1)
	hub := startHub(t, fs)

	hub.Unread().Increment(1, 7)
	hub.Unread().Increment(1, 7)

	alice := connect(t, hub, "conn-a", 1, "alice")
	laptop := connect(t, hub, "conn-b", 1, "alice")

	hub.Submit(&Command{Kind: CommandJoinRoom, Origin: alice, RoomID: 7})

	// Both of the user's devices learn the room was read.
	for _, c := range []*Client{alice, laptop} {
		ev := mustEvent(t, c.Events, EventUnreadCounts)
		if count := ev.UnreadCounts[7]; count != 0 {
			t.Fatalf("unread in event = %d, want 0", count)
		}
	}
	if got := hub.Unread().Get(1, 7); got != 0 {
		t.Fatalf("unread after join = %d, want 0", got)
	}
}

func TestHubSendMessageFanout(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2, 3) // charlie (3) stays offline
	hub := startHub(t, fs)

	alice := connect(t, hub, "conn-a", 1, "alice")
	bob := connect(t, hub, "conn-b", 2, "bob")
	joinRoom(t, hub, alice, 7)
	joinRoom(t, hub, bob, 7)

	hub.Submit(&Command{
		Kind:    CommandSendMessage,
		Origin:  alice,
		RoomID:  7,
		Compose: ComposeData{Body: "Hello"},
	})

	msg := mustEvent(t, bob.Events, EventNewMessage)
	if msg.Message.Body != "Hello" || msg.Message.SenderName != "alice" {
		t.Fatalf("delivered message = %+v", msg.Message)
	}

	update := mustEvent(t, bob.Events, EventRoomUpdate)
	if update.RoomUpdate.UnreadCount != 0 {
		t.Fatalf("attending member's unread = %d, want 0", update.RoomUpdate.UnreadCount)
	}

	// The originating connection gets the room summary but never an echo
	// of its own message.
	deadline := time.After(2 * time.Second)
	for {
		var ev *Event
		select {
		case ev = <-alice.Events:
		case <-deadline:
			t.Fatal("room update never reached the sender")
		}
		if ev.Kind == EventNewMessage {
			t.Fatal("message echoed back to the originating connection")
		}
		if ev.Kind == EventRoomUpdate {
			break
		}
	}

	if got := hub.Unread().Get(3, 7); got != 1 {
		t.Fatalf("offline member's unread = %d, want 1", got)
	}
	if view := hub.LastMessages().Get(7); view == nil || view.Body != "Hello" {
		t.Fatalf("last-message cache = %+v, want Hello", view)
	}
	if fs.messageCount() != 1 {
		t.Fatalf("persisted %d messages, want 1", fs.messageCount())
	}
}

func TestHubSendMessageAnonymousDropped(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1)
	hub := startHub(t, fs)

	c := NewClient("conn-anon")
	hub.RegisterClient(c)
	hub.Submit(&Command{Kind: CommandSendMessage, Origin: c, RoomID: 7, Compose: ComposeData{Body: "hi"}})

	// A later command completing proves the send was already processed.
	probe := connect(t, hub, "conn-probe", 9, "probe")
	_ = probe

	if fs.messageCount() != 0 {
		t.Fatalf("anonymous message was persisted, count = %d", fs.messageCount())
	}
}

func TestHubDisconnectSecondDeviceStaysOnline(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2)
	hub := startHub(t, fs)

	phone := connect(t, hub, "conn-phone", 1, "alice")
	laptop := connect(t, hub, "conn-laptop", 1, "alice")
	bob := connect(t, hub, "conn-b", 2, "bob")

	joinRoom(t, hub, phone, 7)
	joinRoom(t, hub, laptop, 7)
	joinRoom(t, hub, bob, 7)

	hub.UnregisterClient(phone)
	waitFor(t, func() bool { return hub.Registry().ConnectionCount() == 2 }, "phone never unregistered")
	if !hub.Presence().IsAttending(1, 7) {
		t.Fatal("user should stay online while the laptop attends")
	}

	hub.UnregisterClient(laptop)
	ev := mustEventMatch(t, bob.Events, EventOnlineUsers, func(ev *Event) bool {
		return ev.Online.OnlineCount == 1
	})
	if ev.Online.MemberCount != 2 {
		t.Fatalf("member count = %d, want 2", ev.Online.MemberCount)
	}

	// The hub closes the dropped connection's channel once drained.
	waitFor(t, func() bool {
		for {
			select {
			case _, ok := <-phone.Events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, "phone channel never closed")
}

func TestHubLeaveRoomBroadcastsOnce(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2)
	hub := startHub(t, fs)

	alice := connect(t, hub, "conn-a", 1, "alice")
	bob := connect(t, hub, "conn-b", 2, "bob")
	joinRoom(t, hub, alice, 7)
	joinRoom(t, hub, bob, 7)

	hub.Submit(&Command{Kind: CommandLeaveRoom, Origin: alice, RoomID: 7})

	mustEventMatch(t, bob.Events, EventOnlineUsers, func(ev *Event) bool {
		return ev.Online.OnlineCount == 1
	})
	if hub.Presence().IsAttending(1, 7) {
		t.Fatal("alice should no longer be attending")
	}
}

func TestHubLeaveChatTabClearsRooms(t *testing.T) {
	fs := newFakeStore()
	fs.addRoom(7, "general", 1, 2)
	fs.addRoom(9, "random", 1)
	hub := startHub(t, fs)

	alice := connect(t, hub, "conn-a", 1, "alice")
	bob := connect(t, hub, "conn-b", 2, "bob")

	hub.Submit(&Command{Kind: CommandEnterChatTab, Origin: alice})
	joinRoom(t, hub, alice, 7)
	joinRoom(t, hub, alice, 9)
	joinRoom(t, hub, bob, 7)

	hub.Submit(&Command{Kind: CommandLeaveChatTab, Origin: alice})

	mustEventMatch(t, bob.Events, EventOnlineUsers, func(ev *Event) bool {
		return ev.Online.RoomID == 7 && ev.Online.OnlineCount == 1
	})
	waitFor(t, func() bool {
		return !hub.Presence().IsAttending(1, 7) && !hub.Presence().IsAttending(1, 9)
	}, "alice still attending after leaving the chat tab")
}
