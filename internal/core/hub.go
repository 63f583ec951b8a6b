package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

// IdentityVerifier resolves an auth token to a user identity during identify.
type IdentityVerifier interface {
	Verify(token string) (userID int64, username string, err error)
}

// Hub owns the realtime state and processes one command at a time on a single
// goroutine, reproducing single-writer semantics for all registries. Handlers
// that touch storage do so inline; the notification path runs detached.
type Hub struct {
	commands chan *Command

	registry     *Registry
	presence     *Presence
	unread       *Unread
	lastMessages *LastMessages
	members      *MembershipCache
	fanout       *Fanout

	store    store.Store
	verifier IdentityVerifier
	log      *zerolog.Logger
}

// NewHub constructs the hub and its owned state. notifier may be nil when
// push notifications are disabled.
func NewHub(st store.Store, verifier IdentityVerifier, notifier Notifier, logger *zerolog.Logger) *Hub {
	registry := NewRegistry()
	presence := NewPresence(registry)
	unread := NewUnread()
	lastMessages := NewLastMessages()

	return &Hub{
		commands:     make(chan *Command, 256),
		registry:     registry,
		presence:     presence,
		unread:       unread,
		lastMessages: lastMessages,
		members:      NewMembershipCache(st),
		fanout:       NewFanout(registry, presence, unread, lastMessages, notifier, logger),
		store:        st,
		verifier:     verifier,
		log:          logger,
	}
}

// SetNotifier installs the notification engine. Must be called before Run;
// the engine is built after the hub because it reads the hub's presence.
func (h *Hub) SetNotifier(n Notifier) {
	h.fanout.notifier = n
}

// Registry exposes the connection registry for read access.
func (h *Hub) Registry() *Registry { return h.registry }

// Presence exposes the presence tracker for read access.
func (h *Hub) Presence() *Presence { return h.presence }

// Unread exposes the unread counters for read access.
func (h *Hub) Unread() *Unread { return h.unread }

// LastMessages exposes the last-message cache for read access.
func (h *Hub) LastMessages() *LastMessages { return h.lastMessages }

// InvalidateRoomMembers drops the cached member list for a room, called by
// the REST layer after membership changes.
func (h *Hub) InvalidateRoomMembers(roomID int64) {
	h.members.Invalidate(roomID)
}

// RegisterClient enqueues registration of a new connection.
func (h *Hub) RegisterClient(c *Client) {
	h.commands <- &Command{Kind: commandRegister, Origin: c}
}

// UnregisterClient enqueues removal of a connection on transport disconnect.
func (h *Hub) UnregisterClient(c *Client) {
	h.commands <- &Command{Kind: commandUnregister, Origin: c}
}

// Submit enqueues a client command.
func (h *Hub) Submit(cmd *Command) {
	h.commands <- cmd
}

// Run processes commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.dispatch(ctx, cmd)
		}
	}
}

// dispatch shields the loop from a panicking handler: the event is lost,
// the dispatcher keeps serving.
func (h *Hub) dispatch(ctx context.Context, cmd *Command) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Int("kind", int(cmd.Kind)).Msg("command handler panicked")
		}
	}()

	switch cmd.Kind {
	case commandRegister:
		h.handleRegister(cmd.Origin)
	case commandUnregister:
		h.handleUnregister(ctx, cmd.Origin)
	case CommandIdentify:
		h.handleIdentify(ctx, cmd)
	case CommandRequestRoomData:
		h.handleRequestRoomData(ctx, cmd.Origin)
	case CommandJoinRoom:
		h.handleJoinRoom(ctx, cmd)
	case CommandLeaveRoom:
		h.handleLeaveRoom(ctx, cmd)
	case CommandSendMessage:
		h.handleSendMessage(ctx, cmd)
	case CommandEnterChatTab:
		h.handleEnterChatTab(cmd.Origin)
	case CommandLeaveChatTab:
		h.handleLeaveChatTab(ctx, cmd.Origin)
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command kind")
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.registry.Register(c)
	h.log.Debug().Str("conn_id", c.ID).Int("connections", h.registry.ConnectionCount()).Msg("connection registered")
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	userID, lastConnection := h.registry.Unregister(c)

	offline := h.presence.DropConnection(userID, c)
	for _, roomID := range offline {
		h.broadcastPresence(ctx, roomID)
	}

	// Hub is the only sender on Events, so closing here is safe.
	close(c.Events)

	h.log.Debug().
		Str("conn_id", c.ID).
		Int64("user_id", userID).
		Bool("fully_offline", lastConnection).
		Int("rooms_left", len(offline)).
		Msg("connection unregistered")
}

func (h *Hub) handleIdentify(ctx context.Context, cmd *Command) {
	userID := cmd.UserID
	name := cmd.UserName

	if cmd.Token != "" {
		if h.verifier == nil {
			h.log.Warn().Str("conn_id", cmd.Origin.ID).Msg("identify with token but no verifier configured")
			return
		}
		verifiedID, verifiedName, err := h.verifier.Verify(cmd.Token)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", cmd.Origin.ID).Msg("identify token rejected")
			return
		}
		userID, name = verifiedID, verifiedName
	}

	// Empty identity: log only, the connection stays anonymous.
	if userID == 0 {
		h.log.Warn().Str("conn_id", cmd.Origin.ID).Msg("identify without user id ignored")
		return
	}

	h.registry.Identify(cmd.Origin, userID, name)
	h.log.Info().Str("conn_id", cmd.Origin.ID).Int64("user_id", userID).Msg("connection identified")

	h.sendRoomData(ctx, cmd.Origin, userID)
}

func (h *Hub) handleRequestRoomData(ctx context.Context, c *Client) {
	userID, _, ok := h.registry.UserOf(c)
	if !ok {
		h.log.Warn().Str("conn_id", c.ID).Msg("room data requested by anonymous connection")
		return
	}
	h.sendRoomData(ctx, c, userID)
}

// sendRoomData hydrates one connection with last-message snapshots for the
// user's rooms plus the unread map.
func (h *Hub) sendRoomData(ctx context.Context, c *Client, userID int64) {
	rooms, err := h.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list rooms for hydration")
		return
	}

	roomIDs := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}

	c.Send(&Event{Kind: EventLastMessages, LastMessages: h.lastMessages.SnapshotFor(roomIDs)})
	c.Send(&Event{Kind: EventUnreadCounts, UnreadCounts: h.unread.Snapshot(userID)})
}

func (h *Hub) handleJoinRoom(ctx context.Context, cmd *Command) {
	userID, _, ok := h.registry.UserOf(cmd.Origin)
	if !ok {
		// Legacy clients identify implicitly through the join payload.
		if cmd.UserID == 0 {
			h.log.Warn().Str("conn_id", cmd.Origin.ID).Msg("join from anonymous connection dropped")
			return
		}
		h.registry.Identify(cmd.Origin, cmd.UserID, cmd.UserName)
		userID = cmd.UserID
	}

	if _, err := h.store.GetRoomByID(ctx, cmd.RoomID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", cmd.RoomID).Msg("join for unknown room")
		cmd.Origin.Send(&Event{Kind: EventError, Error: coreError(ErrCodeRoomNotFound, "room not found")})
		return
	}

	newlyOnline := h.presence.Join(userID, cmd.Origin, cmd.RoomID)
	h.unread.Clear(userID, cmd.RoomID)

	// Joining marks the room as read on every one of the user's devices.
	unreadEvent := &Event{Kind: EventUnreadCounts, UnreadCounts: h.unread.Snapshot(userID)}
	for _, conn := range h.registry.ConnectionsOf(userID) {
		conn.Send(unreadEvent)
	}

	h.broadcastPresence(ctx, cmd.RoomID)

	h.log.Debug().
		Int64("user_id", userID).
		Int64("room_id", cmd.RoomID).
		Bool("newly_online", newlyOnline).
		Msg("room joined")
}

func (h *Hub) handleLeaveRoom(ctx context.Context, cmd *Command) {
	userID, _, ok := h.registry.UserOf(cmd.Origin)
	if !ok {
		h.log.Warn().Str("conn_id", cmd.Origin.ID).Msg("leave from anonymous connection dropped")
		return
	}

	if h.presence.Leave(userID, cmd.Origin, cmd.RoomID) {
		h.broadcastPresence(ctx, cmd.RoomID)
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, cmd *Command) {
	userID, name, ok := h.registry.UserOf(cmd.Origin)
	if !ok {
		h.log.Warn().Str("conn_id", cmd.Origin.ID).Msg("message from anonymous connection dropped")
		return
	}

	msgType := cmd.Compose.Type
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	msg, err := h.store.CreateMessage(ctx, &store.Message{
		RoomID:     cmd.RoomID,
		SenderID:   userID,
		SenderName: name,
		Type:       msgType,
		Body:       cmd.Compose.Body,
		MediaIDs:   cmd.Compose.MediaIDs,
		PollID:     cmd.Compose.PollID,
		TableID:    cmd.Compose.TableID,
		ReplyToID:  cmd.Compose.ReplyToID,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Int64("user_id", userID).Msg("failed to persist message")
		cmd.Origin.Send(&Event{Kind: EventError, Error: coreError(ErrCodeStorage, "message not saved")})
		return
	}

	room, err := h.store.GetRoomByID(ctx, cmd.RoomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Msg("failed to load room for fanout")
		return
	}

	// No members resolved means no fanout to this room; the dispatcher
	// keeps serving other events.
	members, err := h.members.Members(ctx, cmd.RoomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Msg("failed to resolve members for fanout")
		return
	}

	h.fanout.Dispatch(room, msg, members, cmd.Origin)
}

func (h *Hub) handleEnterChatTab(c *Client) {
	h.presence.EnterChatTab(c)
}

func (h *Hub) handleLeaveChatTab(ctx context.Context, c *Client) {
	h.presence.LeaveChatTab(c)

	userID, _, _ := h.registry.UserOf(c)
	offline := h.presence.ClearJoined(userID, c)
	for _, roomID := range offline {
		h.broadcastPresence(ctx, roomID)
	}
}

// broadcastPresence sends the online-user list and the full member list with
// online flags to every connection currently joined to the room.
func (h *Hub) broadcastPresence(ctx context.Context, roomID int64) {
	members, err := h.members.Members(ctx, roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to resolve members for presence broadcast")
		return
	}

	online := h.presence.OnlineInRoom(roomID)
	onlineSet := make(map[int64]struct{}, len(online))
	for _, userID := range online {
		onlineSet[userID] = struct{}{}
	}

	memberInfos := make([]MemberInfo, 0, len(members))
	for _, member := range members {
		_, isOnline := onlineSet[member.UserID]
		memberInfos = append(memberInfos, MemberInfo{
			UserID:      member.UserID,
			DisplayName: member.DisplayName,
			IsAdmin:     member.IsAdmin,
			IsOnline:    isOnline,
		})
	}

	onlineEvent := &Event{Kind: EventOnlineUsers, Online: &OnlineUsersData{
		RoomID:      roomID,
		UserIDs:     online,
		OnlineCount: len(online),
		MemberCount: len(members),
	}}
	membersEvent := &Event{Kind: EventRoomMembers, Members: &RoomMembersData{
		RoomID:  roomID,
		Members: memberInfos,
	}}

	for _, userID := range online {
		for _, conn := range h.registry.ConnectionsOf(userID) {
			if !h.presence.ConnAttending(conn, roomID) {
				continue
			}
			conn.Send(onlineEvent)
			conn.Send(membersEvent)
		}
	}
}

// Rehydrate performs the best-effort warm start: last-message snapshots are
// seeded from storage and absent unread counters are set to zero. Historical
// unread counts are not replayed.
func (h *Hub) Rehydrate(ctx context.Context) error {
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return err
	}

	seededMessages := 0
	for _, room := range rooms {
		latest, err := h.store.LatestRoomMessage(ctx, room.ID)
		if err != nil {
			h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("failed to load latest message")
		} else if latest != nil {
			h.lastMessages.Set(ViewFromMessage(latest))
			seededMessages++
		}

		members, err := h.members.Members(ctx, room.ID)
		if err != nil {
			h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("failed to load members during rehydration")
			continue
		}
		for _, member := range members {
			h.unread.Seed(member.UserID, room.ID)
		}
	}

	h.log.Info().Int("rooms", len(rooms)).Int("snapshots", seededMessages).Msg("caches rehydrated")
	return nil
}
