package http

import (
	"encoding/json"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/proto"
	"github.com/parleychat/parley-server/internal/store"
)

func inboundToCommand(client *core.Client, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeIdentify:
		var data proto.IdentifyData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &data); err != nil {
				return nil, nil, err
			}
		}
		return &core.Command{
			Kind:     core.CommandIdentify,
			Origin:   client,
			Token:    data.Token,
			UserID:   data.UserID,
			UserName: data.Name,
		}, nil, nil

	case proto.InboundTypeRequestRoomData:
		return &core.Command{Kind: core.CommandRequestRoomData, Origin: client}, nil, nil

	case proto.InboundTypeJoinRoom:
		var data proto.RoomRef
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			Origin:   client,
			RoomID:   data.RoomID,
			UserID:   data.UserID,
			UserName: data.UserName,
		}, nil, nil

	case proto.InboundTypeLeaveRoom:
		var data proto.RoomRef
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}, nil
		}
		return &core.Command{Kind: core.CommandLeaveRoom, Origin: client, RoomID: data.RoomID}, nil, nil

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}, nil
		}
		if data.Body == "" && len(data.MediaIDs) == 0 && data.PollID == nil && data.TableID == nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "empty message"}, nil
		}
		return &core.Command{
			Kind:   core.CommandSendMessage,
			Origin: client,
			RoomID: data.RoomID,
			Compose: core.ComposeData{
				Type:      store.MessageType(data.Type),
				Body:      data.Body,
				MediaIDs:  data.MediaIDs,
				PollID:    data.PollID,
				TableID:   data.TableID,
				ReplyToID: data.ReplyToID,
			},
		}, nil, nil

	case proto.InboundTypeEnterChatTab:
		return &core.Command{Kind: core.CommandEnterChatTab, Origin: client}, nil, nil

	case proto.InboundTypeLeaveChatTab:
		return &core.Command{Kind: core.CommandLeaveChatTab, Origin: client}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventLastMessages:
		views := make(map[int64]*proto.MessageView, len(event.LastMessages))
		for roomID, view := range event.LastMessages {
			views[roomID] = viewToProto(view)
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameLastMessage, Data: views}

	case core.EventUnreadCounts:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameUnreadCounts, Data: event.UnreadCounts}

	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameOnlineUsers,
			Data: proto.EventOnlineUsers{
				RoomID:      event.Online.RoomID,
				UserIDs:     event.Online.UserIDs,
				OnlineCount: event.Online.OnlineCount,
				MemberCount: event.Online.MemberCount,
			},
		}

	case core.EventRoomMembers:
		members := make([]proto.RoomMemberView, 0, len(event.Members.Members))
		for _, member := range event.Members.Members {
			members = append(members, proto.RoomMemberView{
				UserID:      member.UserID,
				DisplayName: member.DisplayName,
				IsAdmin:     member.IsAdmin,
				IsOnline:    member.IsOnline,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameRoomMembers,
			Data:  proto.EventRoomMembers{RoomID: event.Members.RoomID, Members: members},
		}

	case core.EventNewMessage:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameNewMessage, Data: viewToProto(event.Message)}

	case core.EventRoomUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameRoomUpdate,
			Data: proto.EventRoomUpdate{
				RoomID:      event.RoomUpdate.RoomID,
				LastMessage: viewToProto(event.RoomUpdate.LastMessage),
				UnreadCount: event.RoomUpdate.UnreadCount,
			},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func viewToProto(view *core.MessageView) *proto.MessageView {
	if view == nil {
		return nil
	}
	return &proto.MessageView{
		ID:         view.ID,
		RoomID:     view.RoomID,
		Type:       string(view.Type),
		Body:       view.Body,
		SenderID:   view.SenderID,
		SenderName: view.SenderName,
		MediaIDs:   view.MediaIDs,
		PollID:     view.PollID,
		TableID:    view.TableID,
		ReplyToID:  view.ReplyToID,
		TS:         view.CreatedAt,
	}
}
