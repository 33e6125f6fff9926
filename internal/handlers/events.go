package handlers

import (
	"context"
	"log"
	"time"

	"locshare-backend/internal/models"
	"locshare-backend/internal/services"
	"locshare-backend/internal/utils"
)

// EventHandler dispatches the named events arriving on a websocket
// connection and owns the fan-out on the way back down.
type EventHandler struct {
	hub       *Hub
	chat      *services.ChatService
	friends   *services.FriendService
	locations *services.LocationService
}

func NewEventHandler(hub *Hub, chat *services.ChatService, friends *services.FriendService, locations *services.LocationService) *EventHandler {
	return &EventHandler{hub: hub, chat: chat, friends: friends, locations: locations}
}

func (h *EventHandler) Handle(sess *session, raw []byte) {
	var msg models.WSMessage
	if err := utils.SafeJSONParse(raw, &msg); err != nil {
		utils.LogError(err, "JSON Parse")
		return
	}

	switch msg.Event {
	case "register":
		h.handleRegister(sess, &msg)
	case "location:update":
		h.handleLocationUpdate(sess, &msg)
	case "chat:join":
		h.handleJoin(sess, &msg)
	case "chat:leave":
		h.hub.LeaveRoom(msg.ConversationID, sess.client.ID)
	case "chat:message":
		h.handleChatMessage(sess, &msg)
	case "chat:typing":
		h.handleTyping(sess, &msg)
	case "chat:read":
		h.handleRead(sess, &msg)
	default:
		log.Printf("Unknown event: %s", msg.Event)
	}
}

// Disconnect purges the connection from the registry and tells any room the
// user was still typing in that they stopped.
func (h *EventHandler) Disconnect(sess *session) {
	userID, typingIn, ok := h.hub.Unregister(sess.client.ID)
	if !ok {
		return
	}
	notTyping := false
	for _, conversationID := range typingIn {
		h.hub.BroadcastRoom(conversationID, models.WSMessage{
			Event:          "chat:typing",
			UserID:         userID,
			ConversationID: conversationID,
			IsTyping:       &notTyping,
		}, "")
	}
}

func (h *EventHandler) sendError(sess *session, message string) {
	utils.LogError(sess.client.Send(map[string]interface{}{
		"event":   "chat:error",
		"message": message,
	}), "sendError")
}

// handleRegister moves the session from connected to identified. The
// claimed user id, if present, must match the authenticated one.
func (h *EventHandler) handleRegister(sess *session, msg *models.WSMessage) {
	if msg.UserID != 0 && msg.UserID != sess.client.UserID {
		h.sendError(sess, "not authorized")
		return
	}
	h.hub.Register(sess.client)
	sess.identified = true
}

// handleLocationUpdate persists the sample unconditionally, then unicasts
// it to each accepted friend who is currently registered. A persistence
// failure drops the sample silently; an offline friend is a normal outcome.
func (h *EventHandler) handleLocationUpdate(sess *session, msg *models.WSMessage) {
	if !sess.identified {
		h.sendError(sess, "not registered")
		return
	}
	if msg.Lat == nil || msg.Lng == nil {
		h.sendError(sess, "invalid location")
		return
	}

	capturedAt := time.Now().UTC()
	if msg.Timestamp != 0 {
		capturedAt = time.UnixMilli(msg.Timestamp).UTC()
	}
	sample := &models.LocationSample{
		UserID:     sess.client.UserID,
		Latitude:   *msg.Lat,
		Longitude:  *msg.Lng,
		Accuracy:   msg.Accuracy,
		CapturedAt: capturedAt,
	}

	ctx := context.Background()
	if err := h.locations.SaveSample(ctx, sample); err != nil {
		utils.LogError(err, "SaveSample")
		return
	}

	friendIDs, err := h.friends.ListFriendIDs(ctx, sess.client.UserID)
	if err != nil {
		// Fail closed: without the friend list there is no fan-out.
		utils.LogError(err, "ListFriendIDs")
		return
	}

	payload := models.WSMessage{
		Event:     "location:receive",
		UserID:    sess.client.UserID,
		Lat:       msg.Lat,
		Lng:       msg.Lng,
		Accuracy:  msg.Accuracy,
		Timestamp: sample.CapturedAt.UnixMilli(),
	}
	for _, friendID := range friendIDs {
		h.hub.SendToUser(friendID, payload)
	}
}

// handleJoin subscribes the connection to a conversation's room. Membership
// is checked here once; later room broadcasts trust the subscription.
func (h *EventHandler) handleJoin(sess *session, msg *models.WSMessage) {
	if !sess.identified {
		h.sendError(sess, "not registered")
		return
	}
	if msg.ConversationID == "" {
		return
	}
	ok, err := h.chat.IsParticipant(context.Background(), msg.ConversationID, sess.client.UserID)
	if err != nil {
		utils.LogError(err, "IsParticipant")
		h.sendError(sess, "conversation not found")
		return
	}
	if !ok {
		h.sendError(sess, "conversation not found")
		return
	}
	h.hub.JoinRoom(msg.ConversationID, sess.client)
}

func (h *EventHandler) handleChatMessage(sess *session, msg *models.WSMessage) {
	saved, err := h.chat.SendMessage(context.Background(), msg.ConversationID, sess.client.UserID, msg.Content, msg.MessageType, msg.ReplyTo)
	if err != nil {
		h.chatError(sess, err, "SendMessage")
		return
	}

	h.BroadcastMessage(saved)

	// Ack to the sender only.
	utils.LogError(sess.client.Send(models.WSMessage{
		Event:     "chat:message:sent",
		MessageID: saved.ID,
	}), "chat:message:sent")
}

// BroadcastMessage fans a persisted message out to the conversation's room
// and nudges online participants who are not subscribed. Shared by the
// websocket and HTTP send paths.
func (h *EventHandler) BroadcastMessage(saved *models.Message) {
	h.hub.BroadcastRoom(saved.ConversationID, models.WSMessage{
		Event:          "chat:message",
		ConversationID: saved.ConversationID,
		Message:        saved,
	}, "")

	go h.notifyNewMessage(saved)
}

// notifyNewMessage nudges participants who are online but not subscribed to
// the conversation's room, so their conversation list can update.
func (h *EventHandler) notifyNewMessage(msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	participants, err := h.chat.GetParticipants(ctx, msg.ConversationID)
	if err != nil {
		utils.LogError(err, "GetParticipants")
		return
	}

	payload := models.WSMessage{
		Event:          "chat:message:new",
		ConversationID: msg.ConversationID,
		UserID:         msg.SenderID,
		Timestamp:      msg.CreatedAt.UnixMilli(),
	}
	for _, participantID := range participants {
		if participantID == msg.SenderID {
			continue
		}
		if h.hub.IsUserInRoom(participantID, msg.ConversationID) {
			continue // already got the room broadcast
		}
		h.hub.SendToUser(participantID, payload)
	}
}

// handleTyping relays typing state to the other room subscribers. Only
// participants can be in the room, so no membership round trip here. The
// hub keeps the state with a TTL in case the stop event never arrives.
func (h *EventHandler) handleTyping(sess *session, msg *models.WSMessage) {
	if !sess.identified {
		h.sendError(sess, "not registered")
		return
	}
	if msg.ConversationID == "" || msg.IsTyping == nil {
		return
	}
	h.hub.SetTyping(msg.ConversationID, sess.client.UserID, *msg.IsTyping)
	h.hub.BroadcastRoom(msg.ConversationID, models.WSMessage{
		Event:          "chat:typing",
		UserID:         sess.client.UserID,
		ConversationID: msg.ConversationID,
		IsTyping:       msg.IsTyping,
	}, sess.client.ID)
}

func (h *EventHandler) handleRead(sess *session, msg *models.WSMessage) {
	readAt, _, err := h.chat.MarkAsRead(context.Background(), msg.ConversationID, sess.client.UserID)
	if err != nil {
		h.chatError(sess, err, "MarkAsRead")
		return
	}
	h.hub.BroadcastRoom(msg.ConversationID, models.WSMessage{
		Event:          "chat:read",
		UserID:         sess.client.UserID,
		ConversationID: msg.ConversationID,
		ReadAt:         &readAt,
	}, "")
}

// chatError surfaces expected rejections with their message and hides
// everything else behind a generic failure.
func (h *EventHandler) chatError(sess *session, err error, context string) {
	switch err {
	case services.ErrNotFriends, services.ErrConversationNotFound, services.ErrMessageNotFound,
		services.ErrEmptyContent, services.ErrContentTooLong, services.ErrInvalidMessageType:
		h.sendError(sess, err.Error())
	default:
		utils.LogError(err, context)
		h.sendError(sess, "something went wrong")
	}
}
