package handlers

import (
	"context"
	"sync"
	"time"

	"locshare-backend/internal/models"
	"locshare-backend/internal/utils"
)

// Conn is the write side of one websocket connection. *websocket.Conn
// satisfies it; tests substitute a recorder.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Client is one identified connection. The transport hands us connections
// keyed by connection id; the user id is only known once the client sends
// its register event.
type Client struct {
	ID       string
	UserID   int
	Username string

	conn Conn
	mu   sync.Mutex
}

func NewClient(id string, userID int, username string, conn Conn) *Client {
	return &Client{ID: id, UserID: userID, Username: username, conn: conn}
}

// Send writes one JSON payload. The underlying websocket conn is not safe
// for concurrent writes, so every write goes through this per-client lock.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub is the in-memory presence registry plus the per-conversation rooms
// and typing state. It is injected, never a package global, and every
// mutation happens under one lock that is never held across a write.
type Hub struct {
	mu sync.RWMutex
	// presence, indexed both ways: fan-out looks up by user, disconnect
	// cleanup only knows the connection id.
	byUser map[int]*Client
	byConn map[string]*Client
	// conversationID -> connID -> client
	rooms map[string]map[string]*Client
	// conversationID -> userID -> last typing refresh
	typing    map[string]map[int]time.Time
	typingTTL time.Duration
}

func NewHub(typingTTL time.Duration) *Hub {
	return &Hub{
		byUser:    make(map[int]*Client),
		byConn:    make(map[string]*Client),
		rooms:     make(map[string]map[string]*Client),
		typing:    make(map[string]map[int]time.Time),
		typingTTL: typingTTL,
	}
}

// Register records the client as the user's current connection. Last
// register wins: a prior connection for the same user is silently evicted
// from the registry and its room memberships. Triggers a presence-count
// broadcast.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if prev, ok := h.byUser[client.UserID]; ok && prev.ID != client.ID {
		delete(h.byConn, prev.ID)
		h.removeFromRooms(prev.ID)
	}
	h.byUser[client.UserID] = client
	h.byConn[client.ID] = client
	h.mu.Unlock()

	h.BroadcastCount()
}

// Unregister purges the connection. Returns the user id and the
// conversations the user was still marked typing in, so the caller can
// notify those rooms, plus whether the connection was registered at all.
// Triggers a presence-count broadcast when an entry was removed.
func (h *Hub) Unregister(connID string) (userID int, typingIn []string, ok bool) {
	h.mu.Lock()
	client, found := h.byConn[connID]
	if !found {
		// A connection can hold room membership without ever having
		// registered; membership is keyed by conn id, so purge it here too.
		h.removeFromRooms(connID)
		h.mu.Unlock()
		return 0, nil, false
	}
	userID = client.UserID
	delete(h.byConn, connID)
	// Only drop the presence entry if it still points at this connection;
	// a newer registration may have taken over.
	if current, ok := h.byUser[userID]; ok && current.ID == connID {
		delete(h.byUser, userID)
	}
	h.removeFromRooms(connID)
	for conversationID, users := range h.typing {
		if _, ok := users[userID]; ok {
			delete(users, userID)
			typingIn = append(typingIn, conversationID)
			if len(users) == 0 {
				delete(h.typing, conversationID)
			}
		}
	}
	h.mu.Unlock()

	h.BroadcastCount()
	return userID, typingIn, true
}

func (h *Hub) removeFromRooms(connID string) {
	for room, clients := range h.rooms {
		if _, ok := clients[connID]; ok {
			delete(clients, connID)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Lookup returns the user's current connection, if any. An absent user is a
// normal outcome, not an error.
func (h *Hub) Lookup(userID int) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.byUser[userID]
	return client, ok
}

// Count returns the number of distinct registered users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// BroadcastCount pushes the current presence count to every registered
// connection.
func (h *Hub) BroadcastCount() {
	h.mu.RLock()
	count := len(h.byUser)
	clients := make([]*Client, 0, len(h.byConn))
	for _, c := range h.byConn {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	payload := map[string]interface{}{"event": "users:count", "count": count}
	for _, c := range clients {
		utils.LogError(c.Send(payload), "BroadcastCount")
	}
}

// SendToUser delivers one payload to the user's current connection.
// Returns false if the user is not registered.
func (h *Hub) SendToUser(userID int, payload interface{}) bool {
	client, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	utils.LogError(client.Send(payload), "SendToUser")
	return true
}

// JoinRoom subscribes the connection to a conversation's broadcasts.
func (h *Hub) JoinRoom(conversationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[string]*Client)
	}
	h.rooms[conversationID][client.ID] = client
}

func (h *Hub) LeaveRoom(conversationID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[conversationID]; ok {
		delete(clients, connID)
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// IsUserInRoom reports whether any connection of the user has joined the
// conversation's room.
func (h *Hub) IsUserInRoom(userID int, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[conversationID] {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// BroadcastRoom delivers the payload to every subscriber of the
// conversation, optionally excluding one connection. Delivery is best
// effort and not atomic across recipients.
func (h *Hub) BroadcastRoom(conversationID string, payload interface{}, excludeConnID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for id, c := range h.rooms[conversationID] {
		if id == excludeConnID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		utils.LogError(c.Send(payload), "BroadcastRoom")
	}
}

// SetTyping records or clears a user's typing state for a conversation.
// The state is ephemeral and expires after the TTL even without an explicit
// stop, since a client can drop mid-typing.
func (h *Hub) SetTyping(conversationID string, userID int, isTyping bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if isTyping {
		if _, ok := h.typing[conversationID]; !ok {
			h.typing[conversationID] = make(map[int]time.Time)
		}
		h.typing[conversationID][userID] = time.Now()
		return
	}
	if users, ok := h.typing[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.typing, conversationID)
		}
	}
}

// TypingUsers returns the users currently typing in the conversation,
// skipping entries older than the TTL.
func (h *Hub) TypingUsers(conversationID string) []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cutoff := time.Now().Add(-h.typingTTL)
	var users []int
	for userID, refreshed := range h.typing[conversationID] {
		if refreshed.After(cutoff) {
			users = append(users, userID)
		}
	}
	return users
}

// Run sweeps expired typing entries until the context is cancelled,
// notifying each room that the user stopped typing.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.typingTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.expireTyping()
		}
	}
}

func (h *Hub) expireTyping() {
	type expired struct {
		conversationID string
		userID         int
	}

	h.mu.Lock()
	cutoff := time.Now().Add(-h.typingTTL)
	var stale []expired
	for conversationID, users := range h.typing {
		for userID, refreshed := range users {
			if !refreshed.After(cutoff) {
				delete(users, userID)
				stale = append(stale, expired{conversationID, userID})
			}
		}
		if len(users) == 0 {
			delete(h.typing, conversationID)
		}
	}
	h.mu.Unlock()

	notTyping := false
	for _, e := range stale {
		h.BroadcastRoom(e.conversationID, models.WSMessage{
			Event:          "chat:typing",
			UserID:         e.userID,
			ConversationID: e.conversationID,
			IsTyping:       &notTyping,
		}, "")
	}
}
