package models

import "time"

// Message statuses. Status is a coarse cached field; ReadBy is the
// authoritative per-recipient acknowledgment set. "delivered" exists in the
// schema but no event currently triggers it: messages go from sent to read.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// DeletedMessageText replaces the content of a deleted message. The row is
// never physically removed.
const DeletedMessageText = "This message was deleted"

type Message struct {
	ID             int           `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       int           `json:"sender_id"`
	SenderUsername string        `json:"sender_username,omitempty"`
	Content        string        `json:"content"`
	Type           string        `json:"type"`
	Status         string        `json:"status"`
	ReplyToID      *int          `json:"reply_to_id,omitempty"`
	ReadBy         []ReadReceipt `json:"read_by,omitempty"`
	IsDeleted      bool          `json:"is_deleted"`
	CreatedAt      time.Time     `json:"created_at"`
}

type ReadReceipt struct {
	UserID int       `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,max=1000"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=text image location system"`
	ReplyToID   int    `json:"reply_to_id" validate:"omitempty,gt=0"`
}

// WSMessage is the envelope for every event on the websocket, in both
// directions. Fields are omitempty so each event only carries its own
// payload; the wire names match what the mobile client expects.
type WSMessage struct {
	Event          string     `json:"event"`
	UserID         int        `json:"userId,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Content        string     `json:"content,omitempty"`
	MessageType    string     `json:"messageType,omitempty"`
	ReplyTo        int        `json:"replyTo,omitempty"`
	IsTyping       *bool      `json:"isTyping,omitempty"`
	// Pointers: 0.0 is a legitimate coordinate and must not be dropped.
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty"`
	Timestamp      int64      `json:"timestamp,omitempty"`
	MessageID      int        `json:"messageId,omitempty"`
	Message        *Message   `json:"data,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}
