package models

import "time"

type Conversation struct {
	ID           string    `json:"id"`
	CreatedBy    int       `json:"created_by"`
	IsActive     bool      `json:"is_active"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Participants []int     `json:"participants,omitempty"`
	LastMessage  *Message  `json:"last_message,omitempty"`
}

type CreateConversationRequest struct {
	RecipientID int `json:"recipient_id" validate:"required,gt=0"`
}

type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	IsNew          bool   `json:"is_new"`
}

// ConversationListItem is one entry of a user's conversation list, shaped
// for the client's chat overview screen.
type ConversationListItem struct {
	ID              string    `json:"id"`
	OtherUserID     int       `json:"other_user_id"`
	OtherUsername   string    `json:"other_username"`
	OtherUserStatus string    `json:"other_user_status,omitempty"`
	LastActivity    time.Time `json:"last_activity"`
	LastMessage     *Message  `json:"last_message,omitempty"`
}
