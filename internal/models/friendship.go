package models

import "time"

// Friendship statuses. A friendship is created pending and transitions to
// accepted or rejected exactly once; rows are never deleted.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipRejected = "rejected"
)

type Friendship struct {
	ID          int        `json:"id"`
	FromUserID  int        `json:"from_user_id"`
	ToUserID    int        `json:"to_user_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type SendFriendRequest struct {
	ToUserID int `json:"to_user_id" validate:"required,gt=0"`
}

type RespondFriendRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}
