package models

import "time"

const (
	PlanFree = "free"
	PlanPaid = "paid"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Plan         string    `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// UserInfo is the public view of a user sent to other clients
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status,omitempty"` // "online" or "offline"
}
