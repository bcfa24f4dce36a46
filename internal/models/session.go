package models

import "time"

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
