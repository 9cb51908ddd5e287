package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the registered account backing the login form. Chat identity on
// the wire is the username alone; the account exists so the same name maps
// to the same person across sessions.
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `json:"-"` // bcrypt hash, never serialized
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the JWT the client presents on the websocket
// upgrade.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
