package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is a dashboard account. Roles is a plain list; "admin" grants access
// to the moderation and scoring endpoints.
type User struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Email        string                      `gorm:"uniqueIndex" json:"email"`
	Name         string                      `json:"name"`
	PasswordHash string                      `json:"-"`
	Roles        datatypes.JSONSlice[string] `json:"roles"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// Session is an issued login token with the role list snapshotted at login.
type Session struct {
	Token     string                      `gorm:"primaryKey" json:"token"`
	UserID    uint                        `gorm:"index" json:"user_id"`
	Roles     datatypes.JSONSlice[string] `json:"roles"`
	ExpiresAt time.Time                   `json:"expires_at"`
	CreatedAt time.Time                   `json:"created_at"`
}

// Subscription is a newsletter signup with optional category preferences.
// Empty Categories means every category.
type Subscription struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	Email      string                      `gorm:"uniqueIndex" json:"email"`
	Categories datatypes.JSONSlice[string] `json:"categories"`
	CreatedAt  time.Time                   `json:"created_at"`
}
