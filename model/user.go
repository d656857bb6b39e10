package model

import (
	"database/sql"
	"time"
)

// UserRole 用户角色：artist（艺人）、engineer（录音师）、producer（制作人）、owner（琴行/棚主）
type UserRole string

const (
	RoleArtist   UserRole = "artist"
	RoleEngineer UserRole = "engineer"
	RoleProducer UserRole = "producer"
	RoleOwner    UserRole = "owner"
)

// User represents a registered user of the app. A user may act in more than
// one role (e.g. a producer who also engineers sessions); Role records the
// primary one chosen at registration.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	DisplayName  sql.NullString `json:"displayName,omitempty"`
	Role         UserRole       `json:"role"`
	Phone        sql.NullString `json:"phone,omitempty"`
	AvatarURL    sql.NullString `json:"avatarUrl,omitempty"`
	Bio          sql.NullString `json:"bio,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Name returns the user's display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName.Valid && u.DisplayName.String != "" {
		return u.DisplayName.String
	}
	return u.Username
}
