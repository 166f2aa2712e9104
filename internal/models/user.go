package models

import (
	"time"
)

// Роли пользователей.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User — учётная запись администратора/пользователя панели.
type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex:uniq_users_username" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Role         string    `gorm:"size:16;not null;default:user" json:"role"` // admin|user
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
