package models

import (
	"time"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

type User struct {
	Base
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:255" json:"-"` // Hashed password (excluded from JSON)
	FullName string `gorm:"size:255" json:"full_name,omitempty"`
	Phone    string `gorm:"size:32" json:"phone,omitempty"`
	Role     string `gorm:"not null;default:'client';check:role IN ('client', 'admin')" json:"role"`

	// Relationships
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
}

// IsAdmin reports whether the user may use the back office.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type RefreshToken struct {
	Base
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

type PermanentToken struct {
	Base
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Token  string `gorm:"uniqueIndex;not null" json:"-"`
}
