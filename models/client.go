package models

import (
	"time"
)

const (
	ClientStatusActive   = "active"
	ClientStatusArchived = "archived"
)

// Client is a spa client. UserID is set once the client has a portal login;
// clients entered by staff start without one.
type Client struct {
	Base
	UserID      *string    `gorm:"type:uuid;uniqueIndex" json:"user_id,omitempty"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100" json:"last_name"`
	Email       string     `gorm:"size:255;index" json:"email"`
	Phone       string     `gorm:"size:32" json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	SMSOptIn    bool       `gorm:"default:false" json:"sms_opt_in"`
	Status      string     `gorm:"not null;default:'active';check:status IN ('active', 'archived')" json:"status"`

	// Relationships
	User         *User         `gorm:"foreignKey:UserID" json:"-"`
	Appointments []Appointment `gorm:"foreignKey:ClientID" json:"appointments,omitempty"`
	Consents     []ConsentForm `gorm:"foreignKey:ClientID" json:"consents,omitempty"`
}

// FullName joins first and last name.
func (c *Client) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
