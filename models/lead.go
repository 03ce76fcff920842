package models

import (
	"time"
)

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadConverted = "converted"
	LeadArchived  = "archived"
)

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadNew, LeadContacted, LeadConverted, LeadArchived:
		return true
	}
	return false
}

// Lead is a visitor who handed over contact details, usually to unlock a
// gated tool or a blueprint.
type Lead struct {
	Base
	Email     string `gorm:"size:255;index" json:"email,omitempty"`
	Phone     string `gorm:"size:32" json:"phone,omitempty"`
	FirstName string `gorm:"size:100" json:"first_name,omitempty"`
	Source    string `gorm:"size:100;not null;index" json:"source"`
	Message   string `gorm:"type:text" json:"message,omitempty"`
	SMSOptIn  bool   `gorm:"default:false" json:"sms_opt_in"`
	IPAddress string `gorm:"size:64" json:"-"`
	UserAgent string `gorm:"size:500" json:"-"`
	Status    string `gorm:"not null;default:'new';check:status IN ('new', 'contacted', 'converted', 'archived')" json:"status"`
}

const (
	ConsentPending = "pending"
	ConsentSigned  = "signed"
	ConsentRevoked = "revoked"
)

// ConsentForm is a consent document sent to a client for signature.
type ConsentForm struct {
	Base
	ClientID      string     `gorm:"type:uuid;not null;index" json:"client_id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Body          string     `gorm:"type:text;not null" json:"body"`
	Status        string     `gorm:"not null;default:'pending';check:status IN ('pending', 'signed', 'revoked')" json:"status"`
	RequestedBy   string     `gorm:"type:uuid" json:"requested_by,omitempty"`
	SignatureName string     `gorm:"size:255" json:"signature_name,omitempty"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	SignedIP      string     `gorm:"size:64" json:"-"`

	// Relationships
	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}
