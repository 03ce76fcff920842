package models

import (
	"time"
)

const (
	CampaignDraft     = "draft"
	CampaignSending   = "sending"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"

	AudienceClients = "clients"
	AudienceLeads   = "leads"
	AudienceCustom  = "custom"

	SMSPending = "pending"
	SMSSent    = "sent"
	SMSFailed  = "failed"
)

// SMSCampaign is a one-way text blast to an audience.
type SMSCampaign struct {
	Base
	Name         string     `gorm:"size:255;not null" json:"name"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	Audience     string     `gorm:"size:20;not null;check:audience IN ('clients', 'leads', 'custom')" json:"audience"`
	CustomPhones string     `gorm:"type:text" json:"custom_phones,omitempty"` // comma separated, custom audience only
	Status       string     `gorm:"not null;default:'draft';check:status IN ('draft', 'sending', 'completed', 'failed')" json:"status"`
	Recipients   int        `gorm:"default:0" json:"recipients"`
	SentCount    int        `gorm:"default:0" json:"sent_count"`
	FailedCount  int        `gorm:"default:0" json:"failed_count"`
	CreatedBy    string     `gorm:"type:uuid" json:"created_by,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Relationships
	Messages []SMSMessage `gorm:"foreignKey:CampaignID" json:"messages,omitempty"`
}

// SMSMessage records the outcome of one campaign send.
type SMSMessage struct {
	Base
	CampaignID        string     `gorm:"type:uuid;not null;index" json:"campaign_id"`
	To                string     `gorm:"size:32;not null" json:"to"`
	Status            string     `gorm:"not null;default:'pending';check:status IN ('pending', 'sent', 'failed')" json:"status"`
	ProviderMessageID string     `gorm:"size:100" json:"provider_message_id,omitempty"`
	Error             string     `gorm:"type:text" json:"error,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}
