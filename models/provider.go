package models

import (
	"github.com/shopspring/decimal"
)

// Provider is a practitioner shown on the public site.
type Provider struct {
	Base
	Name        string `gorm:"size:150;not null" json:"name"`
	Slug        string `gorm:"size:150;uniqueIndex;not null" json:"slug"`
	Title       string `gorm:"size:150" json:"title,omitempty"`
	Bio         string `gorm:"type:text" json:"bio,omitempty"`
	PhotoURL    string `gorm:"size:500" json:"photo_url,omitempty"`
	Specialties string `gorm:"size:500" json:"specialties,omitempty"` // comma separated
	SortOrder   int    `gorm:"default:0" json:"sort_order"`
	IsActive    bool   `gorm:"not null" json:"is_active"`

	// Relationships
	Media []ProviderMedia `gorm:"foreignKey:ProviderID" json:"media,omitempty"`
}

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"

	MediaStatusActive   = "active"
	MediaStatusArchived = "archived"
)

// ProviderMedia is a before/after image or a Stream video attached to a provider.
type ProviderMedia struct {
	Base
	ProviderID string  `gorm:"type:uuid;not null;index" json:"provider_id"`
	Kind       string  `gorm:"size:20;not null;check:kind IN ('image', 'video')" json:"kind"`
	URL        string  `gorm:"size:500" json:"url,omitempty"`
	VideoID    *string `gorm:"type:uuid" json:"video_id,omitempty"`
	Caption    string  `gorm:"size:500" json:"caption,omitempty"`
	SortOrder  int     `gorm:"default:0" json:"sort_order"`
	Status     string  `gorm:"not null;default:'active';check:status IN ('active', 'archived')" json:"status"`

	// Relationships
	Video *Video `gorm:"foreignKey:VideoID" json:"video,omitempty"`
}

// Treatment is a bookable service in the catalog.
type Treatment struct {
	Base
	Slug            string          `gorm:"size:150;uniqueIndex;not null" json:"slug"`
	Name            string          `gorm:"size:150;not null" json:"name"`
	Category        string          `gorm:"size:100;index" json:"category,omitempty"`
	Summary         string          `gorm:"type:text" json:"summary,omitempty"`
	PriceFrom       decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"price_from"`
	DurationMinutes int             `gorm:"default:60" json:"duration_minutes"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
}

// Location backs the per-city SEO landing pages.
type Location struct {
	Base
	City     string `gorm:"size:100;not null" json:"city"`
	State    string `gorm:"size:50" json:"state,omitempty"`
	Slug     string `gorm:"size:150;uniqueIndex;not null" json:"slug"`
	Headline string `gorm:"size:255" json:"headline,omitempty"`
	Intro    string `gorm:"type:text" json:"intro,omitempty"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}
