package models

import (
	"time"
)

// CMSSection is one admin-configurable block on a public page. Content is a
// JSON object whose shape depends on SectionType.
type CMSSection struct {
	Base
	Page        string `gorm:"size:100;not null;index:idx_cms_page_position" json:"page"`
	SectionType string `gorm:"size:50;not null" json:"section_type"`
	Title       string `gorm:"size:255" json:"title,omitempty"`
	Position    int    `gorm:"not null;default:0;index:idx_cms_page_position" json:"position"`
	Content     string `gorm:"type:text;not null" json:"content"`
	IsPublished bool   `gorm:"default:false" json:"is_published"`
}

const (
	VideoPendingUpload = "pending_upload"
	VideoProcessing    = "processing"
	VideoReady         = "ready"
	VideoError         = "error"
)

// Video is a Cloudflare Stream asset uploaded through a direct upload URL.
type Video struct {
	Base
	StreamUID    string     `gorm:"size:64;uniqueIndex;not null" json:"stream_uid"`
	Title        string     `gorm:"size:255" json:"title,omitempty"`
	Status       string     `gorm:"not null;default:'pending_upload';check:status IN ('pending_upload', 'processing', 'ready', 'error')" json:"status"`
	PlaybackHLS  string     `gorm:"size:500" json:"playback_hls,omitempty"`
	PlaybackDash string     `gorm:"size:500" json:"playback_dash,omitempty"`
	ThumbnailURL string     `gorm:"size:500" json:"thumbnail_url,omitempty"`
	Duration     float64    `json:"duration,omitempty"`
	UploadedBy   string     `gorm:"type:uuid;index" json:"uploaded_by,omitempty"`
	ClientID     *string    `gorm:"type:uuid;index" json:"client_id,omitempty"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
}

// RateLimitCounter counts requests per ip and feature inside one window.
// The table is written by the increment_rate_limit database function.
type RateLimitCounter struct {
	IPAddress   string    `gorm:"size:64;primaryKey" json:"ip_address"`
	Feature     string    `gorm:"size:50;primaryKey" json:"feature"`
	WindowStart time.Time `gorm:"primaryKey" json:"window_start"`
	Count       int       `gorm:"not null;default:0" json:"count"`
}
