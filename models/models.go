package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Database schema overview:
// 1. users, refresh_tokens, permanent_tokens - cookie-based authentication
// 2. clients - spa clients, optionally linked to a portal user
// 3. providers, provider_media - practitioners and their gallery
// 4. treatments, locations - catalog and SEO landing page data
// 5. appointments - client bookings
// 6. leads - lead gate and contact submissions
// 7. consent_forms - consent requests and signatures
// 8. journey_sessions, hormone_sessions, face_sessions - AI blueprint results
// 9. cms_sections - admin-configurable page blocks
// 10. sms_campaigns, sms_messages - outbound SMS campaigns
// 11. videos - Cloudflare Stream uploads
// 12. rate_limit_counters - per-ip hourly counters

// Base carries the columns every table shares. IDs are assigned on insert
// so rows can be created the same way against Postgres and SQLite.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&PermanentToken{},
		&Client{},
		&Provider{},
		&ProviderMedia{},
		&Treatment{},
		&Location{},
		&Appointment{},
		&Lead{},
		&ConsentForm{},
		&JourneySession{},
		&HormoneSession{},
		&FaceSession{},
		&CMSSection{},
		&SMSCampaign{},
		&SMSMessage{},
		&Video{},
		&RateLimitCounter{},
	}
}
