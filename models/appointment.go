package models

import (
	"time"
)

const (
	AppointmentRequested = "requested"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// ValidAppointmentStatus reports whether s is a known appointment status.
func ValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentRequested, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

var appointmentTransitions = map[string][]string{
	AppointmentRequested: {AppointmentConfirmed, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

// CanTransitionAppointment reports whether an appointment may move from one
// status to another. Completed, cancelled and no-show are final. Keeping
// the same status is always allowed.
func CanTransitionAppointment(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	ClientID        string    `gorm:"type:uuid;not null;index" json:"client_id"`
	ProviderID      *string   `gorm:"type:uuid;index" json:"provider_id,omitempty"`
	TreatmentID     *string   `gorm:"type:uuid;index" json:"treatment_id,omitempty"`
	StartsAt        time.Time `gorm:"not null;index" json:"starts_at"`
	DurationMinutes int       `gorm:"default:60" json:"duration_minutes"`
	Status          string    `gorm:"not null;default:'requested';check:status IN ('requested', 'confirmed', 'completed', 'cancelled', 'no_show')" json:"status"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Client    *Client    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Provider  *Provider  `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Treatment *Treatment `gorm:"foreignKey:TreatmentID" json:"treatment,omitempty"`
}
