package services

// Admin feed event types.
const (
	EventLeadCreated          = "lead.created"
	EventAppointmentRequested = "appointment.requested"
	EventConsentSigned        = "consent.signed"
	EventCampaignCompleted    = "campaign.completed"
)

// EventPublisher pushes notifications to admin dashboards. *websocket.Hub
// implements it.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

func publish(p EventPublisher, eventType string, data interface{}) {
	if p != nil {
		p.Publish(eventType, data)
	}
}
