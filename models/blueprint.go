package models

// BlueprintRecord holds what every blueprint tool stores: the answers the
// visitor submitted and the JSON document the model returned.
type BlueprintRecord struct {
	Email     string `gorm:"size:255;index" json:"email,omitempty"`
	FirstName string `gorm:"size:100" json:"first_name,omitempty"`
	Answers   string `gorm:"type:text;not null" json:"answers"`   // JSON
	Blueprint string `gorm:"type:text;not null" json:"blueprint"` // JSON
	Model     string `gorm:"size:100" json:"model,omitempty"`
	IPAddress string `gorm:"size:64" json:"-"`
}

// JourneySession is a treatment journey blueprint. Hormone and face sessions
// may hang off one.
type JourneySession struct {
	Base
	BlueprintRecord

	HormoneSessions []HormoneSession `gorm:"foreignKey:JourneySessionID" json:"hormone_sessions,omitempty"`
	FaceSessions    []FaceSession    `gorm:"foreignKey:JourneySessionID" json:"face_sessions,omitempty"`
}

type HormoneSession struct {
	Base
	BlueprintRecord
	JourneySessionID *string `gorm:"type:uuid;index" json:"journey_session_id,omitempty"`
}

type FaceSession struct {
	Base
	BlueprintRecord
	JourneySessionID *string `gorm:"type:uuid;index" json:"journey_session_id,omitempty"`
}
