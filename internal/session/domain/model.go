package domain

import "time"

// SessionRecord marks an anonymous participant. A record only exists once
// the participant has attempted a spin.
type SessionRecord struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	SessionID   string     `json:"session_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_sessions_session_id"`
	EventID     int64      `json:"event_id" gorm:"not null;index"`
	Fingerprint string     `json:"fingerprint" gorm:"type:varchar(32);not null"`
	HasSpun     bool       `json:"has_spun" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	SpunAt      *time.Time `json:"spun_at,omitempty"`
}

func (SessionRecord) TableName() string { return "sessions" }
