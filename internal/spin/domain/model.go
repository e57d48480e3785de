package domain

import "time"

// SpinRecord is the append-only log of final outcomes.
type SpinRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	SessionID  string    `json:"session_id" gorm:"type:varchar(64);not null;index"`
	EventID    int64     `json:"event_id" gorm:"not null;index"`
	SliceIndex int       `json:"slice_index" gorm:"not null"`
	Label      string    `json:"label" gorm:"type:varchar(255);not null"`
	IsPrize    bool      `json:"is_prize" gorm:"not null;default:false"`
	PrizeID    *int64    `json:"prize_id,omitempty"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SpinRecord) TableName() string { return "spins" }
