package domain

import "time"

// Prize is one wheel slice as stored for an event. TotalInventory 0 marks a
// message that is never depleted.
type Prize struct {
	ID                 int64     `json:"id" gorm:"primaryKey"`
	EventID            int64     `json:"event_id" gorm:"column:event_id;not null;uniqueIndex:ux_prizes_event_name,priority:1"`
	Name               string    `json:"name" gorm:"type:text;not null;uniqueIndex:ux_prizes_event_name,priority:2"`
	Weight             int       `json:"weight" gorm:"not null;default:0;check:chk_prizes_weight,weight >= 0"`
	TotalInventory     int       `json:"total_inventory" gorm:"not null;default:0;check:chk_prizes_total,total_inventory >= 0"`
	RemainingInventory int       `json:"remaining_inventory" gorm:"not null;default:0;check:chk_prizes_remaining,remaining_inventory >= 0 AND remaining_inventory <= total_inventory"`
	CreatedAt          time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Prize) TableName() string { return "prizes" }

func (p Prize) IsTangible() bool { return p.TotalInventory > 0 }
