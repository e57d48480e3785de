package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	ID        int64             `json:"id" gorm:"primaryKey"`
	Name      string            `json:"name" gorm:"type:varchar(255);not null"`
	Slug      string            `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex:ux_events_slug"`
	Active    bool              `json:"active" gorm:"not null;default:true"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Event) TableName() string { return "events" }
