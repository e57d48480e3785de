package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertClaimed inserts a spun record unless session_id already exists.
	// It reports whether this call created the row.
	InsertClaimed(ctx context.Context, db *gorm.DB, record *SessionRecord) (bool, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*SessionRecord, error)
	// MarkSpun flips an unspun record and reports whether this call did it.
	MarkSpun(ctx context.Context, db *gorm.DB, sessionID string, at time.Time) (bool, error)
	DeleteByEvent(ctx context.Context, db *gorm.DB, eventID int64) (int64, error)
}
