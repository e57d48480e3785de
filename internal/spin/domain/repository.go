package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, record *SpinRecord) error
	ListRecent(ctx context.Context, db *gorm.DB, eventID int64, limit int) ([]SpinRecord, error)
	Count(ctx context.Context, db *gorm.DB, eventID int64) (total int64, wins int64, err error)
	DeleteByEvent(ctx context.Context, db *gorm.DB, eventID int64) (int64, error)
}
