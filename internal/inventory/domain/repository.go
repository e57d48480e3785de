package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, prize *Prize) error
	ListByEvent(ctx context.Context, db *gorm.DB, eventID int64) ([]Prize, error)
	DecrementIfAvailable(ctx context.Context, db *gorm.DB, prizeID int64, now time.Time) (bool, error)
	RestoreInventory(ctx context.Context, db *gorm.DB, eventID int64, now time.Time) (int64, error)
}
