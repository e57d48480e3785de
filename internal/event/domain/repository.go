package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, event *Event) error
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Event, error)
	SetActive(ctx context.Context, db *gorm.DB, id int64, active bool) error
}
