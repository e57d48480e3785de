package repository

import (
	"context"

	"github.com/smallbiznis/spinwheel/internal/event/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (id, name, slug, active, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Name,
		event.Slug,
		event.Active,
		event.Metadata,
		event.CreatedAt,
	).Error
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Event, error) {
	var e domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, active, metadata, created_at
		 FROM events WHERE slug = ?`,
		slug,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id int64, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events SET active = ? WHERE id = ?`,
		active,
		id,
	).Error
}
