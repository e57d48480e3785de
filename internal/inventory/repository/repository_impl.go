package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/spinwheel/internal/inventory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, prize *domain.Prize) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO prizes (id, event_id, name, weight, total_inventory, remaining_inventory, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		prize.ID,
		prize.EventID,
		prize.Name,
		prize.Weight,
		prize.TotalInventory,
		prize.RemainingInventory,
		prize.CreatedAt,
		prize.UpdatedAt,
	).Error
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, eventID int64) ([]domain.Prize, error) {
	var items []domain.Prize
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, name, weight, total_inventory, remaining_inventory, created_at, updated_at
		 FROM prizes WHERE event_id = ? ORDER BY id ASC`,
		eventID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DecrementIfAvailable(ctx context.Context, db *gorm.DB, prizeID int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE prizes
		 SET remaining_inventory = remaining_inventory - 1, updated_at = ?
		 WHERE id = ? AND remaining_inventory > 0`,
		now,
		prizeID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) RestoreInventory(ctx context.Context, db *gorm.DB, eventID int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE prizes
		 SET remaining_inventory = total_inventory, updated_at = ?
		 WHERE event_id = ? AND total_inventory > 0`,
		now,
		eventID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
