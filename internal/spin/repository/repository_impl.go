package repository

import (
	"context"

	"github.com/smallbiznis/spinwheel/internal/spin/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, record *domain.SpinRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO spins (id, session_id, event_id, slice_index, label, is_prize, prize_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.EventID,
		record.SliceIndex,
		record.Label,
		record.IsPrize,
		record.PrizeID,
		record.CreatedAt,
	).Error
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, eventID int64, limit int) ([]domain.SpinRecord, error) {
	var items []domain.SpinRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, session_id, event_id, slice_index, label, is_prize, prize_id, created_at
		 FROM spins WHERE event_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		eventID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, eventID int64) (int64, int64, error) {
	var row struct {
		Total int64
		Wins  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(CASE WHEN is_prize THEN 1 ELSE 0 END), 0) AS wins
		 FROM spins WHERE event_id = ?`,
		eventID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Wins, nil
}

func (r *repo) DeleteByEvent(ctx context.Context, db *gorm.DB, eventID int64) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM spins WHERE event_id = ?`, eventID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
