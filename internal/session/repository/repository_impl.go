package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/spinwheel/internal/session/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertClaimed(ctx context.Context, db *gorm.DB, record *domain.SessionRecord) (bool, error) {
	query := `INSERT INTO sessions (id, session_id, event_id, fingerprint, has_spun, created_at, spun_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO NOTHING`
	if db.Dialector.Name() == "mysql" {
		query = `INSERT IGNORE INTO sessions (id, session_id, event_id, fingerprint, has_spun, created_at, spun_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`
	}

	res := db.WithContext(ctx).Exec(
		query,
		record.ID,
		record.SessionID,
		record.EventID,
		record.Fingerprint,
		record.HasSpun,
		record.CreatedAt,
		record.SpunAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, session_id, event_id, fingerprint, has_spun, created_at, spun_at
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) MarkSpun(ctx context.Context, db *gorm.DB, sessionID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sessions SET has_spun = ?, spun_at = ?
		 WHERE session_id = ? AND has_spun = ?`,
		true,
		at,
		sessionID,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) DeleteByEvent(ctx context.Context, db *gorm.DB, eventID int64) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM sessions WHERE event_id = ?`, eventID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
