package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Ledger {
	return &Ledger{
		db:    p.DB,
		log:   p.Log.Named("inventory.ledger"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (l *Ledger) Snapshot(ctx context.Context, eventID int64) (domain.Snapshot, error) {
	prizes, err := l.List(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return domain.NewSnapshot(prizes), nil
}

func (l *Ledger) List(ctx context.Context, eventID int64) ([]domain.Prize, error) {
	if eventID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	prizes, err := l.repo.ListByEvent(ctx, l.db, eventID)
	if err != nil {
		return nil, fmt.Errorf("list prizes: %w", err)
	}
	return prizes, nil
}

func (l *Ledger) DecrementIfAvailable(ctx context.Context, prizeID int64) (bool, error) {
	if prizeID == 0 {
		return false, domain.ErrInvalidPrize
	}
	ok, err := l.repo.DecrementIfAvailable(ctx, l.db, prizeID, l.clock.Now())
	if err != nil {
		return false, fmt.Errorf("decrement prize %d: %w", prizeID, err)
	}
	if !ok {
		l.log.Debug("prize exhausted at decrement", zap.Int64("prize_id", prizeID))
	}
	return ok, nil
}
