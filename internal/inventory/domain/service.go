package domain

import (
	"context"
	"errors"
)

// Ledger is the single authority over prize inventory.
type Ledger interface {
	Snapshot(ctx context.Context, eventID int64) (Snapshot, error)
	// DecrementIfAvailable takes one unit when any remain and reports
	// whether it did. It never drives inventory below zero.
	DecrementIfAvailable(ctx context.Context, prizeID int64) (bool, error)
	List(ctx context.Context, eventID int64) ([]Prize, error)
}

var (
	ErrInvalidEvent = errors.New("invalid_event")
	ErrInvalidPrize = errors.New("invalid_prize")
)
