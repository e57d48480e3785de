package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Service interface {
	Run(ctx context.Context, req RunRequest) (*Result, error)
	Status(ctx context.Context, eventSlug string) (*StatusResponse, error)
	Inventory(ctx context.Context, eventSlug string) (*InventoryResponse, error)
	ListSpins(ctx context.Context, eventSlug string, limit int) ([]SpinResponse, error)
}

type RunRequest struct {
	SessionID   string
	Fingerprint string
	EventSlug   string
}

type Result struct {
	SliceIndex    int    `json:"sliceIndex"`
	Label         string `json:"label"`
	IsPrize       bool   `json:"prize"`
	AllPrizesGone bool   `json:"allPrizesGone"`
}

type StatusResponse struct {
	AllPrizesGone  bool   `json:"allPrizesGone"`
	TotalRemaining int    `json:"totalRemaining"`
	Message        string `json:"message,omitempty"`
}

type PrizeStats struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
	Weight    int    `json:"weight"`
}

type InventoryResponse struct {
	Prizes        []PrizeStats `json:"prizes"`
	TotalSpins    int64        `json:"total_spins"`
	TotalWins     int64        `json:"total_wins"`
	AllPrizesGone bool         `json:"all_prizes_gone"`
}

type SpinResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	IsPrize   bool      `json:"is_prize"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrDuplicateSpin  = errors.New("already_spun")
	ErrEventNotFound  = errors.New("event_not_found")
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrInventoryRaceLost never leaves the service; the outcome is
	// downgraded to the fallback message instead.
	ErrInventoryRaceLost = errors.New("inventory_race_lost")
)

// RateLimitedError carries the limiter decision to the transport.
type RateLimitedError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
