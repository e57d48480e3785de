package domain

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

type ClaimState int

const (
	ClaimFresh ClaimState = iota
	ClaimAlreadySpun
)

func (s ClaimState) String() string {
	switch s {
	case ClaimFresh:
		return "fresh"
	case ClaimAlreadySpun:
		return "already_spun"
	default:
		return "unknown"
	}
}

// Gate grants each session exactly one spin. Concurrent claims for the same
// session resolve to one ClaimFresh.
type Gate interface {
	ClaimOrGet(ctx context.Context, sessionID string, eventID int64, fingerprint string) (ClaimState, error)
}

var (
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidEvent   = errors.New("invalid_event")
)

const tokenBytes = 16

// NewToken mints an unguessable URL-safe session token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
