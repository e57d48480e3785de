package ratelimit

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrEmptyKey      = errors.New("rate limiter key is empty")
	ErrInvalidPolicy = errors.New("rate limiter policy must be positive")
)

// Policy bounds a key to Limit admissions within any trailing Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Limit <= 0 || p.Window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for key under policy. A rejected
// request is not recorded against the key.
type Limiter interface {
	Admit(ctx context.Context, key string, policy Policy) (Decision, error)
}

// Fingerprint reduces a client address to a short stable digest so raw
// addresses never reach storage or limiter state.
func Fingerprint(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = "0.0.0.0"
	}
	sum := blake2b.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])[:16]
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
