package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/dbtest"
	"github.com/smallbiznis/spinwheel/internal/session/domain"
	"github.com/smallbiznis/spinwheel/internal/session/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupGate(t *testing.T) (domain.Gate, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	gate := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return gate, db
}

func TestClaimOrGetGrantsOneSpin(t *testing.T) {
	gate, db := setupGate(t)
	ctx := context.Background()

	state, err := gate.ClaimOrGet(ctx, "sid-1", 7, "abcd")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state != domain.ClaimFresh {
		t.Fatalf("expected fresh claim, got %s", state)
	}

	state, err = gate.ClaimOrGet(ctx, "sid-1", 7, "abcd")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state != domain.ClaimAlreadySpun {
		t.Fatalf("expected already spun, got %s", state)
	}

	rec, err := repository.Provide().FindBySessionID(ctx, db, "sid-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil || !rec.HasSpun || rec.SpunAt == nil {
		t.Fatalf("expected spun record, got %+v", rec)
	}
	if rec.Fingerprint != "abcd" || rec.EventID != 7 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestClaimOrGetConcurrentSameSession(t *testing.T) {
	gate, _ := setupGate(t)
	ctx := context.Background()

	var fresh, spun int64
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := gate.ClaimOrGet(ctx, "shared", 7, "abcd")
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			switch state {
			case domain.ClaimFresh:
				atomic.AddInt64(&fresh, 1)
			case domain.ClaimAlreadySpun:
				atomic.AddInt64(&spun, 1)
			}
		}()
	}
	wg.Wait()

	if fresh != 1 || spun != 24 {
		t.Fatalf("expected 1 fresh and 24 duplicate claims, got %d and %d", fresh, spun)
	}
}

func TestClaimOrGetFlipsUnspunRecord(t *testing.T) {
	gate, db := setupGate(t)
	ctx := context.Background()

	legacy := &domain.SessionRecord{
		ID:          99,
		SessionID:   "legacy",
		EventID:     7,
		Fingerprint: "abcd",
		HasSpun:     false,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.Create(legacy).Error; err != nil {
		t.Fatalf("insert legacy: %v", err)
	}

	state, err := gate.ClaimOrGet(ctx, "legacy", 7, "abcd")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state != domain.ClaimFresh {
		t.Fatalf("expected legacy session to get its spin, got %s", state)
	}

	state, err = gate.ClaimOrGet(ctx, "legacy", 7, "abcd")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state != domain.ClaimAlreadySpun {
		t.Fatalf("expected already spun, got %s", state)
	}
}

func TestClaimOrGetValidatesInput(t *testing.T) {
	gate, _ := setupGate(t)
	if _, err := gate.ClaimOrGet(context.Background(), " ", 7, "abcd"); err != domain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := gate.ClaimOrGet(context.Background(), "sid", 0, "abcd"); err != domain.ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestNewTokenIsURLSafe(t *testing.T) {
	a, err := domain.NewToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	b, err := domain.NewToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
	if len(a) != 22 {
		t.Fatalf("expected 22 characters, got %d", len(a))
	}
}
