package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/dbtest"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	eventrepo "github.com/smallbiznis/spinwheel/internal/event/repository"
	eventservice "github.com/smallbiznis/spinwheel/internal/event/service"
	inventorydomain "github.com/smallbiznis/spinwheel/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/spinwheel/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/spinwheel/internal/inventory/service"
	"github.com/smallbiznis/spinwheel/internal/ratelimit"
	"github.com/smallbiznis/spinwheel/internal/seed"
	"github.com/smallbiznis/spinwheel/internal/selector"
	sessionrepo "github.com/smallbiznis/spinwheel/internal/session/repository"
	sessionservice "github.com/smallbiznis/spinwheel/internal/session/service"
	"github.com/smallbiznis/spinwheel/internal/spin/domain"
	spinrepo "github.com/smallbiznis/spinwheel/internal/spin/repository"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	svc    domain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	events eventdomain.Service
	ledger inventorydomain.Ledger
	wheel  *wheel.Wheel
}

type option func(*Params)

func withLedger(wrap func(inventorydomain.Ledger) inventorydomain.Ledger) option {
	return func(p *Params) { p.Ledger = wrap(p.Ledger) }
}

func setup(t *testing.T, w *wheel.Wheel, opts ...option) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	if _, err := seed.EnsureDefaultEvent(context.Background(), db, node, w, seed.DefaultEventSlug, seed.DefaultEventName); err != nil {
		t.Fatalf("seed: %v", err)
	}

	events := eventservice.New(eventservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  eventrepo.Provide(),
		Cache: cache.NewEventCache(clk),
	})
	ledger := inventoryservice.New(inventoryservice.Params{
		DB:    db,
		Log:   log,
		Clock: clk,
		Repo:  inventoryrepo.Provide(),
	})
	gate := sessionservice.New(sessionservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  sessionrepo.Provide(),
	})

	p := Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     spinrepo.Provide(),
		Limiter:  ratelimit.NewMemoryLimiter(clk),
		Events:   events,
		Gate:     gate,
		Ledger:   ledger,
		Selector: selector.NewWithSource(rand.NewPCG(7, 11)),
		Wheel:    wheel.NewHolder(w),
	}
	for _, opt := range opts {
		opt(&p)
	}

	return &harness{svc: New(p), db: db, clock: clk, events: events, ledger: p.Ledger, wheel: w}
}

func (h *harness) spin(t *testing.T, session, fingerprint string) (*domain.Result, error) {
	t.Helper()
	return h.svc.Run(context.Background(), domain.RunRequest{
		SessionID:   session,
		Fingerprint: fingerprint,
		EventSlug:   seed.DefaultEventSlug,
	})
}

func TestRunAllocatesOneOutcomePerSession(t *testing.T) {
	h := setup(t, wheel.Default())

	res, err := h.spin(t, "sid-1", "fp-1")
	require.NoError(t, err)
	require.Equal(t, h.wheel.Slices[res.SliceIndex].Label, res.Label)
	require.Equal(t, !h.wheel.Slices[res.SliceIndex].IsMessage(), res.IsPrize)
	require.False(t, res.AllPrizesGone)

	_, err = h.spin(t, "sid-1", "fp-1")
	require.ErrorIs(t, err, domain.ErrDuplicateSpin)

	var spins int64
	require.NoError(t, h.db.Table("spins").Count(&spins).Error)
	require.EqualValues(t, 1, spins)
}

func TestRunRejectsUnknownAndInactiveEvents(t *testing.T) {
	h := setup(t, wheel.Default())
	ctx := context.Background()

	_, err := h.svc.Run(ctx, domain.RunRequest{SessionID: "sid-1", Fingerprint: "fp", EventSlug: "missing"})
	require.ErrorIs(t, err, domain.ErrEventNotFound)

	require.NoError(t, h.events.SetActive(ctx, seed.DefaultEventSlug, false))
	_, err = h.spin(t, "sid-2", "fp")
	require.ErrorIs(t, err, domain.ErrEventNotFound)

	status, err := h.svc.Status(ctx, seed.DefaultEventSlug)
	require.NoError(t, err)
	assert.True(t, status.AllPrizesGone)
	assert.Equal(t, "Event not found", status.Message)
}

func TestRunValidatesRequest(t *testing.T) {
	h := setup(t, wheel.Default())
	_, err := h.svc.Run(context.Background(), domain.RunRequest{EventSlug: seed.DefaultEventSlug})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRunRateLimitsPerFingerprint(t *testing.T) {
	h := setup(t, wheel.Default())

	for i := 0; i < 10; i++ {
		_, err := h.spin(t, fmt.Sprintf("sid-%d", i), "fp-shared")
		require.NoError(t, err, "request %d", i+1)
		h.clock.Advance(time.Second)
	}

	_, err := h.spin(t, "sid-10", "fp-shared")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	var limited *domain.RateLimitedError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, 10, limited.Limit)
	assert.Equal(t, 50*time.Second, limited.RetryAfter)

	_, err = h.spin(t, "sid-other", "fp-elsewhere")
	require.NoError(t, err)

	h.clock.Advance(61 * time.Second)
	_, err = h.spin(t, "sid-11", "fp-shared")
	require.NoError(t, err)
}

func TestRateLimitedSessionIsNotConsumed(t *testing.T) {
	h := setup(t, wheel.Default())
	for i := 0; i < 10; i++ {
		_, err := h.spin(t, fmt.Sprintf("sid-%d", i), "fp")
		require.NoError(t, err)
	}

	_, err := h.spin(t, "late", "fp")
	require.ErrorIs(t, err, domain.ErrRateLimited)

	h.clock.Advance(61 * time.Second)
	_, err = h.spin(t, "late", "fp")
	require.NoError(t, err)
}

func TestPrizeWinsNeverExceedInventory(t *testing.T) {
	w, err := wheel.New(wheel.Wheel{Slices: []wheel.Slice{
		{Label: "Mug", Weight: 100, Inventory: 3},
		{Label: "Try again", Weight: 1},
	}})
	require.NoError(t, err)
	h := setup(t, w)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.spin(t, fmt.Sprintf("sid-%d", i), fmt.Sprintf("fp-%d", i))
			if err != nil {
				t.Errorf("spin %d: %v", i, err)
				return
			}
			if res.IsPrize {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, wins, 3)

	prizes, err := h.ledger.List(context.Background(), eventID(t, h))
	require.NoError(t, err)
	for _, p := range prizes {
		require.GreaterOrEqual(t, p.RemainingInventory, 0)
		if p.Name == "Mug" {
			require.Equal(t, 3-wins, p.RemainingInventory)
		}
	}

	inv, err := h.svc.Inventory(context.Background(), seed.DefaultEventSlug)
	require.NoError(t, err)
	require.EqualValues(t, 30, inv.TotalSpins)
	require.EqualValues(t, wins, inv.TotalWins)
}

func TestConcurrentSpinsShareOneSession(t *testing.T) {
	h := setup(t, wheel.Default())

	const attempts = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		done       int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.spin(t, "sid-shared", fmt.Sprintf("fp-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				done++
			case errors.Is(err, domain.ErrDuplicateSpin):
				duplicates++
			default:
				t.Errorf("spin %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, done)
	require.Equal(t, attempts-1, duplicates)

	var spins int64
	require.NoError(t, h.db.Table("spins").Where("session_id = ?", "sid-shared").Count(&spins).Error)
	require.EqualValues(t, 1, spins)

	var sessions int64
	require.NoError(t, h.db.Table("sessions").Where("session_id = ?", "sid-shared").Count(&sessions).Error)
	require.EqualValues(t, 1, sessions)
}

func TestExhaustedWheelYieldsOnlyMessages(t *testing.T) {
	h := setup(t, wheel.Default())
	require.NoError(t, h.db.Exec(`UPDATE prizes SET remaining_inventory = 0`).Error)

	messages := map[string]bool{}
	for _, label := range h.wheel.MessageLabels() {
		messages[label] = true
	}
	for i := 0; i < 20; i++ {
		res, err := h.spin(t, fmt.Sprintf("sid-%d", i), fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		require.False(t, res.IsPrize)
		require.True(t, res.AllPrizesGone)
		require.True(t, messages[res.Label], "unexpected label %q", res.Label)
	}

	status, err := h.svc.Status(context.Background(), seed.DefaultEventSlug)
	require.NoError(t, err)
	assert.True(t, status.AllPrizesGone)
	assert.Zero(t, status.TotalRemaining)
}

// drainedLedger reports every decrement as lost, as if another spin took
// the last unit after the snapshot.
type drainedLedger struct {
	inventorydomain.Ledger
}

func (drainedLedger) DecrementIfAvailable(context.Context, int64) (bool, error) {
	return false, nil
}

func TestLostRaceDowngradesToFallback(t *testing.T) {
	w, err := wheel.New(wheel.Wheel{
		Slices: []wheel.Slice{
			{Label: "Mug", Weight: 1000, Inventory: 5},
			{Label: "Almost", Weight: 0},
			{Label: "Try again", Weight: 0},
		},
		FallbackLabel: "Try again",
	})
	require.NoError(t, err)
	h := setup(t, w, withLedger(func(l inventorydomain.Ledger) inventorydomain.Ledger {
		return drainedLedger{Ledger: l}
	}))

	res, err := h.spin(t, "sid-1", "fp-1")
	require.NoError(t, err)
	require.Equal(t, &domain.Result{SliceIndex: 2, Label: "Try again", IsPrize: false, AllPrizesGone: false}, res)

	var record domain.SpinRecord
	require.NoError(t, h.db.Where("session_id = ?", "sid-1").First(&record).Error)
	require.Equal(t, "Try again", record.Label)
	require.False(t, record.IsPrize)
	require.Nil(t, record.PrizeID)
}

func TestWinningSpinRecordsPrize(t *testing.T) {
	w, err := wheel.New(wheel.Wheel{Slices: []wheel.Slice{
		{Label: "Mug", Weight: 1, Inventory: 1},
		{Label: "Try again", Weight: 0},
	}})
	require.NoError(t, err)
	h := setup(t, w)

	res, err := h.spin(t, "sid-1", "fp-1")
	require.NoError(t, err)
	require.Equal(t, &domain.Result{SliceIndex: 0, Label: "Mug", IsPrize: true}, res)

	var record domain.SpinRecord
	require.NoError(t, h.db.Where("session_id = ?", "sid-1").First(&record).Error)
	require.NotNil(t, record.PrizeID)

	res, err = h.spin(t, "sid-2", "fp-2")
	require.NoError(t, err)
	require.Equal(t, "Try again", res.Label)
	require.True(t, res.AllPrizesGone)
}

func TestListSpinsNewestFirst(t *testing.T) {
	h := setup(t, wheel.Default())
	for i := 0; i < 3; i++ {
		_, err := h.spin(t, fmt.Sprintf("sid-%d", i), fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	spins, err := h.svc.ListSpins(context.Background(), seed.DefaultEventSlug, 2)
	require.NoError(t, err)
	require.Len(t, spins, 2)
	require.True(t, spins[0].CreatedAt.After(spins[1].CreatedAt))
	require.NotEmpty(t, spins[0].ID)

	_, err = h.svc.ListSpins(context.Background(), "missing", 10)
	require.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestInventoryReportsAllPrizes(t *testing.T) {
	h := setup(t, wheel.Default())

	inv, err := h.svc.Inventory(context.Background(), seed.DefaultEventSlug)
	require.NoError(t, err)
	require.Len(t, inv.Prizes, 6)
	require.Zero(t, inv.TotalSpins)
	require.False(t, inv.AllPrizesGone)

	status, err := h.svc.Status(context.Background(), seed.DefaultEventSlug)
	require.NoError(t, err)
	require.Equal(t, 90, status.TotalRemaining)
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 50: 50, 500: 500, 501: 500}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func eventID(t *testing.T, h *harness) int64 {
	t.Helper()
	ev, err := h.events.GetBySlug(context.Background(), seed.DefaultEventSlug)
	require.NoError(t, err)
	return ev.ID
}
