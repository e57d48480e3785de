package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	inventorydomain "github.com/smallbiznis/spinwheel/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/spinwheel/internal/inventory/repository"
	sessionrepo "github.com/smallbiznis/spinwheel/internal/session/repository"
	spinrepo "github.com/smallbiznis/spinwheel/internal/spin/repository"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"gorm.io/gorm"
)

const (
	DefaultEventName = "Default Event"
	DefaultEventSlug = "default"
)

var ErrEventNotFound = errors.New("event_not_found")

type EnsureResult struct {
	Event         eventdomain.Event
	EventCreated  bool
	PrizesCreated int
}

// EnsureDefaultEvent creates the event and one prize row per wheel slice.
// Existing rows are left untouched, so repeated runs never reset inventory.
func EnsureDefaultEvent(ctx context.Context, db *gorm.DB, node *snowflake.Node, w *wheel.Wheel, slug, name string) (EnsureResult, error) {
	var result EnsureResult
	if db == nil {
		return result, errors.New("seed database handle is required")
	}
	if node == nil {
		return result, errors.New("seed id generator is required")
	}
	if w == nil {
		w = wheel.Default()
	}

	slug = eventdomain.NormalizeSlug(slug)
	if slug == "" {
		slug = DefaultEventSlug
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEventName
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, created, err := ensureEventTx(ctx, tx, node, slug, name)
		if err != nil {
			return err
		}
		result.Event = event
		result.EventCreated = created

		n, err := ensurePrizesTx(ctx, tx, node, event.ID, w)
		if err != nil {
			return err
		}
		result.PrizesCreated = n
		return nil
	})
	return result, err
}

func ensureEventTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, slug, name string) (eventdomain.Event, bool, error) {
	var event eventdomain.Event
	err := tx.WithContext(ctx).Where("slug = ?", slug).First(&event).Error
	if err == nil {
		return event, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return event, false, err
	}
	event = eventdomain.Event{
		ID:        node.Generate().Int64(),
		Name:      name,
		Slug:      slug,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return event, false, err
	}
	return event, true, nil
}

func ensurePrizesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, eventID int64, w *wheel.Wheel) (int, error) {
	repo := inventoryrepo.Provide()
	existing, err := repo.ListByEvent(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		have[p.Name] = struct{}{}
	}

	created := 0
	now := time.Now().UTC()
	for _, s := range w.Slices {
		if _, ok := have[s.Label]; ok {
			continue
		}
		prize := &inventorydomain.Prize{
			ID:                 node.Generate().Int64(),
			EventID:            eventID,
			Name:               s.Label,
			Weight:             s.Weight,
			TotalInventory:     s.Inventory,
			RemainingInventory: s.Inventory,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := repo.Create(ctx, tx, prize); err != nil {
			return created, fmt.Errorf("create prize %q: %w", s.Label, err)
		}
		created++
	}
	return created, nil
}

type ResetResult struct {
	EventID         int64
	SpinsDeleted    int64
	SessionsDeleted int64
	PrizesRestored  int64
}

// ResetEvent clears participation for the event and refills every tangible
// prize to its total, in one transaction.
func ResetEvent(ctx context.Context, db *gorm.DB, slug string) (ResetResult, error) {
	var result ResetResult
	if db == nil {
		return result, errors.New("seed database handle is required")
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = DefaultEventSlug
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event eventdomain.Event
		if err := tx.WithContext(ctx).Where("slug = ?", slug).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		result.EventID = event.ID

		spins, err := spinrepo.Provide().DeleteByEvent(ctx, tx, event.ID)
		if err != nil {
			return fmt.Errorf("delete spins: %w", err)
		}
		sessions, err := sessionrepo.Provide().DeleteByEvent(ctx, tx, event.ID)
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		restored, err := inventoryrepo.Provide().RestoreInventory(ctx, tx, event.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("restore inventory: %w", err)
		}

		result.SpinsDeleted = spins
		result.SessionsDeleted = sessions
		result.PrizesRestored = restored
		return nil
	})
	return result, err
}
