package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/dbtest"
	"github.com/smallbiznis/spinwheel/internal/event/domain"
	"github.com/smallbiznis/spinwheel/internal/event/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupEventService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
		Cache: cache.NewEventCache(clk),
	})
	return svc, db
}

func TestCreateNormalizesSlug(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	event, err := svc.Create(ctx, domain.CreateRequest{Name: "Spring Fair 2026"})
	require.NoError(t, err)
	assert.Equal(t, "spring-fair-2026", event.Slug)
	assert.True(t, event.Active)

	got, err := svc.GetBySlug(ctx, "spring-fair-2026")
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "Spring Fair 2026", got.Name)
}

func TestCreateRejectsDuplicatesAndInvalidInput(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "Default Event", Slug: "default"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Another", Slug: "Default"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "x", Slug: "!!!"})
	assert.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestGetBySlugNotFoundIsNotCached(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	_, err := svc.GetBySlug(ctx, "default")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := svc.Create(ctx, domain.CreateRequest{Name: "Default Event", Slug: "default"})
	require.NoError(t, err)

	got, err := svc.GetBySlug(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestSetActiveInvalidatesCache(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "Default Event", Slug: "default"})
	require.NoError(t, err)

	got, err := svc.GetBySlug(ctx, "default")
	require.NoError(t, err)
	require.True(t, got.Active)

	require.NoError(t, svc.SetActive(ctx, "default", false))

	got, err = svc.GetBySlug(ctx, "default")
	require.NoError(t, err)
	assert.False(t, got.Active)
}
