package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/event/domain"
	"github.com/smallbiznis/spinwheel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cache cache.EventCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cache cache.EventCache
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("event.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	slugValue := strings.TrimSpace(req.Slug)
	if slugValue == "" {
		slugValue = name
	}
	slugValue = domain.NormalizeSlug(slugValue)
	if slugValue == "" {
		return nil, domain.ErrInvalidSlug
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	event := &domain.Event{
		ID:        s.genID.Generate().Int64(),
		Name:      name,
		Slug:      slugValue,
		Active:    active,
		CreatedAt: s.clock.Now(),
	}
	if req.Metadata != nil {
		event.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Create(ctx, s.db, event); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.log.Info("event created", zap.Int64("event_id", event.ID), zap.String("slug", event.Slug))
	return event, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.ErrInvalidSlug
	}

	if s.cache != nil {
		if event, ok := s.cache.GetEvent(slug); ok {
			return event, nil
		}
	}

	event, err := s.repo.FindBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}

	if s.cache != nil {
		s.cache.SetEvent(slug, event)
	}
	return event, nil
}

func (s *Service) SetActive(ctx context.Context, slug string, active bool) error {
	event, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, s.db, event.ID, active); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateEvent(slug)
	}
	s.log.Info("event activation changed", zap.String("slug", event.Slug), zap.Bool("active", active))
	return nil
}
