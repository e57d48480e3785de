package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/clock"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	inventorydomain "github.com/smallbiznis/spinwheel/internal/inventory/domain"
	"github.com/smallbiznis/spinwheel/internal/observability/logger"
	"github.com/smallbiznis/spinwheel/internal/observability/metrics"
	"github.com/smallbiznis/spinwheel/internal/ratelimit"
	"github.com/smallbiznis/spinwheel/internal/selector"
	sessiondomain "github.com/smallbiznis/spinwheel/internal/session/domain"
	"github.com/smallbiznis/spinwheel/internal/spin/domain"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomePrize      = "prize"
	outcomeMessage    = "message"
	outcomeDowngraded = "downgraded"

	rateLimitEndpoint = "spin"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Limiter  ratelimit.Limiter
	Events   eventdomain.Service
	Gate     sessiondomain.Gate
	Ledger   inventorydomain.Ledger
	Selector *selector.Selector
	Wheel    *wheel.Holder

	Metrics    *metrics.Metrics        `optional:"true"`
	Collectors *metrics.SpinCollectors `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	limiter    ratelimit.Limiter
	events     eventdomain.Service
	gate       sessiondomain.Gate
	ledger     inventorydomain.Ledger
	selector   *selector.Selector
	wheel      *wheel.Holder
	metrics    *metrics.Metrics
	collectors *metrics.SpinCollectors
	tracer     trace.Tracer
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("spin.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		limiter:    p.Limiter,
		events:     p.Events,
		gate:       p.Gate,
		ledger:     p.Ledger,
		selector:   p.Selector,
		wheel:      p.Wheel,
		metrics:    p.Metrics,
		collectors: p.Collectors,
		tracer:     otel.Tracer("spinwheel/spin"),
	}
}

// Run allocates one outcome to the session. The steps are ordered so that
// only an admitted, first-time session reaches the inventory ledger.
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (*domain.Result, error) {
	start := s.clock.Now()
	sessionID := strings.TrimSpace(req.SessionID)
	slug := strings.TrimSpace(req.EventSlug)
	if sessionID == "" || slug == "" {
		return nil, domain.ErrInvalidRequest
	}

	ctx, span := s.tracer.Start(ctx, "spin.Run", trace.WithAttributes(
		attribute.String("event", slug),
	))
	defer span.End()

	log := logger.WithEvent(logger.WithContext(ctx, s.log), slug)
	w := s.wheel.Current()

	if err := s.admit(ctx, w, req.Fingerprint); err != nil {
		s.reject(ctx, span, slug, err)
		return nil, err
	}

	event, err := s.activeEvent(ctx, slug)
	if err != nil {
		s.reject(ctx, span, slug, err)
		return nil, err
	}

	if err := s.claim(ctx, sessionID, event.ID, req.Fingerprint); err != nil {
		s.reject(ctx, span, slug, err)
		return nil, err
	}

	snap, err := s.snapshot(ctx, event.ID)
	if err != nil {
		s.fail(span, metrics.StageSnapshot, err)
		return nil, err
	}
	allGone := snap.AllPrizesGone()
	for name, entry := range snap {
		if entry.IsTangible() {
			s.collectors.SetPrizeRemaining(slug, name, entry.Remaining)
		}
	}

	outcome := s.selector.Select(w, snap)
	span.AddEvent("outcome.selected", trace.WithAttributes(
		attribute.String("label", outcome.Label),
		attribute.Bool("is_prize", outcome.IsPrize),
	))

	result := outcomeMessage
	if outcome.IsPrize {
		taken, err := s.decrement(ctx, outcome.PrizeID)
		if err != nil {
			s.fail(span, metrics.StageDecrement, err)
			return nil, err
		}
		if taken {
			result = outcomePrize
		} else {
			log.Info("prize ran out before decrement, downgrading",
				zap.String("prize", outcome.Label),
				zap.Error(domain.ErrInventoryRaceLost),
			)
			s.metrics.RecordInventoryRaceLost(ctx, slug, outcome.Label)
			outcome = downgrade(w)
			result = outcomeDowngraded
		}
	}

	record := &domain.SpinRecord{
		ID:         s.genID.Generate().Int64(),
		SessionID:  sessionID,
		EventID:    event.ID,
		SliceIndex: outcome.SliceIndex,
		Label:      outcome.Label,
		IsPrize:    outcome.IsPrize,
		CreatedAt:  s.clock.Now(),
	}
	if outcome.IsPrize {
		prizeID := outcome.PrizeID
		record.PrizeID = &prizeID
	}
	if err := s.append(ctx, record); err != nil {
		s.fail(span, metrics.StageRecord, err)
		return nil, err
	}

	s.metrics.RecordSpin(ctx, slug, result)
	s.collectors.ObserveSpinDuration(result, s.clock.Now().Sub(start))
	span.SetAttributes(
		attribute.String("outcome", result),
		attribute.Int("slice_index", outcome.SliceIndex),
	)
	log.Debug("spin allocated",
		zap.String("outcome", result),
		zap.String("label", outcome.Label),
		zap.Int("slice_index", outcome.SliceIndex),
		zap.Bool("all_prizes_gone", allGone),
	)

	return &domain.Result{
		SliceIndex:    outcome.SliceIndex,
		Label:         outcome.Label,
		IsPrize:       outcome.IsPrize,
		AllPrizesGone: allGone,
	}, nil
}

func (s *Service) admit(ctx context.Context, w *wheel.Wheel, fingerprint string) error {
	ctx, span := s.tracer.Start(ctx, "spin.admit")
	defer span.End()

	key := strings.TrimSpace(fingerprint)
	if key == "" {
		key = ratelimit.Fingerprint("")
	}
	policy := ratelimit.Policy{Limit: w.RateLimit.Limit, Window: w.RateLimit.Window}

	decision, err := s.limiter.Admit(ctx, key, policy)
	if err != nil {
		s.collectors.IncStorageError(metrics.StageRateLimit, err)
		return fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, rateLimitEndpoint, "window_exhausted")
		return &domain.RateLimitedError{Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}
	s.metrics.RecordRateLimitAllowed(ctx, rateLimitEndpoint)
	return nil
}

// activeEvent resolves slug to an event that accepts spins.
func (s *Service) activeEvent(ctx context.Context, slug string) (*eventdomain.Event, error) {
	event, err := s.lookupEvent(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !event.Active {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

func (s *Service) lookupEvent(ctx context.Context, slug string) (*eventdomain.Event, error) {
	event, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, eventdomain.ErrNotFound) || errors.Is(err, eventdomain.ErrInvalidSlug) {
			return nil, domain.ErrEventNotFound
		}
		s.collectors.IncStorageError(metrics.StageEvent, err)
		return nil, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}

func (s *Service) claim(ctx context.Context, sessionID string, eventID int64, fingerprint string) error {
	ctx, span := s.tracer.Start(ctx, "spin.claim")
	defer span.End()

	state, err := s.gate.ClaimOrGet(ctx, sessionID, eventID, fingerprint)
	if err != nil {
		s.collectors.IncStorageError(metrics.StageClaim, err)
		return fmt.Errorf("claim session: %w", err)
	}
	span.SetAttributes(attribute.String("claim", state.String()))
	if state == sessiondomain.ClaimAlreadySpun {
		return domain.ErrDuplicateSpin
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context, eventID int64) (inventorydomain.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "spin.snapshot")
	defer span.End()

	snap, err := s.ledger.Snapshot(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) decrement(ctx context.Context, prizeID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "spin.decrement")
	defer span.End()

	taken, err := s.ledger.DecrementIfAvailable(ctx, prizeID)
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}
	span.SetAttributes(attribute.Bool("taken", taken))
	return taken, nil
}

func downgrade(w *wheel.Wheel) selector.Outcome {
	index, label := w.Fallback()
	return selector.Outcome{SliceIndex: index, Label: label}
}

func (s *Service) append(ctx context.Context, record *domain.SpinRecord) error {
	ctx, span := s.tracer.Start(ctx, "spin.record")
	defer span.End()

	if err := s.repo.Append(ctx, s.db, record); err != nil {
		return fmt.Errorf("append spin: %w", err)
	}
	return nil
}

func (s *Service) reject(ctx context.Context, span trace.Span, slug string, err error) {
	reason := rejectionReason(err)
	if reason == "" {
		s.fail(span, "", err)
		return
	}
	span.SetAttributes(attribute.String("rejection", reason))
	s.metrics.RecordRejection(ctx, slug, reason)
}

func (s *Service) fail(span trace.Span, stage string, err error) {
	if stage != "" {
		s.collectors.IncStorageError(stage, err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "spin failed")
	s.log.Error("spin failed", zap.String("stage", stage), zap.Error(err))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrDuplicateSpin):
		return domain.ErrDuplicateSpin.Error()
	case errors.Is(err, domain.ErrEventNotFound):
		return domain.ErrEventNotFound.Error()
	default:
		return ""
	}
}

// Status reports whether tangible stock remains. A missing event is reported
// as exhausted rather than as an error.
func (s *Service) Status(ctx context.Context, eventSlug string) (*domain.StatusResponse, error) {
	event, err := s.activeEvent(ctx, strings.TrimSpace(eventSlug))
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return &domain.StatusResponse{AllPrizesGone: true, Message: "Event not found"}, nil
		}
		return nil, err
	}

	snap, err := s.ledger.Snapshot(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	return &domain.StatusResponse{
		AllPrizesGone:  snap.AllPrizesGone(),
		TotalRemaining: snap.TotalRemaining(),
	}, nil
}

func (s *Service) Inventory(ctx context.Context, eventSlug string) (*domain.InventoryResponse, error) {
	event, err := s.lookupEvent(ctx, strings.TrimSpace(eventSlug))
	if err != nil {
		return nil, err
	}

	prizes, err := s.ledger.List(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list prizes: %w", err)
	}
	total, wins, err := s.repo.Count(ctx, s.db, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count spins: %w", err)
	}

	stats := make([]domain.PrizeStats, 0, len(prizes))
	for _, p := range prizes {
		stats = append(stats, domain.PrizeStats{
			Name:      p.Name,
			Total:     p.TotalInventory,
			Remaining: p.RemainingInventory,
			Weight:    p.Weight,
		})
	}

	return &domain.InventoryResponse{
		Prizes:        stats,
		TotalSpins:    total,
		TotalWins:     wins,
		AllPrizesGone: inventorydomain.NewSnapshot(prizes).AllPrizesGone(),
	}, nil
}

func (s *Service) ListSpins(ctx context.Context, eventSlug string, limit int) ([]domain.SpinResponse, error) {
	event, err := s.lookupEvent(ctx, strings.TrimSpace(eventSlug))
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListRecent(ctx, s.db, event.ID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list spins: %w", err)
	}

	out := make([]domain.SpinResponse, 0, len(records))
	for _, r := range records {
		out = append(out, domain.SpinResponse{
			ID:        strconv.FormatInt(r.ID, 10),
			Label:     r.Label,
			IsPrize:   r.IsPrize,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// ClampLimit bounds an admin page size to [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > domain.MaxListLimit {
		return domain.MaxListLimit
	}
	return limit
}
