package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Gate struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Gate {
	return &Gate{
		db:    p.DB,
		log:   p.Log.Named("session.gate"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// ClaimOrGet relies on the unique session_id constraint: the insert either
// creates the spun record or does nothing. Rows left unspun by older
// deployments are flipped with a conditional update.
func (g *Gate) ClaimOrGet(ctx context.Context, sessionID string, eventID int64, fingerprint string) (domain.ClaimState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ClaimAlreadySpun, domain.ErrInvalidSession
	}
	if eventID == 0 {
		return domain.ClaimAlreadySpun, domain.ErrInvalidEvent
	}

	now := g.clock.Now()
	record := &domain.SessionRecord{
		ID:          g.genID.Generate().Int64(),
		SessionID:   sessionID,
		EventID:     eventID,
		Fingerprint: fingerprint,
		HasSpun:     true,
		CreatedAt:   now,
		SpunAt:      &now,
	}

	inserted, err := g.repo.InsertClaimed(ctx, g.db, record)
	if err != nil {
		return domain.ClaimAlreadySpun, fmt.Errorf("claim session: %w", err)
	}
	if inserted {
		return domain.ClaimFresh, nil
	}

	existing, err := g.repo.FindBySessionID(ctx, g.db, sessionID)
	if err != nil {
		return domain.ClaimAlreadySpun, fmt.Errorf("load session: %w", err)
	}
	if existing == nil || existing.HasSpun {
		return domain.ClaimAlreadySpun, nil
	}

	flipped, err := g.repo.MarkSpun(ctx, g.db, sessionID, now)
	if err != nil {
		return domain.ClaimAlreadySpun, fmt.Errorf("mark session spun: %w", err)
	}
	if !flipped {
		return domain.ClaimAlreadySpun, nil
	}

	g.log.Debug("claimed unspun session", zap.Int64("session_record_id", existing.ID))
	return domain.ClaimFresh, nil
}
