package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CampaignsRepository reads campaigns and their triggers and records the
// advisory last_executed_at stamp.
type CampaignsRepository interface {
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	GetTrigger(ctx context.Context, id int64) (*model.Trigger, error)
	ListActiveTriggers(ctx context.Context, eventType model.EventType) ([]model.Trigger, error)
	TouchLastExecuted(ctx context.Context, triggerID int64, at time.Time) error
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

func (r *CampaignsRepositoryImpl) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, channel, status, content, created_at, updated_at
		  FROM campaigns
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignsRepositoryImpl) GetTrigger(ctx context.Context, id int64) (*model.Trigger, error) {
	var t model.Trigger
	err := r.db.GetContext(ctx, &t, `
		SELECT id, campaign_id, event_type, hours_before, hours_after,
		       is_active, last_executed_at, created_at, updated_at
		  FROM campaign_triggers
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CampaignsRepositoryImpl) ListActiveTriggers(ctx context.Context, eventType model.EventType) ([]model.Trigger, error) {
	var triggers []model.Trigger
	err := r.db.SelectContext(ctx, &triggers, `
		SELECT t.id, t.campaign_id, t.event_type, t.hours_before, t.hours_after,
		       t.is_active, t.last_executed_at, t.created_at, t.updated_at
		  FROM campaign_triggers t
		  JOIN campaigns c ON c.id = t.campaign_id
		 WHERE t.event_type = ? AND t.is_active = 1 AND c.status = 'active'
		 ORDER BY t.id
	`, eventType)
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *CampaignsRepositoryImpl) TouchLastExecuted(ctx context.Context, triggerID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_triggers
		   SET last_executed_at = ?, updated_at = NOW()
		 WHERE id = ?
	`, at, triggerID)
	return err
}
