package model

import (
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft    CampaignStatus = "draft"
	CampaignActive   CampaignStatus = "active"
	CampaignArchived CampaignStatus = "archived"
)

func (s CampaignStatus) String() string { return string(s) }

// Campaign holds the operator-authored reminder content. Immutable once
// referenced by executions except for content edits.
type Campaign struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	Channel   string         `db:"channel"`
	Status    CampaignStatus `db:"status"`
	Content   string         `db:"content"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type EventType string

const (
	EventMenuCreated    EventType = "menu_created"
	EventMenuClosing    EventType = "menu_closing"
	EventInitialContact EventType = "initial_contact"
)

func (t EventType) String() string { return string(t) }

func (t EventType) Valid() bool {
	return t == EventMenuCreated || t == EventMenuClosing || t == EventInitialContact
}

// ParseEventType normalizes input. Returns (value, true) if valid.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// EventTypes lists every event type in processing order.
func EventTypes() []EventType {
	return []EventType{EventMenuCreated, EventMenuClosing, EventInitialContact}
}

// Trigger is a time-based rule that activates a campaign's reminder logic.
// last_executed_at is advisory telemetry, not a concurrency guard.
type Trigger struct {
	ID             int64      `db:"id"`
	CampaignID     int64      `db:"campaign_id"`
	EventType      EventType  `db:"event_type"`
	HoursBefore    *int       `db:"hours_before"`
	HoursAfter     *int       `db:"hours_after"`
	IsActive       bool       `db:"is_active"`
	LastExecutedAt *time.Time `db:"last_executed_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}
