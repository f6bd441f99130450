package model

import "time"

type ExecutionStatus string

const (
	ExecutionCompleted           ExecutionStatus = "completed"
	ExecutionCompletedWithErrors ExecutionStatus = "completed_with_errors"
	ExecutionFailed              ExecutionStatus = "failed"
)

func (s ExecutionStatus) String() string { return string(s) }

// CampaignExecution summarizes one trigger run. Immutable once written,
// produced exactly once per run.
type CampaignExecution struct {
	ID              string          `db:"id"`
	CampaignID      int64           `db:"campaign_id"`
	TriggerID       int64           `db:"trigger_id"`
	TotalRecipients int             `db:"total_recipients"`
	SentCount       int             `db:"sent_count"`
	FailedCount     int             `db:"failed_count"`
	Status          ExecutionStatus `db:"status"`
	ErrorMessage    *string         `db:"error_message"`
	ExecutedAt      time.Time       `db:"executed_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
}
