package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState is the ingest high-water mark plus run bookkeeping, one row per
// scope. The pipeline writes a single scope ("last_posted_from") whose Cursor
// holds the ISO date of the last fully successful window's upper bound.
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:text" json:"scope"`
	Cursor        *string        `gorm:"type:text" json:"cursor"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz" json:"last_success_at"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz" json:"last_attempt_at"`
	LastError     *string        `gorm:"type:text" json:"last_error"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	UpdatedAt     time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
