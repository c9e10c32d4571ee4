package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawSnapshot keeps one fetched page's undecoded payload when keep_raw is
// enabled, for replay and upstream-drift forensics.
type RawSnapshot struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Scope      string         `gorm:"type:text;index" json:"scope"`
	PageOffset int            `gorm:"not null" json:"page_offset"`
	FetchedAt  time.Time      `gorm:"type:timestamptz;not null" json:"fetched_at"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
}

func (RawSnapshot) TableName() string {
	return "raw_snapshots"
}
