package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is one SAM.gov contracting-opportunity notice, flattened to the
// fixed schema the query API serves. JSON names keep the aliases the legacy
// front end already consumes (organizationName, place_*, website).
type Opportunity struct {
	ID                 string `gorm:"primaryKey;type:text" json:"id"`
	Title              string `gorm:"type:text" json:"title"`
	SolicitationNumber string `gorm:"type:text" json:"solicitation_number"`

	// Date-only columns. Null means the notice carried no usable date;
	// a null ResponseDate reads as "no deadline" downstream.
	PostedDate   *time.Time `gorm:"type:date;index:idx_opps_posted" json:"posted_date"`
	ResponseDate *time.Time `gorm:"type:date;index:idx_opps_due" json:"response_date"`

	SetAside    string `gorm:"type:text" json:"set_aside"`
	NAICS       string `gorm:"type:text;index:idx_opps_naics" json:"naics"`
	Org         string `gorm:"type:text" json:"organizationName"`
	City        string `gorm:"type:text" json:"place_city"`
	State       string `gorm:"type:text" json:"place_state"`
	Zip         string `gorm:"type:text;index:idx_opps_zip" json:"place_zip"`
	URL         string `gorm:"type:text" json:"website"`
	Description string `gorm:"type:text" json:"description"`

	// AwardAmount is only present on award notices. Stored as numeric to
	// avoid float drift on dollar values.
	AwardAmount decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"award_amount"`

	InsertedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"inserted_at"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}
