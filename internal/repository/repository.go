package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
)

// Sort modes accepted by ListOpportunities. The default pushes notices with
// the nearest response deadline to the top; rows without a deadline sort last.
const (
	SortDueThenPosted = "due_then_posted"
	SortPostedDesc    = "posted_desc"
)

// OpportunityRepository is the persistence gateway shared by the ingest
// pipeline and the query API.
type OpportunityRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Ingest path.
	UpsertOpportunities(ctx context.Context, items []models.Opportunity) (int, error)
	UpsertOpportunity(ctx context.Context, item *models.Opportunity) error
	DeleteExpired(ctx context.Context) (int64, error)
	SaveRawSnapshots(ctx context.Context, items []models.RawSnapshot) error

	// Sync bookkeeping. GetSyncState returns (nil, nil) when the scope has
	// never been written.
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error

	// Query path.
	ListOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.Opportunity, error)
	CountOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)
}

// ListOpportunitiesParams carries the query API filters. Nil pointers mean
// "not filtered"; ActiveOnly keeps rows whose response_date is null or still
// in the future.
type ListOpportunitiesParams struct {
	Limit      int
	Offset     int
	ActiveOnly bool
	NAICS      *string
	Keyword    *string
	Zip        *string
	SetAside   *string
	Sort       string
}
