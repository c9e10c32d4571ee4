package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
	"github.com/antonybarran/Sam-Search-WA-3/internal/shape"
)

// stubRepo is a test-only in-memory implementation of
// repository.OpportunityRepository. Error fields force the matching call to
// fail so failure paths can be exercised.
type stubRepo struct {
	opps      map[string]models.Opportunity
	states    map[string]models.SyncState
	snapshots []models.RawSnapshot

	upsertErr    error
	stateGetErr  error
	stateSaveErr error
	deleteErr    error
	listErr      error
	countErr     error

	upsertCalls int
	deleteCalls int
	savedStates []models.SyncState
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		opps:   map[string]models.Opportunity{},
		states: map[string]models.SyncState{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) UpsertOpportunities(ctx context.Context, items []models.Opportunity) (int, error) {
	s.upsertCalls++
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	count := 0
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		item.ID = id
		s.opps[id] = item
		count++
	}
	return count, nil
}

func (s *stubRepo) UpsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	if item == nil {
		return nil
	}
	_, err := s.UpsertOpportunities(ctx, []models.Opportunity{*item})
	return err
}

func (s *stubRepo) DeleteExpired(ctx context.Context) (int64, error) {
	s.deleteCalls++
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	today := shape.DateOnly(time.Now().UTC())
	var n int64
	for id, item := range s.opps {
		if item.ResponseDate != nil && item.ResponseDate.Before(today) {
			delete(s.opps, id)
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) SaveRawSnapshots(ctx context.Context, items []models.RawSnapshot) error {
	s.snapshots = append(s.snapshots, items...)
	return nil
}

func (s *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s.stateGetErr != nil {
		return nil, s.stateGetErr
	}
	state, ok := s.states[scope]
	if !ok {
		return nil, nil
	}
	out := state
	return &out, nil
}

func (s *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s.stateSaveErr != nil {
		return s.stateSaveErr
	}
	if state == nil || strings.TrimSpace(state.Scope) == "" {
		return nil
	}
	s.states[state.Scope] = *state
	s.savedStates = append(s.savedStates, *state)
	return nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Opportunity, 0, len(s.opps))
	for _, item := range s.opps {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.opps)), nil
}

var _ repository.OpportunityRepository = (*stubRepo)(nil)
