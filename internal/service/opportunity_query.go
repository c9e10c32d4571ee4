package service

import (
	"context"
	"fmt"

	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
)

type OpportunityQueryService struct {
	Repo repository.OpportunityRepository
}

type OpportunitiesResult struct {
	Items []models.Opportunity
	Total int64
}

func (s *OpportunityQueryService) List(ctx context.Context, params repository.ListOpportunitiesParams) (OpportunitiesResult, error) {
	if s == nil || s.Repo == nil {
		return OpportunitiesResult{}, fmt.Errorf("query service not configured")
	}
	total, err := s.Repo.CountOpportunities(ctx, params)
	if err != nil {
		return OpportunitiesResult{}, err
	}
	items, err := s.Repo.ListOpportunities(ctx, params)
	if err != nil {
		return OpportunitiesResult{}, err
	}
	return OpportunitiesResult{Items: items, Total: total}, nil
}
