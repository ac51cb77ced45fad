package services

import (
	"context"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
)

type FundService struct {
	repo fund.Repository
}

func NewFundService(repo fund.Repository) *FundService {
	return &FundService{repo: repo}
}

func (s *FundService) GetPaginated(ctx context.Context, params *fund.FindParams) ([]fund.Fund, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *FundService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
