package services

import (
	"context"
	"errors"
	"strings"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
	"github.com/iota-uz/dealflow/pkg/eventbus"
)

// OrganizationDetails is an organization with everything that references it.
// FundsTotal counts every fund of the organization; Funds may hold fewer.
type OrganizationDetails struct {
	Organization organization.Organization
	Funds        []fund.Fund
	FundsTotal   int64
	Persons      []person.Person
}

type OrganizationCreatedEvent struct {
	Organization organization.Organization
}

type OrganizationDeletedEvent struct {
	ID int64
}

type OrganizationService struct {
	repo      organization.Repository
	funds     fund.Repository
	persons   person.Repository
	publisher eventbus.EventBus
}

func NewOrganizationService(
	repo organization.Repository,
	funds fund.Repository,
	persons person.Repository,
	publisher eventbus.EventBus,
) *OrganizationService {
	return &OrganizationService{repo: repo, funds: funds, persons: persons, publisher: publisher}
}

func (s *OrganizationService) GetPaginated(ctx context.Context, params *organization.FindParams) ([]organization.Organization, int64, error) {
	if params != nil {
		params.Q = strings.TrimSpace(params.Q)
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *OrganizationService) GetByID(ctx context.Context, id int64) (organization.Organization, error) {
	return s.repo.GetByID(ctx, id)
}

// GetDetails loads the organization with up to fundLimit funds and all persons.
func (s *OrganizationService) GetDetails(ctx context.Context, id int64, fundLimit int) (*OrganizationDetails, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	funds, total, err := s.funds.GetPaginated(ctx, &fund.FindParams{OrganizationID: id, Limit: fundLimit})
	if err != nil {
		return nil, gerrors.Wrap(err, "load funds")
	}
	persons, err := s.persons.ListByOrganization(ctx, id)
	if err != nil {
		return nil, gerrors.Wrap(err, "load persons")
	}
	return &OrganizationDetails{Organization: o, Funds: funds, FundsTotal: total, Persons: persons}, nil
}

// Create registers a new organization. An existing name is rejected with
// organization.ErrNameTaken and the stored record is left untouched.
func (s *OrganizationService) Create(ctx context.Context, dto *organization.CreateDTO) (organization.Organization, error) {
	if dto == nil {
		return organization.Organization{}, errors.New("missing dto")
	}
	dto.Normalize()
	if _, err := s.repo.GetByName(ctx, dto.Name); err == nil {
		return organization.Organization{}, organization.ErrNameTaken
	} else if !errors.Is(err, organization.ErrNotFound) {
		return organization.Organization{}, err
	}
	created, err := s.repo.Create(ctx, dto.ToEntity())
	if err != nil {
		return organization.Organization{}, err
	}
	s.publish(&OrganizationCreatedEvent{Organization: created})
	return created, nil
}

// Delete removes the organization together with its funds and persons.
func (s *OrganizationService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(&OrganizationDeletedEvent{ID: id})
	return nil
}

// RecountFunds rewrites the stored fund_count from the funds table and
// returns the updated organization.
func (s *OrganizationService) RecountFunds(ctx context.Context, id int64) (organization.Organization, error) {
	if _, err := s.repo.RecountFunds(ctx, id); err != nil {
		return organization.Organization{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *OrganizationService) publish(event any) {
	if s.publisher != nil && s.publisher.SubscribersCount() > 0 {
		s.publisher.Publish(event)
	}
}
