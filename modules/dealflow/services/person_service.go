package services

import (
	"context"
	"errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
)

type PersonService struct {
	repo person.Repository
	orgs organization.Repository
}

func NewPersonService(repo person.Repository, orgs organization.Repository) *PersonService {
	return &PersonService{repo: repo, orgs: orgs}
}

// Create attaches a person to an existing organization.
func (s *PersonService) Create(ctx context.Context, organizationID int64, dto *person.CreateDTO) (person.Person, error) {
	if dto == nil {
		return person.Person{}, errors.New("missing dto")
	}
	dto.Normalize()
	if _, err := s.orgs.GetByID(ctx, organizationID); err != nil {
		return person.Person{}, err
	}
	return s.repo.Create(ctx, dto.ToEntity(organizationID))
}

func (s *PersonService) ListByOrganization(ctx context.Context, organizationID int64) ([]person.Person, error) {
	if _, err := s.orgs.GetByID(ctx, organizationID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrganization(ctx, organizationID)
}
