package mappers

import (
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/viewmodels"
	"github.com/iota-uz/dealflow/modules/dealflow/services"
)

func OrganizationToViewModel(o organization.Organization) *viewmodels.Organization {
	return &viewmodels.Organization{
		ID:        o.ID(),
		Name:      o.Name(),
		FundCount: o.FundCount(),
		CreatedAt: o.CreatedAt(),
		UpdatedAt: o.UpdatedAt(),
	}
}

func FundToViewModel(f fund.Fund) *viewmodels.Fund {
	attrs := make(map[fund.Field]fund.Value, len(fund.Schema))
	for _, s := range fund.Schema {
		attrs[s.Field] = f.Get(s.Field)
	}
	return &viewmodels.Fund{
		ID:             f.ID(),
		OrganizationID: f.OrganizationID(),
		Attributes:     attrs,
		CreatedAt:      f.CreatedAt(),
		UpdatedAt:      f.UpdatedAt(),
	}
}

func PersonToViewModel(p person.Person) *viewmodels.Person {
	return &viewmodels.Person{
		ID:             p.ID(),
		OrganizationID: p.OrganizationID(),
		Name:           p.Name(),
		Email:          p.Email(),
		JobTitle:       p.JobTitle(),
		LinkedIn:       p.LinkedIn(),
		CreatedAt:      p.CreatedAt(),
	}
}

func DetailsToViewModel(d *services.OrganizationDetails) *viewmodels.OrganizationDetails {
	out := &viewmodels.OrganizationDetails{
		Organization: *OrganizationToViewModel(d.Organization),
		Funds:        make([]*viewmodels.Fund, 0, len(d.Funds)),
		FundsTotal:   d.FundsTotal,
		Persons:      make([]*viewmodels.Person, 0, len(d.Persons)),
	}
	for _, f := range d.Funds {
		out.Funds = append(out.Funds, FundToViewModel(f))
	}
	for _, p := range d.Persons {
		out.Persons = append(out.Persons, PersonToViewModel(p))
	}
	return out
}
