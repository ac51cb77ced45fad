package viewmodels

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
)

type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FundCount int       `json:"fund_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fund lists every attribute; absent ones are null.
type Fund struct {
	ID             int64                     `json:"id"`
	OrganizationID int64                     `json:"organization_id"`
	Attributes     map[fund.Field]fund.Value `json:"attributes"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

type Person struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	Name           string      `json:"name"`
	Email          null.String `json:"email"`
	JobTitle       null.String `json:"job_title"`
	LinkedIn       null.String `json:"linkedin"`
	CreatedAt      time.Time   `json:"created_at"`
}

type OrganizationDetails struct {
	Organization
	Funds      []*Fund   `json:"funds"`
	FundsTotal int64     `json:"funds_total"`
	Persons    []*Person `json:"persons"`
}
