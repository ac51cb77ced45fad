package organization

import (
	"strings"
	"time"
)

// Organization is a general-partner firm owning funds. Names are unique and
// compared exactly.
type Organization struct {
	id        int64
	name      string
	fundCount int
	createdAt time.Time
	updatedAt time.Time
}

func New(name string) Organization {
	return Organization{
		name: strings.TrimSpace(name),
	}
}

func Hydrate(id int64, name string, fundCount int, createdAt, updatedAt time.Time) Organization {
	return Organization{
		id:        id,
		name:      name,
		fundCount: fundCount,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (o Organization) ID() int64            { return o.id }
func (o Organization) Name() string         { return o.name }
func (o Organization) FundCount() int       { return o.fundCount }
func (o Organization) CreatedAt() time.Time { return o.createdAt }
func (o Organization) UpdatedAt() time.Time { return o.updatedAt }
func (o Organization) IsZero() bool         { return o.id == 0 && o.name == "" }
