package person

import (
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

// Person is a contact at an organization.
type Person struct {
	id             int64
	organizationID int64
	name           string
	email          null.String
	jobTitle       null.String
	linkedIn       null.String
	createdAt      time.Time
	updatedAt      time.Time
}

func New(organizationID int64, name, email, jobTitle, linkedIn string) Person {
	return Person{
		organizationID: organizationID,
		name:           strings.TrimSpace(name),
		email:          optional(email),
		jobTitle:       optional(jobTitle),
		linkedIn:       optional(linkedIn),
	}
}

func Hydrate(
	id int64,
	organizationID int64,
	name string,
	email null.String,
	jobTitle null.String,
	linkedIn null.String,
	createdAt time.Time,
	updatedAt time.Time,
) Person {
	return Person{
		id:             id,
		organizationID: organizationID,
		name:           name,
		email:          email,
		jobTitle:       jobTitle,
		linkedIn:       linkedIn,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (p Person) ID() int64             { return p.id }
func (p Person) OrganizationID() int64 { return p.organizationID }
func (p Person) Name() string          { return p.name }
func (p Person) Email() null.String    { return p.email }
func (p Person) JobTitle() null.String { return p.jobTitle }
func (p Person) LinkedIn() null.String { return p.linkedIn }
func (p Person) CreatedAt() time.Time  { return p.createdAt }
func (p Person) UpdatedAt() time.Time  { return p.updatedAt }

func optional(v string) null.String {
	v = strings.TrimSpace(v)
	return null.NewString(v, v != "")
}
