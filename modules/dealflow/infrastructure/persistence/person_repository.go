package persistence

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/guregu/null/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
	"github.com/iota-uz/dealflow/pkg/composables"
)

const (
	personInsertQuery = `INSERT INTO persons (organization_id, name, email, job_title, linkedin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, name, email, job_title, linkedin, created_at, updated_at`
	personsByOrganizationQuery = `SELECT id, organization_id, name, email, job_title, linkedin, created_at, updated_at
		FROM persons WHERE organization_id = $1 ORDER BY id`
)

type PersonRepository struct{}

func NewPersonRepository() person.Repository {
	return &PersonRepository{}
}

func (r *PersonRepository) Create(ctx context.Context, p person.Person) (person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return person.Person{}, err
	}
	created, err := scanPerson(tx.QueryRow(ctx, personInsertQuery,
		p.OrganizationID(), p.Name(), p.Email(), p.JobTitle(), p.LinkedIn(),
	))
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return person.Person{}, organization.ErrNotFound
		}
		return person.Person{}, gerrors.Wrap(err, "create person")
	}
	return created, nil
}

func (r *PersonRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, personsByOrganizationQuery, organizationID)
	if err != nil {
		return nil, gerrors.Wrap(err, "list persons")
	}
	defer rows.Close()

	var out []person.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPerson(row scanner) (person.Person, error) {
	var (
		id, orgID                 int64
		name                      string
		email, jobTitle, linkedIn null.String
		createdAt, updatedAt      time.Time
	)
	if err := row.Scan(&id, &orgID, &name, &email, &jobTitle, &linkedIn, &createdAt, &updatedAt); err != nil {
		return person.Person{}, err
	}
	return person.Hydrate(id, orgID, name, email, jobTitle, linkedIn, createdAt, updatedAt), nil
}
