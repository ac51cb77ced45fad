package sqlite

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/guregu/null/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
)

const (
	personInsertQuery = `INSERT INTO persons (organization_id, name, email, job_title, linkedin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	personsByOrganizationQuery = `SELECT id, organization_id, name, email, job_title, linkedin, created_at, updated_at
		FROM persons WHERE organization_id = ? ORDER BY id`
)

type PersonRepository struct {
	store *Store
}

func NewPersonRepository(store *Store) person.Repository {
	return &PersonRepository{store: store}
}

func (r *PersonRepository) Create(ctx context.Context, p person.Person) (person.Person, error) {
	now := time.Now().UTC()
	var id int64
	err := r.store.conn(ctx).QueryRowContext(ctx, personInsertQuery,
		p.OrganizationID(), p.Name(), p.Email(), p.JobTitle(), p.LinkedIn(), now, now,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return person.Person{}, organization.ErrNotFound
		}
		return person.Person{}, gerrors.Wrap(err, "create person")
	}
	return person.Hydrate(id, p.OrganizationID(), p.Name(), p.Email(), p.JobTitle(), p.LinkedIn(), now, now), nil
}

func (r *PersonRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]person.Person, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx, personsByOrganizationQuery, organizationID)
	if err != nil {
		return nil, gerrors.Wrap(err, "list persons")
	}
	defer rows.Close()

	var out []person.Person
	for rows.Next() {
		var (
			id, orgID                 int64
			name                      string
			email, jobTitle, linkedIn null.String
			createdAt, updatedAt      timestamp
		)
		if err := rows.Scan(&id, &orgID, &name, &email, &jobTitle, &linkedIn, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		out = append(out, person.Hydrate(id, orgID, name, email, jobTitle, linkedIn, createdAt.Time, updatedAt.Time))
	}
	return out, rows.Err()
}
