package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/composables"
)

var organizationColumns = []string{"id", "name", "fund_count", "created_at", "updated_at"}

const (
	organizationInsertQuery = `INSERT INTO organizations (name) VALUES ($1) RETURNING id, name, fund_count, created_at, updated_at`
	organizationByIDQuery   = `SELECT id, name, fund_count, created_at, updated_at FROM organizations WHERE id = $1`
	organizationByNameQuery = `SELECT id, name, fund_count, created_at, updated_at FROM organizations WHERE name = $1`
	organizationIDsQuery    = `SELECT id, name FROM organizations`
	organizationCountQuery  = `SELECT count(*) FROM organizations`
	organizationTopQuery    = `SELECT id, name, fund_count, created_at, updated_at FROM organizations
		ORDER BY fund_count DESC, name ASC, id ASC LIMIT $1`
	organizationRecountQuery = `UPDATE organizations
		SET fund_count = (SELECT count(*) FROM funds WHERE organization_id = $1), updated_at = now()
		WHERE id = $1
		RETURNING fund_count`
	organizationDeleteQuery = `DELETE FROM organizations WHERE id = $1`
)

type OrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &OrganizationRepository{}
}

func (r *OrganizationRepository) GetPaginated(ctx context.Context, params *organization.FindParams) ([]organization.Organization, int64, error) {
	if params == nil {
		params = &organization.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(params.Offset, 0)

	sel := queryBuilder().Select(organizationColumns...).From("organizations")
	cnt := queryBuilder().Select("count(*)").From("organizations")
	if q := strings.TrimSpace(params.Q); q != "" {
		pred := squirrel.ILike{"name": "%" + escapeLike(q) + "%"}
		sel = sel.Where(pred)
		cnt = cnt.Where(pred)
	}
	sel = sel.OrderBy("name ASC", "id ASC").Limit(uint64(limit)).Offset(uint64(offset))

	sql, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "list organizations")
	}
	out, err := collectOrganizations(rows)
	if err != nil {
		return nil, 0, err
	}

	sql, args, err = cnt.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, gerrors.Wrap(err, "count organizations")
	}
	return out, total, nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (organization.Organization, error) {
	return r.queryOne(ctx, organizationByIDQuery, id)
}

func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (organization.Organization, error) {
	return r.queryOne(ctx, organizationByNameQuery, name)
}

func (r *OrganizationRepository) queryOne(ctx context.Context, query string, arg any) (organization.Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organization.Organization{}, err
	}
	o, err := scanOrganization(tx.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organization.Organization{}, organization.ErrNotFound
		}
		return organization.Organization{}, gerrors.Wrap(err, "get organization")
	}
	return o, nil
}

func (r *OrganizationRepository) IDsByName(ctx context.Context) (map[string]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, organizationIDsQuery)
	if err != nil {
		return nil, gerrors.Wrap(err, "load organization ids")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (r *OrganizationRepository) Create(ctx context.Context, o organization.Organization) (organization.Organization, error) {
	if o.Name() == "" {
		return organization.Organization{}, organization.ErrEmptyName
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organization.Organization{}, err
	}
	created, err := scanOrganization(tx.QueryRow(ctx, organizationInsertQuery, o.Name()))
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return organization.Organization{}, organization.ErrNameTaken
		}
		return organization.Organization{}, gerrors.Wrapf(err, "create organization %q", o.Name())
	}
	return created, nil
}

func (r *OrganizationRepository) RecountFunds(ctx context.Context, id int64) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, organizationRecountQuery, id).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, organization.ErrNotFound
		}
		return 0, gerrors.Wrapf(err, "recount funds of organization %d", id)
	}
	return n, nil
}

func (r *OrganizationRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, organizationCountQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count organizations")
	}
	return n, nil
}

func (r *OrganizationRepository) Top(ctx context.Context, k int) ([]organization.Organization, error) {
	if k <= 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, organizationTopQuery, k)
	if err != nil {
		return nil, gerrors.Wrap(err, "rank organizations")
	}
	return collectOrganizations(rows)
}

func (r *OrganizationRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, organizationDeleteQuery, id)
	if err != nil {
		return gerrors.Wrapf(err, "delete organization %d", id)
	}
	if tag.RowsAffected() == 0 {
		return organization.ErrNotFound
	}
	return nil
}

func collectOrganizations(rows pgx.Rows) ([]organization.Organization, error) {
	defer rows.Close()
	var out []organization.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrganization(row scanner) (organization.Organization, error) {
	var (
		id        int64
		name      string
		fundCount int
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &fundCount, &createdAt, &updatedAt); err != nil {
		return organization.Organization{}, err
	}
	return organization.Hydrate(id, name, fundCount, createdAt, updatedAt), nil
}
