package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
)

var organizationColumns = []string{"id", "name", "fund_count", "created_at", "updated_at"}

const (
	organizationInsertQuery = `INSERT INTO organizations (name, created_at, updated_at) VALUES (?, ?, ?)
		RETURNING id, name, fund_count, created_at, updated_at`
	organizationByIDQuery   = `SELECT id, name, fund_count, created_at, updated_at FROM organizations WHERE id = ?`
	organizationByNameQuery = `SELECT id, name, fund_count, created_at, updated_at FROM organizations WHERE name = ?`
	organizationIDsQuery    = `SELECT id, name FROM organizations`
	organizationCountQuery  = `SELECT count(*) FROM organizations`
	organizationTopQuery    = `SELECT id, name, fund_count, created_at, updated_at FROM organizations
		ORDER BY fund_count DESC, name ASC, id ASC LIMIT ?`
	organizationRecountQuery = `UPDATE organizations
		SET fund_count = (SELECT count(*) FROM funds WHERE organization_id = ?1), updated_at = ?2
		WHERE id = ?1
		RETURNING fund_count`
	organizationDeleteQuery = `DELETE FROM organizations WHERE id = ?`
)

type OrganizationRepository struct {
	store *Store
}

func NewOrganizationRepository(store *Store) organization.Repository {
	return &OrganizationRepository{store: store}
}

func (r *OrganizationRepository) GetPaginated(ctx context.Context, params *organization.FindParams) ([]organization.Organization, int64, error) {
	if params == nil {
		params = &organization.FindParams{}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	sel := squirrel.Select(organizationColumns...).From("organizations")
	cnt := squirrel.Select("count(*)").From("organizations")
	if q := strings.TrimSpace(params.Q); q != "" {
		pred := squirrel.Expr(`name LIKE ? ESCAPE '\'`, "%"+escapeLike(q)+"%")
		sel = sel.Where(pred)
		cnt = cnt.Where(pred)
	}
	sel = sel.OrderBy("name ASC", "id ASC").Limit(uint64(limit)).Offset(uint64(max(params.Offset, 0)))

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.store.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "list organizations")
	}
	out, err := collectOrganizations(rows)
	if err != nil {
		return nil, 0, err
	}

	query, args, err = cnt.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.store.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
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
	o, err := scanOrganization(r.store.conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return organization.Organization{}, organization.ErrNotFound
		}
		return organization.Organization{}, gerrors.Wrap(err, "get organization")
	}
	return o, nil
}

func (r *OrganizationRepository) IDsByName(ctx context.Context) (map[string]int64, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx, organizationIDsQuery)
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
	now := time.Now().UTC()
	created, err := scanOrganization(r.store.conn(ctx).QueryRowContext(ctx, organizationInsertQuery, o.Name(), now, now))
	if err != nil {
		if isUniqueViolation(err) {
			return organization.Organization{}, organization.ErrNameTaken
		}
		return organization.Organization{}, gerrors.Wrapf(err, "create organization %q", o.Name())
	}
	return created, nil
}

func (r *OrganizationRepository) RecountFunds(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.store.conn(ctx).QueryRowContext(ctx, organizationRecountQuery, id, time.Now().UTC()).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, organization.ErrNotFound
		}
		return 0, gerrors.Wrapf(err, "recount funds of organization %d", id)
	}
	return n, nil
}

func (r *OrganizationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.store.conn(ctx).QueryRowContext(ctx, organizationCountQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count organizations")
	}
	return n, nil
}

func (r *OrganizationRepository) Top(ctx context.Context, k int) ([]organization.Organization, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := r.store.conn(ctx).QueryContext(ctx, organizationTopQuery, k)
	if err != nil {
		return nil, gerrors.Wrap(err, "rank organizations")
	}
	return collectOrganizations(rows)
}

func (r *OrganizationRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, organizationDeleteQuery, id)
	if err != nil {
		return gerrors.Wrapf(err, "delete organization %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return organization.ErrNotFound
	}
	return nil
}

func collectOrganizations(rows *sql.Rows) ([]organization.Organization, error) {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row scanner) (organization.Organization, error) {
	var (
		id        int64
		name      string
		fundCount int
		createdAt timestamp
		updatedAt timestamp
	)
	if err := row.Scan(&id, &name, &fundCount, &createdAt, &updatedAt); err != nil {
		return organization.Organization{}, err
	}
	return organization.Hydrate(id, name, fundCount, createdAt.Time, updatedAt.Time), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
