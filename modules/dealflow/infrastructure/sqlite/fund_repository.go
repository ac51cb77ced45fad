package sqlite

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	gerrors "github.com/go-faster/errors"
	"github.com/guregu/null/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
)

// SQLite caps bound parameters per statement.
const deleteChunkSize = 500

const (
	fundCountQuery  = `SELECT count(*) FROM funds`
	fundExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM funds
		WHERE organization_id = ? AND fund_name IS ? AND vintage IS ?
	)`
)

type FundRepository struct {
	store *Store
}

func NewFundRepository(store *Store) fund.Repository {
	return &FundRepository{store: store}
}

func (r *FundRepository) Create(ctx context.Context, f fund.Fund) (fund.Fund, error) {
	now := time.Now().UTC()
	cols := append([]string{"organization_id"}, fund.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	vals := append([]any{f.OrganizationID()}, f.Args()...)
	vals = append(vals, now, now)

	query, args, err := squirrel.Insert("funds").Columns(cols...).Values(vals...).Suffix("RETURNING id").ToSql()
	if err != nil {
		return fund.Fund{}, err
	}
	var id int64
	if err := r.store.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return fund.Fund{}, organization.ErrNotFound
		}
		return fund.Fund{}, gerrors.Wrap(err, "insert fund")
	}
	return fund.Hydrate(id, f.OrganizationID(), f.Attributes(), now, now), nil
}

func (r *FundRepository) GetPaginated(ctx context.Context, params *fund.FindParams) ([]fund.Fund, int64, error) {
	if params == nil {
		params = &fund.FindParams{}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	cols := append([]string{"id", "organization_id"}, fund.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	sel := squirrel.Select(cols...).From("funds")
	cnt := squirrel.Select("count(*)").From("funds")
	if params.OrganizationID != 0 {
		sel = sel.Where(squirrel.Eq{"organization_id": params.OrganizationID})
		cnt = cnt.Where(squirrel.Eq{"organization_id": params.OrganizationID})
	}
	sel = sel.OrderBy("id ASC").Limit(uint64(limit)).Offset(uint64(max(params.Offset, 0)))

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.store.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "list funds")
	}
	defer rows.Close()

	var out []fund.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	query, args, err = cnt.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.store.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, gerrors.Wrap(err, "count funds")
	}
	return out, total, nil
}

func (r *FundRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.store.conn(ctx).QueryRowContext(ctx, fundCountQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count funds")
	}
	return n, nil
}

func (r *FundRepository) Exists(ctx context.Context, organizationID int64, name null.String, vintage null.Float) (bool, error) {
	var ok bool
	if err := r.store.conn(ctx).QueryRowContext(ctx, fundExistsQuery, organizationID, name, vintage).Scan(&ok); err != nil {
		return false, gerrors.Wrap(err, "check fund existence")
	}
	return ok, nil
}

func (r *FundRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		query, args, err := squirrel.Delete("funds").Where(squirrel.Eq{"id": ids[start:end]}).ToSql()
		if err != nil {
			return total, err
		}
		res, err := r.store.conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return total, gerrors.Wrap(err, "delete funds")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func scanFund(row scanner) (fund.Fund, error) {
	var (
		id, orgID            int64
		createdAt, updatedAt timestamp
	)
	texts := make(map[fund.Field]*null.String)
	nums := make(map[fund.Field]*null.Float)
	dest := []any{&id, &orgID}
	for _, s := range fund.Schema {
		if s.Kind == fund.KindNumber {
			v := new(null.Float)
			nums[s.Field] = v
			dest = append(dest, v)
			continue
		}
		v := new(null.String)
		texts[s.Field] = v
		dest = append(dest, v)
	}
	dest = append(dest, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return fund.Fund{}, err
	}

	attrs := make(map[fund.Field]fund.Value, len(fund.Schema))
	for f, v := range texts {
		if v.Valid {
			attrs[f] = fund.Text(v.String)
		}
	}
	for f, v := range nums {
		if v.Valid {
			attrs[f] = fund.Number(v.Float64)
		}
	}
	return fund.Hydrate(id, orgID, attrs, createdAt.Time, updatedAt.Time), nil
}
