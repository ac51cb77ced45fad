package persistence

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/composables"
)

const (
	fundCountQuery  = `SELECT count(*) FROM funds`
	fundExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM funds
		WHERE organization_id = $1
		  AND fund_name IS NOT DISTINCT FROM $2
		  AND vintage IS NOT DISTINCT FROM $3
	)`
	fundDeleteQuery = `DELETE FROM funds WHERE id = ANY($1)`
)

type FundRepository struct{}

func NewFundRepository() fund.Repository {
	return &FundRepository{}
}

func fundSelectColumns() []string {
	cols := []string{"id", "organization_id"}
	cols = append(cols, fund.Columns()...)
	return append(cols, "created_at", "updated_at")
}

func (r *FundRepository) Create(ctx context.Context, f fund.Fund) (fund.Fund, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return fund.Fund{}, err
	}

	cols := append([]string{"organization_id"}, fund.Columns()...)
	vals := append([]any{f.OrganizationID()}, f.Args()...)
	sql, args, err := queryBuilder().
		Insert("funds").
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fund.Fund{}, err
	}

	var (
		id        int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id, &createdAt, &updatedAt); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fund.Fund{}, organization.ErrNotFound
		}
		return fund.Fund{}, gerrors.Wrap(err, "insert fund")
	}
	return fund.Hydrate(id, f.OrganizationID(), f.Attributes(), createdAt, updatedAt), nil
}

func (r *FundRepository) GetPaginated(ctx context.Context, params *fund.FindParams) ([]fund.Fund, int64, error) {
	if params == nil {
		params = &fund.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	sel := queryBuilder().Select(fundSelectColumns()...).From("funds")
	cnt := queryBuilder().Select("count(*)").From("funds")
	if params.OrganizationID != 0 {
		sel = sel.Where("organization_id = ?", params.OrganizationID)
		cnt = cnt.Where("organization_id = ?", params.OrganizationID)
	}
	sel = sel.OrderBy("id ASC").Limit(uint64(limit)).Offset(uint64(max(params.Offset, 0)))

	sql, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "list funds")
	}
	out, err := collectFunds(rows)
	if err != nil {
		return nil, 0, err
	}

	sql, args, err = cnt.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, gerrors.Wrap(err, "count funds")
	}
	return out, total, nil
}

func (r *FundRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, fundCountQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count funds")
	}
	return n, nil
}

func (r *FundRepository) Exists(ctx context.Context, organizationID int64, name null.String, vintage null.Float) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := tx.QueryRow(ctx, fundExistsQuery, organizationID, name, vintage).Scan(&ok); err != nil {
		return false, gerrors.Wrap(err, "check fund existence")
	}
	return ok, nil
}

func (r *FundRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, fundDeleteQuery, ids)
	if err != nil {
		return 0, gerrors.Wrap(err, "delete funds")
	}
	return tag.RowsAffected(), nil
}

func collectFunds(rows pgx.Rows) ([]fund.Fund, error) {
	defer rows.Close()
	var out []fund.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// scanFund reads the columns of fundSelectColumns.
func scanFund(row scanner) (fund.Fund, error) {
	var (
		id, orgID            int64
		createdAt, updatedAt time.Time
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
	return fund.Hydrate(id, orgID, attrs, createdAt, updatedAt), nil
}
