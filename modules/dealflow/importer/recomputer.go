package importer

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/repo"
)

// Recomputer rewrites stored fund counts from the funds table.
type Recomputer struct {
	tx   repo.Transactor
	orgs organization.Repository
}

func NewRecomputer(tx repo.Transactor, orgs organization.Repository) *Recomputer {
	return &Recomputer{tx: tx, orgs: orgs}
}

// Recompute recounts every id in a single transaction and returns the new
// counts. Running it again without intervening writes changes nothing.
func (r *Recomputer) Recompute(ctx context.Context, ids []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	txCtx, t, err := r.tx.Begin(ctx)
	if err != nil {
		return nil, gerrors.Wrap(err, "begin transaction")
	}
	defer func() { _ = t.Rollback(context.WithoutCancel(ctx)) }()

	for _, id := range ids {
		n, err := r.orgs.RecountFunds(txCtx, id)
		if err != nil {
			return nil, gerrors.Wrapf(err, "recount organization %d", id)
		}
		counts[id] = n
	}
	if err := t.Commit(ctx); err != nil {
		return nil, gerrors.Wrap(err, "commit recount")
	}
	return counts, nil
}
