package importer

import (
	"context"
	"sort"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/repo"
)

// Resolver maps organization names to identifiers for one run, creating the
// organizations it has not seen. It is not safe for concurrent use.
type Resolver struct {
	orgs    organization.Repository
	batch   *batch
	ids     map[string]int64
	touched map[int64]struct{}

	pending   []organization.Organization
	created   []int64
	reused    int
	onCreated func(organization.Organization)
}

// NewResolver commits every batchSize created organizations. onCreated is
// called for each of them once its batch is committed.
func NewResolver(tx repo.Transactor, orgs organization.Repository, batchSize int, onCreated func(organization.Organization)) *Resolver {
	r := &Resolver{
		orgs:      orgs,
		ids:       make(map[string]int64),
		touched:   make(map[int64]struct{}),
		onCreated: onCreated,
	}
	r.batch = newBatch(tx, batchSize, r.committed)
	return r
}

// Seed loads every stored organization into the identity map.
func (r *Resolver) Seed(ctx context.Context) error {
	ids, err := r.orgs.IDsByName(ctx)
	if err != nil {
		return gerrors.Wrap(err, "seed organizations")
	}
	for name, id := range ids {
		r.ids[name] = id
	}
	return nil
}

// Resolve returns the identifier for name and whether this call created it.
func (r *Resolver) Resolve(ctx context.Context, name string) (int64, bool, error) {
	if id, ok := r.ids[name]; ok {
		if _, seen := r.touched[id]; !seen {
			r.reused++
		}
		r.touched[id] = struct{}{}
		return id, false, nil
	}

	txCtx, err := r.batch.Context(ctx)
	if err != nil {
		return 0, false, err
	}
	o, err := r.orgs.Create(txCtx, organization.New(name))
	if err != nil {
		return 0, false, gerrors.Wrapf(err, "create organization %q", name)
	}
	r.ids[name] = o.ID()
	r.touched[o.ID()] = struct{}{}
	r.pending = append(r.pending, o)
	if err := r.batch.Step(ctx); err != nil {
		return 0, false, err
	}
	return o.ID(), true, nil
}

// Flush commits organizations created since the last full batch.
func (r *Resolver) Flush(ctx context.Context) error {
	return r.batch.Commit(ctx)
}

// Abort rolls back the uncommitted organizations.
func (r *Resolver) Abort(ctx context.Context) {
	r.batch.Rollback(ctx)
	for _, o := range r.pending {
		delete(r.ids, o.Name())
		delete(r.touched, o.ID())
	}
	r.pending = nil
}

func (r *Resolver) committed() {
	for _, o := range r.pending {
		r.created = append(r.created, o.ID())
		if r.onCreated != nil {
			r.onCreated(o)
		}
	}
	r.pending = nil
}

// Touched returns every identifier resolved in this run, sorted.
func (r *Resolver) Touched() []int64 {
	out := make([]int64, 0, len(r.touched))
	for id := range r.touched {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Created returns the committed organizations created in this run.
func (r *Resolver) Created() []int64 {
	return append([]int64(nil), r.created...)
}

func (r *Resolver) Reused() int {
	return r.reused
}

func (r *Resolver) Commits() int {
	return r.batch.commits
}
