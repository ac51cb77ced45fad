package importer

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/pkg/repo"
)

// batch keeps one transaction open across size units of work and commits it
// when the size is reached. The transaction is begun lazily.
type batch struct {
	tx       repo.Transactor
	size     int
	txCtx    context.Context
	open     repo.Transaction
	pending  int
	commits  int
	onCommit func()
}

func newBatch(tx repo.Transactor, size int, onCommit func()) *batch {
	if size < 1 {
		size = 1
	}
	return &batch{tx: tx, size: size, onCommit: onCommit}
}

// Context returns the context of the open transaction, beginning one if needed.
func (b *batch) Context(ctx context.Context) (context.Context, error) {
	if b.open != nil {
		return b.txCtx, nil
	}
	txCtx, t, err := b.tx.Begin(ctx)
	if err != nil {
		return nil, gerrors.Wrap(err, "begin transaction")
	}
	b.txCtx, b.open = txCtx, t
	return txCtx, nil
}

// Step records one unit of work and commits when the batch is full.
func (b *batch) Step(ctx context.Context) error {
	b.pending++
	if b.pending >= b.size {
		return b.Commit(ctx)
	}
	return nil
}

// Commit commits the open transaction, if any.
func (b *batch) Commit(ctx context.Context) error {
	if b.open == nil {
		return nil
	}
	t := b.open
	b.open, b.txCtx = nil, nil
	b.pending = 0
	if err := t.Commit(ctx); err != nil {
		_ = t.Rollback(context.WithoutCancel(ctx))
		return gerrors.Wrap(err, "commit batch")
	}
	b.commits++
	if b.onCommit != nil {
		b.onCommit()
	}
	return nil
}

// Rollback discards the uncommitted units of work.
func (b *batch) Rollback(ctx context.Context) {
	if b.open == nil {
		return
	}
	_ = b.open.Rollback(context.WithoutCancel(ctx))
	b.open, b.txCtx = nil, nil
	b.pending = 0
}
