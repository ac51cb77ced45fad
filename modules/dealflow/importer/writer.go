package importer

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/pkg/repo"
)

// FundPolicy decides what happens to a row describing a fund that is
// already stored.
type FundPolicy string

const (
	// PolicyAppend inserts every row; re-importing a file duplicates its funds.
	PolicyAppend FundPolicy = "append"
	// PolicySkipExisting skips rows whose organization, name and vintage
	// match a stored fund.
	PolicySkipExisting FundPolicy = "skip-existing"
)

func ParseFundPolicy(s string) (FundPolicy, error) {
	switch p := FundPolicy(s); p {
	case PolicyAppend, PolicySkipExisting:
		return p, nil
	case "":
		return PolicyAppend, nil
	default:
		return "", gerrors.Errorf("unknown fund policy %q", s)
	}
}

// Writer inserts funds in input order, committing every batchSize inserts.
type Writer struct {
	funds  fund.Repository
	batch  *batch
	policy FundPolicy

	duplicates int
	pending    []int64
	committed  []int64
}

func NewWriter(tx repo.Transactor, funds fund.Repository, batchSize int, policy FundPolicy) *Writer {
	w := &Writer{funds: funds, policy: policy}
	w.batch = newBatch(tx, batchSize, w.flushed)
	return w
}

// Write stores rec under organizationID. It reports false when the policy
// skipped the row.
func (w *Writer) Write(ctx context.Context, rec Record, organizationID int64) (bool, error) {
	txCtx, err := w.batch.Context(ctx)
	if err != nil {
		return false, err
	}
	f := fund.New(organizationID, rec.Attributes)

	if w.policy == PolicySkipExisting {
		exists, err := w.funds.Exists(txCtx, organizationID, f.Name(), f.Vintage())
		if err != nil {
			return false, err
		}
		if exists {
			w.duplicates++
			return false, nil
		}
	}

	created, err := w.funds.Create(txCtx, f)
	if err != nil {
		return false, gerrors.Wrap(err, "write fund")
	}
	w.pending = append(w.pending, created.ID())
	return true, w.batch.Step(ctx)
}

// Flush commits the last partial batch.
func (w *Writer) Flush(ctx context.Context) error {
	return w.batch.Commit(ctx)
}

// Abort rolls back the funds written since the last commit.
func (w *Writer) Abort(ctx context.Context) {
	w.batch.Rollback(ctx)
	w.pending = nil
}

func (w *Writer) flushed() {
	w.committed = append(w.committed, w.pending...)
	w.pending = nil
}

// Committed returns the identifiers of funds whose batch was committed.
func (w *Writer) Committed() []int64 {
	return append([]int64(nil), w.committed...)
}

func (w *Writer) Duplicates() int { return w.duplicates }
func (w *Writer) Commits() int    { return w.batch.commits }
