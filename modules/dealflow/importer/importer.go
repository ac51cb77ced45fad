// Package importer loads a tabular fund directory into storage: rows are
// normalized, organizations resolved to identifiers, funds written in
// batches and the per-organization fund counts recomputed.
package importer

import (
	"context"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/composables"
	"github.com/iota-uz/dealflow/pkg/metrics"
	"github.com/iota-uz/dealflow/pkg/repo"
	"github.com/iota-uz/dealflow/pkg/tabular"
)

var tracer = otel.Tracer("dealflow-importer")

const (
	DefaultOrganizationBatchSize = 100
	DefaultFundBatchSize         = 500
	DefaultTopK                  = 10
)

type Options struct {
	OrganizationBatchSize int
	FundBatchSize         int
	TopK                  int
	FundPolicy            FundPolicy
	// Layout defaults to DefaultLayout().
	Layout *Layout

	// Logger defaults to the logger carried by the run context.
	Logger    *logrus.Entry
	Metrics   *metrics.ImportMetrics
	Publisher Publisher
	Observer  Observer
}

type Importer struct {
	tx    repo.Transactor
	orgs  organization.Repository
	funds fund.Repository
	opts  Options
}

func New(tx repo.Transactor, orgs organization.Repository, funds fund.Repository, opts Options) *Importer {
	if opts.OrganizationBatchSize < 1 {
		opts.OrganizationBatchSize = DefaultOrganizationBatchSize
	}
	if opts.FundBatchSize < 1 {
		opts.FundBatchSize = DefaultFundBatchSize
	}
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	if opts.FundPolicy == "" {
		opts.FundPolicy = PolicyAppend
	}
	if opts.Layout == nil {
		l := DefaultLayout()
		opts.Layout = &l
	}
	return &Importer{tx: tx, orgs: orgs, funds: funds, opts: opts}
}

// rowError ties a persistence failure to the row being processed.
type rowError struct {
	rec *Record
	err error
}

func (e *rowError) Error() string { return e.err.Error() }
func (e *rowError) Unwrap() error { return e.err }

type run struct {
	im       *Importer
	id       string
	table    *tabular.Table
	log      *logrus.Entry
	state    State
	started  time.Time
	records  []Record
	summary  *Summary
	resolver *Resolver
	writer   *Writer
}

// Run imports table. A layout that does not fit the header fails with a
// *ConfigError before anything is written; a storage failure rolls back the
// open batch and returns a *RunError.
func (im *Importer) Run(ctx context.Context, table *tabular.Table) (*Summary, error) {
	binding, err := im.opts.Layout.Bind(table.Header)
	if err != nil {
		return nil, err
	}

	r := &run{
		im:      im,
		id:      uuid.NewString(),
		table:   table,
		started: time.Now().UTC(),
	}
	log := im.opts.Logger
	if log == nil {
		log = composables.UseLogger(ctx)
	}
	r.log = log.WithFields(logrus.Fields{"run-id": r.id, "source": table.Source})
	r.summary = &Summary{
		RunID:     r.id,
		Source:    table.Source,
		StartedAt: r.started,
		RowsRead:  len(table.Rows),
		Skipped:   []*SkipError{},
	}
	r.resolver = NewResolver(im.tx, im.orgs, im.opts.OrganizationBatchSize, r.organizationCreated)
	r.writer = NewWriter(im.tx, im.funds, im.opts.FundBatchSize, im.opts.FundPolicy)

	ctx, span := tracer.Start(ctx, "import.run", trace.WithAttributes(
		attribute.String("import.run_id", r.id),
		attribute.String("import.source", table.Source),
		attribute.Int("import.rows", len(table.Rows)),
	))
	defer span.End()

	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{Normalizing, func(ctx context.Context) error { return r.normalize(ctx, NewNormalizer(binding)) }},
		{ResolvingOrganizations, r.resolve},
		{WritingFunds, r.write},
		{RecomputingAggregates, r.recompute},
	}
	for _, s := range steps {
		if err := r.phase(ctx, s.state, s.fn); err != nil {
			rerr := r.abort(ctx, err)
			span.SetStatus(codes.Error, rerr.Error())
			return nil, rerr
		}
	}
	r.transition(Summarized)
	r.finish()
	r.log.WithFields(logrus.Fields{
		"organizations-created": r.summary.OrganizationsCreated,
		"funds-written":         r.summary.FundsWritten,
		"skipped":               len(r.summary.Skipped),
	}).Info("import completed")
	if p := im.opts.Publisher; p != nil {
		p.Publish(&ImportCompletedEvent{RunID: r.id, Summary: r.summary})
	}
	return r.summary, nil
}

func (r *run) transition(to State) {
	from := r.state
	if !from.CanTransition(to) {
		panic(fmt.Sprintf("importer: invalid transition %s -> %s", from, to))
	}
	r.state = to
	r.log.WithFields(logrus.Fields{"from": from.String(), "state": to.String()}).Info("import state changed")
	if obs := r.im.opts.Observer; obs != nil {
		obs(from, to)
	}
}

func (r *run) phase(ctx context.Context, s State, fn func(context.Context) error) error {
	r.transition(s)
	ctx, span := tracer.Start(ctx, "import."+s.String())
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *run) normalize(ctx context.Context, n *Normalizer) error {
	m := r.im.opts.Metrics
	for i, row := range r.table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := n.Normalize(i, row)
		var skip *SkipError
		if gerrors.As(err, &skip) {
			r.summary.Skipped = append(r.summary.Skipped, skip)
			m.RowSkipped()
			r.log.WithFields(logrus.Fields{"row": i, "line": row.Line}).Debug(skip.Reason)
			continue
		}
		if err != nil {
			return err
		}
		r.summary.NumericWarnings += rec.Warnings
		m.RowNormalized()
		r.records = append(r.records, rec)
	}
	m.NumericWarnings(r.summary.NumericWarnings)
	return nil
}

func (r *run) resolve(ctx context.Context) error {
	if err := r.resolver.Seed(ctx); err != nil {
		return err
	}
	for i := range r.records {
		rec := &r.records[i]
		if err := ctx.Err(); err != nil {
			return &rowError{rec: rec, err: err}
		}
		if _, _, err := r.resolver.Resolve(ctx, rec.Organization); err != nil {
			return &rowError{rec: rec, err: err}
		}
	}
	return r.lastRowError(r.resolver.Flush(ctx))
}

func (r *run) write(ctx context.Context) error {
	for i := range r.records {
		rec := &r.records[i]
		if err := ctx.Err(); err != nil {
			return &rowError{rec: rec, err: err}
		}
		id, _, err := r.resolver.Resolve(ctx, rec.Organization)
		if err == nil {
			_, err = r.writer.Write(ctx, *rec, id)
		}
		if err != nil {
			return &rowError{rec: rec, err: err}
		}
	}
	return r.lastRowError(r.writer.Flush(ctx))
}

// lastRowError attributes a failure of the final partial batch to the last
// record, which is the row the batch ended on.
func (r *run) lastRowError(err error) error {
	if err == nil || len(r.records) == 0 {
		return err
	}
	return &rowError{rec: &r.records[len(r.records)-1], err: err}
}

func (r *run) recompute(ctx context.Context) error {
	counts, err := NewRecomputer(r.im.tx, r.im.orgs).Recompute(ctx, r.resolver.Touched())
	if err != nil {
		return err
	}
	r.log.WithField("organizations", len(counts)).Debug("fund counts recomputed")

	if r.summary.TotalOrganizations, err = r.im.orgs.Count(ctx); err != nil {
		return err
	}
	if r.summary.TotalFunds, err = r.im.funds.Count(ctx); err != nil {
		return err
	}
	top, err := r.im.orgs.Top(ctx, r.im.opts.TopK)
	if err != nil {
		return err
	}
	r.summary.Top = make([]RankedOrganization, 0, len(top))
	for _, o := range top {
		r.summary.Top = append(r.summary.Top, RankedOrganization{ID: o.ID(), Name: o.Name(), FundCount: o.FundCount()})
	}
	r.summary.AverageFunds = averageFunds(r.summary.TotalFunds, r.summary.TotalOrganizations)
	return nil
}

func (r *run) organizationCreated(o organization.Organization) {
	r.im.opts.Metrics.OrganizationCreated()
	if p := r.im.opts.Publisher; p != nil {
		p.Publish(&OrganizationCreatedEvent{RunID: r.id, Organization: o})
	}
}

// abort rolls back open batches and reports the failure with the work that
// was committed before it.
func (r *run) abort(ctx context.Context, cause error) *RunError {
	failed := r.state
	r.resolver.Abort(ctx)
	r.writer.Abort(ctx)
	r.transition(Aborted)
	r.finish()

	rerr := &RunError{State: failed, RowIndex: -1, Err: cause, Manifest: r.summary.Manifest}
	var re *rowError
	if gerrors.As(cause, &re) {
		rerr.RowIndex, rerr.Line, rerr.Err = re.rec.Index, re.rec.Line, re.err
	}
	r.log.WithError(rerr.Err).WithFields(logrus.Fields{
		"failed-state": failed.String(),
		"row":          rerr.RowIndex,
		"line":         rerr.Line,
	}).Error("import aborted")
	if p := r.im.opts.Publisher; p != nil {
		p.Publish(&ImportAbortedEvent{RunID: r.id, Err: rerr})
	}
	return rerr
}

// finish fills the counters shared by completed and aborted runs.
func (r *run) finish() {
	s := r.summary
	s.State = r.state
	s.FinishedAt = time.Now().UTC()
	created := r.resolver.Created()
	s.OrganizationsCreated = len(created)
	s.OrganizationsReused = r.resolver.Reused()
	s.FundsWritten = len(r.writer.Committed())
	s.FundDuplicates = r.writer.Duplicates()
	s.Manifest = &Manifest{
		Version:              ManifestVersion,
		RunID:                r.id,
		Source:               s.Source,
		State:                r.state,
		StartedAt:            s.StartedAt,
		FinishedAt:           s.FinishedAt,
		OrganizationsCreated: created,
		OrganizationsTouched: r.resolver.Touched(),
		FundsInserted:        r.writer.Committed(),
		Summary: ManifestCounts{
			RowsRead:             s.RowsRead,
			RowsSkipped:          len(s.Skipped),
			OrganizationsCreated: len(created),
			FundsInserted:        s.FundsWritten,
		},
	}

	m := r.im.opts.Metrics
	m.FundsWritten(s.FundsWritten)
	m.FundDuplicates(s.FundDuplicates)
	m.Commits("organizations", r.resolver.Commits())
	m.Commits("funds", r.writer.Commits())
	m.RunFinished(r.state.String(), s.FinishedAt.Sub(s.StartedAt).Seconds())
}
