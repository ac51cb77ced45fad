package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guregu/null/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/dealflow/migrations"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/infrastructure/sqlite"
	"github.com/iota-uz/dealflow/pkg/eventbus"
	"github.com/iota-uz/dealflow/pkg/metrics"
	"github.com/iota-uz/dealflow/pkg/tabular"
)

type testEnv struct {
	store *sqlite.Store
	orgs  organization.Repository
	funds fund.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "dealflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, migrations.Up(context.Background(), store.DB(), "sqlite"))
	return &testEnv{
		store: store,
		orgs:  sqlite.NewOrganizationRepository(store),
		funds: sqlite.NewFundRepository(store),
	}
}

func (e *testEnv) importer(opts Options) *Importer {
	if opts.Layout == nil {
		l := testLayout()
		opts.Layout = &l
	}
	return New(e.store, e.orgs, e.funds, opts)
}

func newTable(rows ...[]string) *tabular.Table {
	t := &tabular.Table{Source: "funds.csv", Header: testHeader}
	for i, cells := range rows {
		t.Rows = append(t.Rows, tabular.Row{Line: i + 2, Cells: cells})
	}
	return t
}

func acmeGlobex() *tabular.Table {
	return newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2021"},
		[]string{"Globex", "Fund A", "2020"},
	)
}

func (e *testEnv) fundsOf(t *testing.T, orgID int64) []fund.Fund {
	t.Helper()
	out, _, err := e.funds.GetPaginated(context.Background(), &fund.FindParams{OrganizationID: orgID, Limit: 500})
	require.NoError(t, err)
	return out
}

func (e *testEnv) org(t *testing.T, name string) organization.Organization {
	t.Helper()
	o, err := e.orgs.GetByName(context.Background(), name)
	require.NoError(t, err)
	return o
}

func TestImporter_AcmeGlobex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var transitions []State
	summary, err := env.importer(Options{
		Observer: func(_, to State) { transitions = append(transitions, to) },
	}).Run(ctx, acmeGlobex())
	require.NoError(t, err)

	assert.Equal(t, Summarized, summary.State)
	assert.Equal(t, []State{Normalizing, ResolvingOrganizations, WritingFunds, RecomputingAggregates, Summarized}, transitions)
	assert.Equal(t, 3, summary.RowsRead)
	assert.Empty(t, summary.Skipped)
	assert.Equal(t, 2, summary.OrganizationsCreated)
	assert.Zero(t, summary.OrganizationsReused)
	assert.Equal(t, 3, summary.FundsWritten)
	assert.EqualValues(t, 2, summary.TotalOrganizations)
	assert.EqualValues(t, 3, summary.TotalFunds)
	assert.InDelta(t, 1.5, summary.AverageFunds, 1e-9)

	acme, globex := env.org(t, "Acme"), env.org(t, "Globex")
	assert.Equal(t, 2, acme.FundCount())
	assert.Equal(t, 1, globex.FundCount())

	acmeFunds := env.fundsOf(t, acme.ID())
	require.Len(t, acmeFunds, 2)
	assert.Equal(t, null.StringFrom("Fund I"), acmeFunds[0].Name())
	assert.Equal(t, null.FloatFrom(2019), acmeFunds[0].Vintage())
	assert.Equal(t, null.StringFrom("Fund II"), acmeFunds[1].Name())
	globexFunds := env.fundsOf(t, globex.ID())
	require.Len(t, globexFunds, 1)
	assert.Equal(t, null.StringFrom("Fund A"), globexFunds[0].Name())

	require.Len(t, summary.Top, 2)
	assert.Equal(t, RankedOrganization{ID: acme.ID(), Name: "Acme", FundCount: 2}, summary.Top[0])
	assert.Equal(t, "Globex", summary.Top[1].Name)

	m := summary.Manifest
	require.NotNil(t, m)
	assert.Equal(t, summary.RunID, m.RunID)
	assert.ElementsMatch(t, []int64{acme.ID(), globex.ID()}, m.OrganizationsCreated)
	assert.Len(t, m.FundsInserted, 3)
}

func TestImporter_SameNameResolvesToOneOrganization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rows := make([][]string, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, []string{"Acme", "Fund", "2020"})
	}
	rows = append(rows, []string{"acme", "Other", "2020"})
	summary, err := env.importer(Options{OrganizationBatchSize: 1, FundBatchSize: 4}).Run(ctx, newTable(rows...))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.OrganizationsCreated)
	assert.Equal(t, 25, env.org(t, "Acme").FundCount())
	assert.Equal(t, 1, env.org(t, "acme").FundCount())
}

func TestImporter_BlankOrganizationRowProducesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	summary, err := env.importer(Options{}).Run(ctx, newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"   ", "Orphan Fund", "2018"},
		[]string{},
		[]string{"Globex", "Fund A", "2020"},
	))
	require.NoError(t, err)

	require.Len(t, summary.Skipped, 2)
	assert.Equal(t, &SkipError{Index: 1, Line: 3, Reason: ReasonBlankOrganization}, summary.Skipped[0])
	assert.Equal(t, &SkipError{Index: 2, Line: 4, Reason: ReasonMissingOrganizationColumn}, summary.Skipped[1])
	assert.EqualValues(t, 2, summary.TotalOrganizations)
	assert.EqualValues(t, 2, summary.TotalFunds)
}

func TestImporter_NumericSentinelIsAbsent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	summary, err := env.importer(Options{}).Run(ctx, newTable(
		[]string{"Acme", "Fund I", "n/a", "not available", "Open"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NumericWarnings)

	funds := env.fundsOf(t, env.org(t, "Acme").ID())
	require.Len(t, funds, 1)
	assert.False(t, funds[0].Vintage().Valid)
	assert.False(t, funds[0].Get(fund.NetIRR).Valid())
	assert.Equal(t, fund.Text("Open"), funds[0].Get(fund.Status))
}

func TestImporter_RerunReusesOrganizations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	im := env.importer(Options{})

	_, err := im.Run(ctx, acmeGlobex())
	require.NoError(t, err)
	summary, err := im.Run(ctx, newTable(
		[]string{"Globex", "Fund B", "2022"},
		[]string{"Initech", "Fund 1", "2023"},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.OrganizationsCreated)
	assert.Equal(t, 1, summary.OrganizationsReused)
	assert.EqualValues(t, 3, summary.TotalOrganizations)
	assert.Equal(t, 2, env.org(t, "Globex").FundCount())
	assert.Equal(t, []int64{env.org(t, "Globex").ID(), env.org(t, "Initech").ID()}, summary.Manifest.OrganizationsTouched)
}

func TestImporter_AppendPolicyDuplicatesFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	im := env.importer(Options{})

	_, err := im.Run(ctx, acmeGlobex())
	require.NoError(t, err)
	summary, err := im.Run(ctx, acmeGlobex())
	require.NoError(t, err)

	assert.Zero(t, summary.OrganizationsCreated)
	assert.EqualValues(t, 2, summary.TotalOrganizations)
	assert.EqualValues(t, 6, summary.TotalFunds)
	assert.Equal(t, 4, env.org(t, "Acme").FundCount())
}

func TestImporter_SkipExistingPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.importer(Options{}).Run(ctx, acmeGlobex())
	require.NoError(t, err)
	summary, err := env.importer(Options{FundPolicy: PolicySkipExisting}).Run(ctx, newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund III", "2023"},
		[]string{"Acme", "Fund III", "2023"},
		[]string{"Acme", "Fund I", "2020"},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FundsWritten)
	assert.Equal(t, 2, summary.FundDuplicates)
	assert.Equal(t, 4, env.org(t, "Acme").FundCount())
}

func TestImporter_RecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.importer(Options{}).Run(ctx, acmeGlobex())
	require.NoError(t, err)
	acme := env.org(t, "Acme")

	rc := NewRecomputer(env.store, env.orgs)
	first, err := rc.Recompute(ctx, []int64{acme.ID()})
	require.NoError(t, err)
	second, err := rc.Recompute(ctx, []int64{acme.ID()})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, second[acme.ID()])
	assert.Equal(t, 2, env.org(t, "Acme").FundCount())
}

func TestImporter_ConfigErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var transitions []State
	table := acmeGlobex()
	table.Header = []string{"GP", "Fund", "Vintage"}
	_, err := env.importer(Options{
		Observer: func(_, to State) { transitions = append(transitions, to) },
	}).Run(ctx, table)

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"General Partner", "Net IRR (%)", "Status"}, cerr.Missing)
	assert.Empty(t, transitions)
	n, err := env.orgs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImporter_CancelledContextAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.importer(Options{}).Run(ctx, acmeGlobex())

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, Normalizing, rerr.State)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rerr.Manifest.FundsInserted)
}

func TestImporter_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bus := eventbus.NewEventPublisher(nil)

	var created []string
	var completed *ImportCompletedEvent
	bus.Subscribe(func(e *OrganizationCreatedEvent) { created = append(created, e.Organization.Name()) })
	bus.Subscribe(func(e *ImportCompletedEvent) { completed = e })

	summary, err := env.importer(Options{Publisher: bus, OrganizationBatchSize: 1}).Run(ctx, acmeGlobex())
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme", "Globex"}, created)
	require.NotNil(t, completed)
	assert.Equal(t, summary.RunID, completed.RunID)
}

func TestImporter_Plan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.importer(Options{}).Run(ctx, newTable([]string{"Acme", "Fund I", "2019"}))
	require.NoError(t, err)

	plan, err := env.importer(Options{}).Plan(ctx, newTable(
		[]string{"Acme", "Fund II", "2021"},
		[]string{"Globex", "Fund A", "bad"},
		[]string{"Initech", "Fund 1", "2020"},
		[]string{"", "Fund X", "2020"},
	))
	require.NoError(t, err)

	assert.Equal(t, 4, plan.RowsRead)
	assert.Equal(t, 3, plan.Records)
	assert.Len(t, plan.Skipped, 1)
	assert.Equal(t, 1, plan.NumericWarnings)
	assert.Equal(t, 3, plan.Organizations)
	assert.Equal(t, 1, plan.ExistingOrganizations)
	assert.Equal(t, []string{"Globex", "Initech"}, plan.NewOrganizations)

	n, err := env.funds.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	orgs, err := env.orgs.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, orgs)

	var buf bytes.Buffer
	require.NoError(t, plan.WriteText(&buf))
	assert.Contains(t, buf.String(), "Organizations: 3 (1 existing, 2 new)")
}

func TestSummary_Render(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	summary, err := env.importer(Options{TopK: 1}).Run(ctx, newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"", "Fund X", "2020"},
	))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "IMPORT SUMMARY")
	assert.Contains(t, out, "Average funds per organization:  1.00")
	assert.Contains(t, out, "Top 1 organizations by number of funds:")
	assert.Contains(t, out, "  1. Acme: 1 funds")
	assert.Contains(t, out, "line 3: blank organization name")

	b, err := json.Marshal(summary)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "Summarized", decoded["state"])
	assert.EqualValues(t, 1, decoded["total_funds"])
}

func TestAverageFunds(t *testing.T) {
	assert.Zero(t, averageFunds(0, 0))
	assert.InDelta(t, 2.5, averageFunds(5, 2), 1e-9)
}

func TestParseFundPolicy(t *testing.T) {
	p, err := ParseFundPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAppend, p)
	p, err = ParseFundPolicy("skip-existing")
	require.NoError(t, err)
	assert.Equal(t, PolicySkipExisting, p)
	_, err = ParseFundPolicy("upsert")
	require.Error(t, err)
}

func TestNew_ZeroOptionsUseDefaults(t *testing.T) {
	im := New(nil, nil, nil, Options{TopK: -3})
	assert.Equal(t, DefaultTopK, im.opts.TopK)
	assert.Equal(t, DefaultOrganizationBatchSize, im.opts.OrganizationBatchSize)
	assert.Equal(t, DefaultFundBatchSize, im.opts.FundBatchSize)
	assert.Equal(t, PolicyAppend, im.opts.FundPolicy)
	require.NotNil(t, im.opts.Layout)

	ctx := context.Background()
	env := newTestEnv(t)
	summary, err := env.importer(Options{}).Run(ctx, acmeGlobex())
	require.NoError(t, err)
	assert.Len(t, summary.Top, 2)
}

func TestImporter_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()

	_, err := env.importer(Options{Metrics: metrics.NewImportMetrics(reg), FundBatchSize: 2}).Run(ctx, newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2021"},
		[]string{"Globex", "Fund A", "2020"},
		[]string{"", "Fund X", "2020"},
	))
	require.NoError(t, err)

	expected := `
# HELP dealflow_import_commits_total Batch commits by pipeline phase.
# TYPE dealflow_import_commits_total counter
dealflow_import_commits_total{phase="funds"} 2
dealflow_import_commits_total{phase="organizations"} 1
# HELP dealflow_import_funds_written_total Funds inserted by imports.
# TYPE dealflow_import_funds_written_total counter
dealflow_import_funds_written_total 3
# HELP dealflow_import_rows_total Source rows by normalization outcome.
# TYPE dealflow_import_rows_total counter
dealflow_import_rows_total{outcome="normalized"} 3
dealflow_import_rows_total{outcome="skipped"} 1
# HELP dealflow_import_runs_total Import runs by final state.
# TYPE dealflow_import_runs_total counter
dealflow_import_runs_total{state="Summarized"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"dealflow_import_commits_total",
		"dealflow_import_funds_written_total",
		"dealflow_import_rows_total",
		"dealflow_import_runs_total",
	))
}

func TestImporter_PlanFlagsNearDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.importer(Options{}).Run(ctx, newTable(
		[]string{"Acme Capital", "Fund I", "2019"},
		[]string{"Globex Partners", "Fund A", "2020"},
	))
	require.NoError(t, err)

	plan, err := env.importer(Options{}).Plan(ctx, newTable(
		[]string{"ACME CAPITAL", "Fund II", "2021"},
		[]string{"Globex Partners LLC", "Fund B", "2021"},
		[]string{"Initech", "Fund 1", "2020"},
		[]string{"Acme", "Fund III", "2022"},
	))
	require.NoError(t, err)

	assert.Equal(t, []NearMatch{
		{Name: "ACME CAPITAL", Existing: "Acme Capital"},
		{Name: "Globex Partners LLC", Existing: "Globex Partners"},
	}, plan.NearMatches)

	var buf bytes.Buffer
	require.NoError(t, plan.WriteText(&buf))
	assert.Contains(t, buf.String(), `"ACME CAPITAL" ~ "Acme Capital"`)
}
