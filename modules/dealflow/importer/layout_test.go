package importer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
)

func defaultHeader() []string {
	h := []string{DefaultOrganizationHeader}
	for _, s := range fund.Schema {
		h = append(h, defaultHeaders[s.Field])
	}
	return h
}

func TestDefaultLayout_BindsSourceHeader(t *testing.T) {
	header := defaultHeader()
	// column order in the source is irrelevant
	header[0], header[5] = header[5], header[0]

	b, err := DefaultLayout().Bind(header)
	require.NoError(t, err)
	assert.Equal(t, 5, b.organization)
	assert.Len(t, b.columns, len(fund.Schema))
	assert.Equal(t, "Mangement Fee (%)", defaultHeaders[fund.ManagementFee])
}

func TestLayout_BindCollectsEveryProblem(t *testing.T) {
	l := Layout{
		Organization: "General Partner",
		Columns: map[fund.Field]string{
			fund.FundName:        "Fund",
			fund.Vintage:         "Vintage",
			fund.Status:          "Fund",
			fund.Field("colour"): "Colour",
			fund.NetIRR:          "IRR",
		},
	}
	_, err := l.Bind([]string{"General Partner", "Fund", "Vintage", "Vintage", "Colour"})

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"IRR"}, cerr.Missing)
	assert.Len(t, cerr.Duplicates, 2)
	assert.Contains(t, cerr.Duplicates, "Vintage")
	assert.Equal(t, []string{"colour"}, cerr.Unknown)
	assert.Contains(t, cerr.Error(), "missing columns: IRR")
}

func TestLayout_BindRequiresOrganizationColumn(t *testing.T) {
	_, err := Layout{Organization: "GP"}.Bind([]string{"General Partner"})

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"GP"}, cerr.Missing)
}

func TestLayout_RequiredFieldMustBeMapped(t *testing.T) {
	l := Layout{
		Organization: "GP",
		Columns:      map[fund.Field]string{fund.FundName: "Fund"},
		Required:     []fund.Field{fund.FundName, fund.Vintage},
	}
	_, err := l.Bind([]string{"GP", "Fund"})

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"vintage (required but not mapped)"}, cerr.Missing)
}

func TestLoadLayout_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
organization: Manager
columns:
  fund_name: Fund Name
  management_fee: Management Fee (%)
  unrealized: "-"
required: [fund_name]
`), 0o600))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "Manager", l.Organization)
	assert.Equal(t, "Fund Name", l.Columns[fund.FundName])
	assert.Equal(t, "Management Fee (%)", l.Columns[fund.ManagementFee])
	assert.Equal(t, "Vintage", l.Columns[fund.Vintage])
	_, mapped := l.Columns[fund.Unrealized]
	assert.False(t, mapped)
	assert.Equal(t, []fund.Field{fund.FundName}, l.Required)
}

func TestLoadLayout_Errors(t *testing.T) {
	_, err := LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns: [1, 2"), 0o600))
	_, err = LoadLayout(path)
	require.Error(t, err)
}

func TestLoadLayout_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
organization = "Manager"
required = ["fund_name"]

[columns]
fund_name = "Fund Name"
unrealized = "-"
`), 0o600))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "Manager", l.Organization)
	assert.Equal(t, "Fund Name", l.Columns[fund.FundName])
	_, mapped := l.Columns[fund.Unrealized]
	assert.False(t, mapped)
	assert.Equal(t, []fund.Field{fund.FundName}, l.Required)
}
