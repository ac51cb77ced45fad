package importer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	gerrors "github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
)

const DefaultOrganizationHeader = "General Partner"

// unmapped drops a field from the layout in a layout file.
const unmapped = "-"

var defaultHeaders = map[fund.Field]string{
	fund.FundName:          "Fund",
	fund.Vintage:           "Vintage",
	fund.Size:              "Size (USD)",
	fund.Status:            "Status",
	fund.FundInceptionDate: "Fund Inception Date",
	fund.Strategy:          "Strategy",
	fund.SubStrategy:       "Sub-strategy",
	fund.Sector:            "Sector",
	fund.Industry:          "Industry",
	fund.Region:            "Region",
	fund.CountryRegion:     "Country/Region",
	fund.NetIRR:            "Net IRR (%)",
	fund.Qtl:               "Qtl",
	fund.Invested:          "Invested",
	fund.PctOfTgt:          "% of Tgt",
	fund.Raised:            "Raised",
	fund.CurrInv:           "Curr Inv",
	fund.DPI:               "DPI",
	fund.Amt:               "Amt",
	fund.Pct:               "Pct",
	fund.DryPowder:         "Dry Powder",
	fund.HistInv:           "Hist Inv",
	fund.MOIC:              "MOIC",
	fund.ManagementFee:     "Mangement Fee (%)",
	fund.PIC:               "PIC (%)",
	fund.FirstQtl:          "1st",
	fund.SecondQtl:         "2nd",
	fund.ThirdQtl:          "3rd",
	fund.FourthQtl:         "4th",
	fund.NAQtl:             "N.A.",
	fund.TotalQtl:          "Total",
	fund.RVPI:              "RVPI",
	fund.Target:            "Target",
	fund.TimeInMkt:         "Time in Mkt",
	fund.TotInv:            "Tot Inv",
	fund.Unrealized:        "Unrealized",
}

// Layout maps source headers to the organization name and fund attributes.
// Required fields must be present for a row to be imported.
type Layout struct {
	Organization string                `yaml:"organization" toml:"organization"`
	Columns      map[fund.Field]string `yaml:"columns" toml:"columns"`
	Required     []fund.Field          `yaml:"required" toml:"required"`
}

func DefaultLayout() Layout {
	cols := make(map[fund.Field]string, len(defaultHeaders))
	for f, h := range defaultHeaders {
		cols[f] = h
	}
	return Layout{Organization: DefaultOrganizationHeader, Columns: cols}
}

// LoadLayout reads a YAML (or, with a .toml extension, TOML) layout file on
// top of DefaultLayout. A column mapped to "-" is not imported.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, gerrors.Wrap(err, "read layout")
	}
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		unmarshal = toml.Unmarshal
	}
	var file Layout
	if err := unmarshal(data, &file); err != nil {
		return Layout{}, gerrors.Wrapf(err, "parse layout %s", path)
	}

	l := DefaultLayout()
	if h := strings.TrimSpace(file.Organization); h != "" {
		l.Organization = h
	}
	for f, h := range file.Columns {
		h = strings.TrimSpace(h)
		if h == unmapped {
			delete(l.Columns, f)
			continue
		}
		l.Columns[f] = h
	}
	l.Required = file.Required
	return l, nil
}

type boundColumn struct {
	field fund.Field
	kind  fund.Kind
	index int
}

// Binding is a Layout resolved against one source header.
type Binding struct {
	organization int
	columns      []boundColumn
	required     []fund.Field
}

// Bind resolves every mapped header to its column index. All problems are
// collected into a single *ConfigError.
func (l Layout) Bind(header []string) (*Binding, error) {
	positions := make(map[string][]int, len(header))
	for i, h := range header {
		positions[strings.TrimSpace(h)] = append(positions[strings.TrimSpace(h)], i)
	}

	cerr := &ConfigError{}
	owners := make(map[string]string)
	lookup := func(owner, h string) int {
		if prev, ok := owners[h]; ok {
			cerr.Duplicates = append(cerr.Duplicates, h+" (mapped by "+prev+" and "+owner+")")
			return -1
		}
		owners[h] = owner
		idx := positions[h]
		switch len(idx) {
		case 0:
			cerr.Missing = append(cerr.Missing, h)
			return -1
		case 1:
			return idx[0]
		default:
			cerr.Duplicates = append(cerr.Duplicates, h)
			return -1
		}
	}

	b := &Binding{organization: -1}
	if strings.TrimSpace(l.Organization) == "" {
		cerr.Missing = append(cerr.Missing, "organization column is not configured")
	} else {
		b.organization = lookup("organization", strings.TrimSpace(l.Organization))
	}

	for _, s := range fund.Schema {
		h, ok := l.Columns[s.Field]
		if !ok {
			continue
		}
		if idx := lookup(string(s.Field), strings.TrimSpace(h)); idx >= 0 {
			b.columns = append(b.columns, boundColumn{field: s.Field, kind: s.Kind, index: idx})
		}
	}
	for f := range l.Columns {
		if _, ok := fund.Lookup(f); !ok {
			cerr.Unknown = append(cerr.Unknown, string(f))
		}
	}
	for _, f := range l.Required {
		if _, ok := fund.Lookup(f); !ok {
			cerr.Unknown = append(cerr.Unknown, string(f))
			continue
		}
		if _, ok := l.Columns[f]; !ok {
			cerr.Missing = append(cerr.Missing, string(f)+" (required but not mapped)")
			continue
		}
		b.required = append(b.required, f)
	}

	if !cerr.empty() {
		sort.Strings(cerr.Missing)
		sort.Strings(cerr.Duplicates)
		sort.Strings(cerr.Unknown)
		return nil, cerr
	}
	return b, nil
}
