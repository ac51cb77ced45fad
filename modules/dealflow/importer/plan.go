package importer

import (
	"context"
	"fmt"
	"io"
	"sort"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/pkg/tabular"
)

// Plan is what a run over the same table would do, computed without writing.
type Plan struct {
	Source          string       `json:"source"`
	RowsRead        int          `json:"rows_read"`
	Records         int          `json:"records"`
	Skipped         []*SkipError `json:"skipped"`
	NumericWarnings int          `json:"numeric_warnings"`

	Organizations         int        `json:"organizations"`
	ExistingOrganizations int        `json:"existing_organizations"`
	NewOrganizations      []string   `json:"new_organizations"`
	FundPolicy            FundPolicy `json:"fund_policy"`
	// NearMatches flags new names that look like existing organizations.
	NearMatches []NearMatch `json:"near_matches"`
}

// Plan binds and normalizes table and matches its organization names against
// storage. Nothing is written.
func (im *Importer) Plan(ctx context.Context, table *tabular.Table) (*Plan, error) {
	binding, err := im.opts.Layout.Bind(table.Header)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "import.plan")
	defer span.End()

	p := &Plan{
		Source:           table.Source,
		RowsRead:         len(table.Rows),
		Skipped:          []*SkipError{},
		NewOrganizations: []string{},
		FundPolicy:       im.opts.FundPolicy,
	}
	n := NewNormalizer(binding)
	names := make(map[string]struct{})
	for i, row := range table.Rows {
		rec, err := n.Normalize(i, row)
		var skip *SkipError
		if gerrors.As(err, &skip) {
			p.Skipped = append(p.Skipped, skip)
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Records++
		p.NumericWarnings += rec.Warnings
		names[rec.Organization] = struct{}{}
	}

	existing, err := im.orgs.IDsByName(ctx)
	if err != nil {
		return nil, err
	}
	p.Organizations = len(names)
	for name := range names {
		if _, ok := existing[name]; ok {
			p.ExistingOrganizations++
			continue
		}
		p.NewOrganizations = append(p.NewOrganizations, name)
	}
	sort.Strings(p.NewOrganizations)
	p.NearMatches = nearMatches(p.NewOrganizations, existing)
	return p, nil
}

func (p *Plan) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"DRY RUN (nothing written)\nSource: %s\nRows read: %d\nRows to import: %d\nRows skipped: %d\n"+
			"Numeric warnings: %d\nOrganizations: %d (%d existing, %d new)\nFund policy: %s\n",
		p.Source, p.RowsRead, p.Records, len(p.Skipped), p.NumericWarnings,
		p.Organizations, p.ExistingOrganizations, len(p.NewOrganizations), p.FundPolicy,
	)
	if err != nil {
		return err
	}
	for _, sk := range p.Skipped {
		if _, err := fmt.Fprintf(w, "  skip line %d: %s\n", sk.Line, sk.Reason); err != nil {
			return err
		}
	}
	if len(p.NearMatches) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Possible duplicates of existing organizations:"); err != nil {
		return err
	}
	for _, m := range p.NearMatches {
		if _, err := fmt.Fprintf(w, "  %q ~ %q\n", m.Name, m.Existing); err != nil {
			return err
		}
	}
	return nil
}
