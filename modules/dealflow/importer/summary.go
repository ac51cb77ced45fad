package importer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

type RankedOrganization struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FundCount int    `json:"fund_count"`
}

// Summary describes a finished run and the state of storage after it.
type Summary struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RowsRead        int          `json:"rows_read"`
	Skipped         []*SkipError `json:"skipped"`
	NumericWarnings int          `json:"numeric_warnings"`

	OrganizationsCreated int `json:"organizations_created"`
	OrganizationsReused  int `json:"organizations_reused"`
	FundsWritten         int `json:"funds_written"`
	FundDuplicates       int `json:"fund_duplicates"`

	TotalOrganizations int64                `json:"total_organizations"`
	TotalFunds         int64                `json:"total_funds"`
	AverageFunds       float64              `json:"average_funds_per_organization"`
	Top                []RankedOrganization `json:"top"`

	Manifest     *Manifest `json:"-"`
	ManifestPath string    `json:"manifest_path,omitempty"`
}

func averageFunds(funds, orgs int64) float64 {
	if orgs == 0 {
		return 0
	}
	return float64(funds) / float64(orgs)
}

// WriteText renders the operator report.
func (s *Summary) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 50)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	lines := []string{
		rule,
		"IMPORT SUMMARY",
		rule,
		fmt.Sprintf("Run:\t%s", s.RunID),
		fmt.Sprintf("Source:\t%s", s.Source),
		fmt.Sprintf("State:\t%s", s.State),
		fmt.Sprintf("Duration:\t%s", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)),
		fmt.Sprintf("Rows read:\t%d", s.RowsRead),
		fmt.Sprintf("Rows skipped:\t%d", len(s.Skipped)),
		fmt.Sprintf("Numeric warnings:\t%d", s.NumericWarnings),
		fmt.Sprintf("Organizations created:\t%d", s.OrganizationsCreated),
		fmt.Sprintf("Organizations reused:\t%d", s.OrganizationsReused),
		fmt.Sprintf("Funds written:\t%d", s.FundsWritten),
		fmt.Sprintf("Duplicate funds skipped:\t%d", s.FundDuplicates),
		fmt.Sprintf("Total Organizations:\t%d", s.TotalOrganizations),
		fmt.Sprintf("Total Funds:\t%d", s.TotalFunds),
		fmt.Sprintf("Average funds per organization:\t%.2f", s.AverageFunds),
	}
	if s.ManifestPath != "" {
		lines = append(lines, fmt.Sprintf("Manifest:\t%s", s.ManifestPath))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(tw, l); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Top) > 0 {
		if _, err := fmt.Fprintf(w, "\nTop %d organizations by number of funds:\n", len(s.Top)); err != nil {
			return err
		}
		for i, o := range s.Top {
			if _, err := fmt.Fprintf(w, "%3d. %s: %d funds\n", i+1, o.Name, o.FundCount); err != nil {
				return err
			}
		}
	}
	if len(s.Skipped) > 0 {
		if _, err := fmt.Fprintln(w, "\nSkipped rows:"); err != nil {
			return err
		}
		for _, sk := range s.Skipped {
			if _, err := fmt.Fprintf(w, "  line %d: %s\n", sk.Line, sk.Reason); err != nil {
				return err
			}
		}
	}
	return nil
}
