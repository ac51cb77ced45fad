package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/repo"
)

const ManifestVersion = 1

// Manifest records the committed work of an applied run so it can be undone.
type Manifest struct {
	Version    int       `json:"version"`
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	OrganizationsCreated []int64 `json:"organizations_created"`
	OrganizationsTouched []int64 `json:"organizations_touched"`
	FundsInserted        []int64 `json:"funds_inserted"`

	Summary ManifestCounts `json:"summary"`
}

type ManifestCounts struct {
	RowsRead             int `json:"rows_read"`
	RowsSkipped          int `json:"rows_skipped"`
	OrganizationsCreated int `json:"organizations_created"`
	FundsInserted        int `json:"funds_inserted"`
}

// WriteManifest stores m as import_manifest_<utc>_<run>.json in dir.
func WriteManifest(dir string, m *Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", gerrors.Wrap(err, "create manifest dir")
	}
	name := fmt.Sprintf("import_manifest_%s_%s.json", m.FinishedAt.UTC().Format("20060102T150405Z"), m.RunID)
	path := filepath.Join(dir, name)
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", gerrors.Wrap(err, "write manifest")
	}
	return path, nil
}

func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, gerrors.Wrapf(err, "parse manifest %s", path)
	}
	if m.Version != ManifestVersion {
		return nil, gerrors.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.RunID == "" {
		return nil, gerrors.Errorf("manifest %s has no run_id", path)
	}
	return &m, nil
}

type RollbackResult struct {
	FundsDeleted           int64   `json:"funds_deleted"`
	OrganizationsDeleted   int     `json:"organizations_deleted"`
	OrganizationsKept      []int64 `json:"organizations_kept"`
	OrganizationsRecounted int     `json:"organizations_recounted"`
}

// Rollback undoes the work listed in m in one transaction. Organizations the
// run created are deleted unless funds from elsewhere now reference them;
// every other touched organization gets its fund count recomputed.
func Rollback(ctx context.Context, tx repo.Transactor, orgs organization.Repository, funds fund.Repository, m *Manifest) (*RollbackResult, error) {
	txCtx, t, err := tx.Begin(ctx)
	if err != nil {
		return nil, gerrors.Wrap(err, "begin transaction")
	}
	defer func() { _ = t.Rollback(context.WithoutCancel(ctx)) }()

	res := &RollbackResult{}
	if res.FundsDeleted, err = funds.DeleteByIDs(txCtx, m.FundsInserted); err != nil {
		return nil, err
	}

	created := make(map[int64]struct{}, len(m.OrganizationsCreated))
	for _, id := range m.OrganizationsCreated {
		created[id] = struct{}{}
		n, err := orgs.RecountFunds(txCtx, id)
		if gerrors.Is(err, organization.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n > 0 {
			res.OrganizationsKept = append(res.OrganizationsKept, id)
			res.OrganizationsRecounted++
			continue
		}
		if err := orgs.Delete(txCtx, id); err != nil {
			return nil, err
		}
		res.OrganizationsDeleted++
	}
	for _, id := range m.OrganizationsTouched {
		if _, ok := created[id]; ok {
			continue
		}
		if _, err := orgs.RecountFunds(txCtx, id); err != nil {
			if gerrors.Is(err, organization.ErrNotFound) {
				continue
			}
			return nil, err
		}
		res.OrganizationsRecounted++
	}

	if err := t.Commit(ctx); err != nil {
		return nil, gerrors.Wrap(err, "commit rollback")
	}
	return res, nil
}
