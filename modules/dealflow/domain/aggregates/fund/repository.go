package fund

import (
	"context"

	"github.com/guregu/null/v5"
)

type FindParams struct {
	OrganizationID int64
	Limit          int
	Offset         int
}

type Repository interface {
	// Create inserts f and returns it with the storage-assigned id.
	Create(ctx context.Context, f Fund) (Fund, error)
	// GetPaginated orders by id; a zero OrganizationID lists every fund.
	GetPaginated(ctx context.Context, params *FindParams) ([]Fund, int64, error)
	Count(ctx context.Context) (int64, error)
	// Exists matches on organization, name and vintage with NULLs comparing equal.
	Exists(ctx context.Context, organizationID int64, name null.String, vintage null.Float) (bool, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}
