package organization

import "context"

type FindParams struct {
	Q      string
	Limit  int
	Offset int
}

type Repository interface {
	// GetPaginated filters by case-insensitive substring of the name, ordered by name.
	GetPaginated(ctx context.Context, params *FindParams) ([]Organization, int64, error)
	GetByID(ctx context.Context, id int64) (Organization, error)
	GetByName(ctx context.Context, name string) (Organization, error)
	// IDsByName returns every stored organization keyed by exact name.
	IDsByName(ctx context.Context) (map[string]int64, error)
	Create(ctx context.Context, o Organization) (Organization, error)
	// RecountFunds sets fund_count to the number of funds referencing id and returns it.
	RecountFunds(ctx context.Context, id int64) (int, error)
	Count(ctx context.Context) (int64, error)
	// Top ranks by fund_count desc, then name and id asc.
	Top(ctx context.Context, k int) ([]Organization, error)
	// Delete removes the organization together with its funds and persons.
	Delete(ctx context.Context, id int64) error
}
