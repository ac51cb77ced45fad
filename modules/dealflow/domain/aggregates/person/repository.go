package person

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("person not found")

type Repository interface {
	Create(ctx context.Context, p Person) (Person, error)
	ListByOrganization(ctx context.Context, organizationID int64) ([]Person, error)
}
