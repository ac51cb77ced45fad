package organization

import "errors"

var (
	ErrNotFound  = errors.New("organization not found")
	ErrNameTaken = errors.New("organization already exists")
	ErrEmptyName = errors.New("organization name is empty")
)
