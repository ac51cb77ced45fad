package organization

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/dealflow/pkg/constants"
)

type CreateDTO struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
}

// Ok normalizes the dto and reports validation failures keyed by field name.
func (d *CreateDTO) Ok() (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	out := map[string]string{}
	for _, fe := range errs.(validator.ValidationErrors) {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "name is required"
		case "max":
			out[fe.Field()] = "name must be at most 255 characters"
		default:
			out[fe.Field()] = fe.Error()
		}
	}
	return out, false
}

func (d *CreateDTO) ToEntity() Organization {
	return New(d.Name)
}
