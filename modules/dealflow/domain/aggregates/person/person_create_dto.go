package person

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/dealflow/pkg/constants"
)

type CreateDTO struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	JobTitle string `json:"job_title" validate:"max=255"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url,max=512"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.JobTitle = strings.TrimSpace(d.JobTitle)
	d.LinkedIn = strings.TrimSpace(d.LinkedIn)
}

func (d *CreateDTO) Ok() (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	out := map[string]string{}
	for _, fe := range errs.(validator.ValidationErrors) {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = fmt.Sprintf("%s is required", field)
		case "email":
			out[fe.Field()] = "email is not a valid address"
		case "url":
			out[fe.Field()] = "linkedin is not a valid url"
		case "max":
			out[fe.Field()] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		default:
			out[fe.Field()] = fe.Error()
		}
	}
	return out, false
}

func (d *CreateDTO) ToEntity(organizationID int64) Person {
	return New(organizationID, d.Name, d.Email, d.JobTitle, d.LinkedIn)
}
