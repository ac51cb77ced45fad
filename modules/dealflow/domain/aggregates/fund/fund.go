package fund

import (
	"time"

	"github.com/guregu/null/v5"
)

type Fund struct {
	id             int64
	organizationID int64
	attrs          map[Field]Value
	createdAt      time.Time
	updatedAt      time.Time
}

// New keeps only known, present attributes.
func New(organizationID int64, attrs map[Field]Value) Fund {
	return Fund{
		organizationID: organizationID,
		attrs:          cleanAttrs(attrs),
	}
}

func Hydrate(id, organizationID int64, attrs map[Field]Value, createdAt, updatedAt time.Time) Fund {
	return Fund{
		id:             id,
		organizationID: organizationID,
		attrs:          cleanAttrs(attrs),
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func cleanAttrs(attrs map[Field]Value) map[Field]Value {
	out := make(map[Field]Value, len(attrs))
	for f, v := range attrs {
		if _, ok := kinds[f]; ok && v.Valid() {
			out[f] = v
		}
	}
	return out
}

func (f Fund) ID() int64             { return f.id }
func (f Fund) OrganizationID() int64 { return f.organizationID }
func (f Fund) CreatedAt() time.Time  { return f.createdAt }
func (f Fund) UpdatedAt() time.Time  { return f.updatedAt }

func (f Fund) Get(field Field) Value { return f.attrs[field] }

func (f Fund) Name() null.String   { return f.attrs[FundName].Text() }
func (f Fund) Vintage() null.Float { return f.attrs[Vintage].Number() }

// Attributes returns a copy of the present attributes.
func (f Fund) Attributes() map[Field]Value {
	out := make(map[Field]Value, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out
}

// Args returns one query argument per Schema column, absent ones as NULL.
func (f Fund) Args() []any {
	out := make([]any, len(Schema))
	for i, s := range Schema {
		out[i] = f.attrs[s.Field].Arg(s.Kind)
	}
	return out
}

func (f Fund) WithID(id int64) Fund {
	f.id = id
	return f
}
